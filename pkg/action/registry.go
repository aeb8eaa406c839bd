/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package action

import (
	"context"
	"fmt"
	"sync"

	"github.com/carverauto/serviceradar/pkg/wire"
)

// Registry holds the actions pushed down by agent policy and dispatches
// ACTION requests to whichever shape each one is configured as. It
// satisfies pkg/session.ActionExecutor.
type Registry struct {
	mu        sync.RWMutex
	specs     map[string]Spec
	subagents map[string]SubagentRouter
}

// NewRegistry returns an empty Registry, ready to use.
func NewRegistry() *Registry {
	return &Registry{
		specs:     make(map[string]Spec),
		subagents: make(map[string]SubagentRouter),
	}
}

// Register adds or replaces a named action's configuration.
func (r *Registry) Register(spec Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.specs[spec.Name] = spec
}

// Unregister removes a named action, e.g. on policy update.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.specs, name)
}

// RegisterSubagent makes a connected subagent bridge available as a
// KindSubagent action target under the given name (its Bridge.Name()).
func (r *Registry) RegisterSubagent(name string, router SubagentRouter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.subagents[name] = router
}

// RemoveSubagent drops a subagent target, e.g. on disconnect.
func (r *Registry) RemoveSubagent(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.subagents, name)
}

// Run executes a named action with the given invocation arguments,
// blocking until it completes. It implements pkg/session.ActionExecutor.
func (r *Registry) Run(ctx context.Context, name string, args []string) (exitCode int, output string, err error) {
	r.mu.RLock()
	spec, ok := r.specs[name]
	r.mu.RUnlock()

	if !ok {
		return -1, "", &unknownActionErr{name: name}
	}

	if spec.Timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	switch spec.Kind {
	case KindExternal:
		argv := make([]string, len(spec.Args))
		for i, a := range spec.Args {
			argv[i] = substitutePositional(a, args)
		}

		return runCommand(ctx, spec.Command, argv)
	case KindShell:
		return runShell(ctx, substitutePositional(spec.Shell, args))
	case KindSubagent:
		return r.runSubagent(spec, args)
	default:
		return -1, "", fmt.Errorf("action: %s has unknown kind %d", name, spec.Kind)
	}
}

// runSubagent routes an action through the subagent bridge named by
// spec.Subagent (§4.3). A successful reply is reported as exit code 0; a
// rejected one (ACCESS_DENIED, UNKNOWN_METRIC, ...) as 1, mirroring how a
// failing shell command's non-zero status is reported rather than
// treated as a Go error.
func (r *Registry) runSubagent(spec Spec, args []string) (exitCode int, output string, err error) {
	r.mu.RLock()
	router, ok := r.subagents[spec.Subagent]
	r.mu.RUnlock()

	if !ok {
		return -1, "", fmt.Errorf("action: subagent %q not connected", spec.Subagent)
	}

	req := wire.NewFrame(wire.CodeAction, 0, 0)
	req.SetString(wire.FieldActionName, spec.Name)
	req.SetUint32(wire.FieldNumArgs, uint32(len(args)))

	for i, a := range args {
		req.SetString(wire.FieldArgBase+uint32(i), a)
	}

	reply, err := router.Request(wire.CodeRequestCompleted, req)
	if err != nil {
		return -1, "", err
	}

	rcc, _ := reply.GetUint32(wire.FieldRCC)
	if wire.ResultCode(rcc) == wire.Success {
		return 0, "", nil
	}

	return 1, "", nil
}
