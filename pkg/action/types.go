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

// Package action implements §4.7's action execution: named actions in
// three shapes (external command, shell command, subagent-routed),
// positional argument substitution, and exit code reporting. Registry
// satisfies pkg/session's ActionExecutor without either package
// importing the other's concrete types.
package action

import (
	"time"

	"github.com/carverauto/serviceradar/pkg/wire"
)

// Kind is how a named action is carried out.
type Kind int

const (
	// KindExternal spawns a process directly with argv, no shell involved.
	KindExternal Kind = iota
	// KindShell spawns the command line through the platform shell.
	KindShell
	// KindSubagent routes the action to a connected subagent bridge
	// (§4.3) instead of running anything locally.
	KindSubagent
)

// Spec is one configured action, as pushed down by agent policy.
type Spec struct {
	Name string
	Kind Kind

	// Command is the executable path for KindExternal; Args are its
	// argv, each eligible for $1.."$9" substitution from the invocation
	// arguments.
	Command string
	Args    []string

	// Shell is the command line template for KindShell, substituted the
	// same way before being handed to the platform shell.
	Shell string

	// Subagent names the bridge (pkg/subagent.Bridge.Name()) a
	// KindSubagent action is routed to.
	Subagent string

	// Timeout bounds how long the action may run; zero means no
	// per-action deadline beyond ctx's own.
	Timeout time.Duration
}

// SubagentRouter is the subset of *subagent.Bridge a routed action needs.
// Declared locally so this package does not import pkg/subagent.
type SubagentRouter interface {
	Request(responseCode wire.Code, frame *wire.Frame) (*wire.Frame, error)
}

// unknownActionErr is returned by Run for a name with no registered spec,
// which pkg/session's dispatcher answers with wire.ErrInternal like any
// other Run error (the result code is chosen by the caller, not this
// package).
type unknownActionErr struct{ name string }

func (e *unknownActionErr) Error() string { return "action: unknown action " + e.name }
