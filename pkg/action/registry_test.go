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
	"testing"

	"github.com/carverauto/serviceradar/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunUnknownActionReturnsError(t *testing.T) {
	r := NewRegistry()

	_, _, err := r.Run(context.Background(), "nope", nil)
	assert.Error(t, err)
}

func TestRunExternalActionSubstitutesArgs(t *testing.T) {
	r := NewRegistry()
	r.Register(Spec{
		Name:    "greet",
		Kind:    KindExternal,
		Command: "/bin/echo",
		Args:    []string{"hello", "$1"},
	})

	code, out, err := r.Run(context.Background(), "greet", []string{"world"})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, "hello world\n", out)
}

func TestRunShellActionReportsExitCode(t *testing.T) {
	r := NewRegistry()
	r.Register(Spec{
		Name:  "fail",
		Kind:  KindShell,
		Shell: "exit $1",
	})

	code, _, err := r.Run(context.Background(), "fail", []string{"5"})
	require.NoError(t, err)
	assert.Equal(t, 5, code)
}

type fakeRouter struct {
	reply *wire.Frame
	err   error
	sent  *wire.Frame
}

func (f *fakeRouter) Request(_ wire.Code, frame *wire.Frame) (*wire.Frame, error) {
	f.sent = frame
	return f.reply, f.err
}

func TestRunSubagentActionSuccess(t *testing.T) {
	r := NewRegistry()
	r.Register(Spec{Name: "restart-service", Kind: KindSubagent, Subagent: "win-agent"})

	reply := wire.NewFrame(wire.CodeRequestCompleted, 0, 0)
	reply.SetUint32(wire.FieldRCC, uint32(wire.Success))

	router := &fakeRouter{reply: reply}
	r.RegisterSubagent("win-agent", router)

	code, _, err := r.Run(context.Background(), "restart-service", []string{"svc1"})
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	name, _ := router.sent.GetString(wire.FieldActionName)
	assert.Equal(t, "restart-service", name)

	arg0, _ := router.sent.GetString(wire.FieldArgBase)
	assert.Equal(t, "svc1", arg0)
}

func TestRunSubagentActionRejected(t *testing.T) {
	r := NewRegistry()
	r.Register(Spec{Name: "restart-service", Kind: KindSubagent, Subagent: "win-agent"})

	reply := wire.NewFrame(wire.CodeRequestCompleted, 0, 0)
	reply.SetUint32(wire.FieldRCC, uint32(wire.ErrAccessDenied))

	r.RegisterSubagent("win-agent", &fakeRouter{reply: reply})

	code, _, err := r.Run(context.Background(), "restart-service", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, code)
}

func TestRunSubagentActionNotConnected(t *testing.T) {
	r := NewRegistry()
	r.Register(Spec{Name: "restart-service", Kind: KindSubagent, Subagent: "win-agent"})

	_, _, err := r.Run(context.Background(), "restart-service", nil)
	assert.Error(t, err)
}

func TestUnregisterRemovesAction(t *testing.T) {
	r := NewRegistry()
	r.Register(Spec{Name: "greet", Kind: KindExternal, Command: "/bin/echo"})
	r.Unregister("greet")

	_, _, err := r.Run(context.Background(), "greet", nil)
	assert.Error(t, err)
}

func TestRemoveSubagentDisconnectsTarget(t *testing.T) {
	r := NewRegistry()
	r.Register(Spec{Name: "x", Kind: KindSubagent, Subagent: "a"})
	r.RegisterSubagent("a", &fakeRouter{})
	r.RemoveSubagent("a")

	_, _, err := r.Run(context.Background(), "x", nil)
	assert.Error(t, err)
}
