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

package subagent

import (
	"context"
	"net"
	"testing"

	"github.com/carverauto/serviceradar/pkg/logger"
	"github.com/carverauto/serviceradar/pkg/metriccatalog"
	"github.com/carverauto/serviceradar/pkg/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateOutcomeFor(t *testing.T) {
	cases := []struct {
		rcc  wire.ResultCode
		want metriccatalog.Outcome
	}{
		{wire.ErrUnknownMetric, metriccatalog.OutcomeUnknown},
		{wire.ErrUnsupportedMetric, metriccatalog.OutcomeUnsupported},
		{wire.ErrNoSuchInstance, metriccatalog.OutcomeNoSuchInstance},
		{wire.ErrInternal, metriccatalog.OutcomeError},
		{wire.ErrAccessDenied, metriccatalog.OutcomeError},
	}

	for _, c := range cases {
		assert.Equal(t, c.want, translateOutcomeFor(c.rcc))
	}
}

func TestReplyOutcomeSuccess(t *testing.T) {
	reply := wire.NewFrame(wire.CodeRequestCompleted, 1, 0)
	reply.SetUint32(wire.FieldRCC, uint32(wire.Success))

	rcc, outcome := replyOutcome(reply)
	assert.Equal(t, wire.Success, rcc)
	assert.Equal(t, metriccatalog.OutcomeSuccess, outcome)
}

func TestReplyOutcomeMissingRCC(t *testing.T) {
	reply := wire.NewFrame(wire.CodeRequestCompleted, 1, 0)

	_, outcome := replyOutcome(reply)
	assert.Equal(t, metriccatalog.OutcomeError, outcome)
}

func TestLookupMetricWhenDisconnected(t *testing.T) {
	b := &Bridge{
		name:    "test",
		waiting: make(map[waitKey]*pendingWait),
		stopCh:  make(chan struct{}),
	}

	_, outcome := b.LookupMetric(context.Background(), metriccatalog.Query{Name: "Disk.Free"})
	assert.Equal(t, metriccatalog.OutcomeUnknown, outcome)
}

func TestRequestRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	b := &Bridge{
		name:    "test",
		waiting: make(map[waitKey]*pendingWait),
		stopCh:  make(chan struct{}),
	}
	b.connHandle.Store(client)
	b.connected.Store(true)

	go b.readLoop(context.Background(), client, logger.NewTestLogger())

	go func() {
		frame, err := wire.ReadFrame(server)
		if err != nil {
			return
		}

		reply := wire.NewFrame(wire.CodeRequestCompleted, frame.Header.ID, 0)
		reply.SetUint32(wire.FieldRCC, uint32(wire.Success))
		reply.SetString(wire.FieldValue, "42")

		encoded, err := reply.Encode()
		if err != nil {
			return
		}

		_, _ = server.Write(encoded)
	}()

	req := wire.NewFrame(wire.CodeGetParameter, b.NextRequestID(), 0)
	req.SetString(wire.FieldParameter, "Disk.Free(sda)")

	reply, err := b.Request(wire.CodeRequestCompleted, req)
	require.NoError(t, err)

	v, ok := reply.GetString(wire.FieldValue)
	require.True(t, ok)
	assert.Equal(t, "42", v)
}

func TestDeliverToWaiterNoMatch(t *testing.T) {
	b := &Bridge{waiting: make(map[waitKey]*pendingWait)}

	frame := wire.NewFrame(wire.CodeTrap, 7, 0)
	assert.False(t, b.deliverToWaiter(frame))
}

func TestFailAllWaitersClosesChannels(t *testing.T) {
	b := &Bridge{waiting: make(map[waitKey]*pendingWait)}

	pw := &pendingWait{reply: make(chan *wire.Frame, 1)}
	b.waiting[waitKey{code: wire.CodeRequestCompleted, id: 1}] = pw

	b.failAllWaiters()

	_, open := <-pw.reply
	assert.False(t, open)
	assert.Empty(t, b.waiting)
}
