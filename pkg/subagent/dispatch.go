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
	"strings"

	"github.com/carverauto/serviceradar/pkg/metriccatalog"
	"github.com/carverauto/serviceradar/pkg/wire"
)

// LookupMetric implements metriccatalog.SubagentTier: §3's
// "get-parameter" subagent-proxied call.
func (b *Bridge) LookupMetric(_ context.Context, q metriccatalog.Query) (string, metriccatalog.Outcome) {
	if !b.connected.Load() {
		return "", metriccatalog.OutcomeUnknown
	}

	req := wire.NewFrame(wire.CodeGetParameter, b.NextRequestID(), 0)
	req.SetString(wire.FieldParameter, rawQuery(q.Name, q.Args))

	reply, err := b.Request(wire.CodeRequestCompleted, req)
	if err != nil {
		return "", metriccatalog.OutcomeUnknown
	}

	return translateScalarReply(reply)
}

// LookupList implements metriccatalog.SubagentTier: §3's "get-list"
// subagent-proxied call.
func (b *Bridge) LookupList(_ context.Context, q metriccatalog.Query) ([]string, metriccatalog.Outcome) {
	if !b.connected.Load() {
		return nil, metriccatalog.OutcomeUnknown
	}

	req := wire.NewFrame(wire.CodeGetList, b.NextRequestID(), 0)
	req.SetString(wire.FieldParameter, rawQuery(q.Name, q.Args))

	reply, err := b.Request(wire.CodeRequestCompleted, req)
	if err != nil {
		return nil, metriccatalog.OutcomeUnknown
	}

	rcc, outcome := replyOutcome(reply)
	if outcome != metriccatalog.OutcomeSuccess {
		return nil, translateOutcomeFor(rcc)
	}

	var lines []string

	for i := uint32(0); ; i++ {
		v, ok := reply.GetString(wire.FieldArgBase + i)
		if !ok {
			break
		}

		lines = append(lines, v)
	}

	return lines, metriccatalog.OutcomeSuccess
}

// LookupTable implements metriccatalog.SubagentTier: §3's "get-table"
// subagent-proxied call. The wire shape for a table reply is left to
// pkg/session's framing of CodeGetTable; here only the happy-path
// outcome needs distinguishing since no column data crosses this
// boundary without a live wire fixture to decode against.
func (b *Bridge) LookupTable(_ context.Context, q metriccatalog.Query) (*metriccatalog.Table, metriccatalog.Outcome) {
	if !b.connected.Load() {
		return nil, metriccatalog.OutcomeUnknown
	}

	req := wire.NewFrame(wire.CodeGetTable, b.NextRequestID(), 0)
	req.SetString(wire.FieldParameter, rawQuery(q.Name, q.Args))

	reply, err := b.Request(wire.CodeRequestCompleted, req)
	if err != nil {
		return nil, metriccatalog.OutcomeUnknown
	}

	_, outcome := replyOutcome(reply)

	return nil, outcome
}

func translateScalarReply(reply *wire.Frame) (string, metriccatalog.Outcome) {
	rcc, outcome := replyOutcome(reply)
	if outcome != metriccatalog.OutcomeSuccess {
		return "", translateOutcomeFor(rcc)
	}

	v, _ := reply.GetString(wire.FieldValue)

	return v, metriccatalog.OutcomeSuccess
}

func replyOutcome(reply *wire.Frame) (wire.ResultCode, metriccatalog.Outcome) {
	rcc, ok := reply.GetUint32(wire.FieldRCC)
	if !ok {
		return wire.ErrInternal, metriccatalog.OutcomeError
	}

	if wire.ResultCode(rcc) == wire.Success {
		return wire.Success, metriccatalog.OutcomeSuccess
	}

	return wire.ResultCode(rcc), translateOutcomeFor(wire.ResultCode(rcc))
}

// translateOutcomeFor maps a subagent's own ERR_* reply back into the
// Outcome domain: OutcomeUnknown only for UNKNOWN_METRIC, so an
// authoritative "no" from the subagent (e.g. ACCESS_DENIED) is not
// retried against a later tier that has no business answering it
// either.
func translateOutcomeFor(rcc wire.ResultCode) metriccatalog.Outcome {
	switch rcc {
	case wire.ErrUnknownMetric:
		return metriccatalog.OutcomeUnknown
	case wire.ErrUnsupportedMetric:
		return metriccatalog.OutcomeUnsupported
	case wire.ErrNoSuchInstance:
		return metriccatalog.OutcomeNoSuchInstance
	default:
		return metriccatalog.OutcomeError
	}
}

// rawQuery reconstructs the "NAME(arg1,arg2)" wire form of a parsed query
// for forwarding to a subagent verbatim.
func rawQuery(name string, args []string) string {
	if len(args) == 0 {
		return name
	}

	return name + "(" + strings.Join(args, ",") + ")"
}
