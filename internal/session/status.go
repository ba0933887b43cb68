// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package session

import (
	"fmt"

	"github.com/edhocd/gateway/internal/edhoc"
)

// StatusSnapshot is a read-only view of an orchestrator's current state,
// safe to expose over the admin HTTP surface: it never carries key
// material, only enough to tell whether a session is mid-handshake,
// OSCORE-protected, or idle.
type StatusSnapshot struct {
	Role             string `json:"role"`
	EdhocState       string `json:"edhoc_state"`
	OscoreActive     bool   `json:"oscore_active"`
	SenderSeq        uint64 `json:"sender_sequence,omitempty"`
	RecipientHighest uint64 `json:"recipient_highest,omitempty"`
}

// Status reports the orchestrator's current position without mutating it.
func (o *Orchestrator) Status() StatusSnapshot {
	snap := StatusSnapshot{OscoreActive: o.oscoreCtx != nil}

	switch o.role {
	case RoleResponder:
		snap.Role = "responder"
		snap.EdhocState = responderStateName(o.responder.State())
	case RoleInitiator:
		snap.Role = "initiator"
		snap.EdhocState = initiatorStateName(o.initiator.State())
	}

	if o.oscoreCtx != nil {
		snap.SenderSeq = o.oscoreCtx.SenderSequence()
		snap.RecipientHighest = o.oscoreCtx.RecipientHighest()
	}
	return snap
}

func responderStateName(s edhoc.ResponderState) string {
	switch s {
	case edhoc.ResponderWaitingForMsg1:
		return "waiting_for_message_1"
	case edhoc.ResponderWaitingForMsg3:
		return "waiting_for_message_3"
	case edhoc.ResponderComplete:
		return "complete"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

func initiatorStateName(s edhoc.InitiatorState) string {
	switch s {
	case edhoc.InitiatorInit:
		return "init"
	case edhoc.InitiatorWaitingForMsg2:
		return "waiting_for_message_2"
	case edhoc.InitiatorWaitingForAck:
		return "waiting_for_ack"
	case edhoc.InitiatorComplete:
		return "complete"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}
