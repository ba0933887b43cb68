// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package handlersTest

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edhocd/gateway/api/handlers"
	"github.com/edhocd/gateway/internal/identity"
	"github.com/edhocd/gateway/internal/session"
)

func testIdentity() identity.Party {
	var p identity.Party
	p.Kid = []byte{0x01}
	p.PeerKid = []byte{0x02}
	return p
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStatusHandlerIdle(t *testing.T) {
	handler := handlers.StatusHandler(func() *session.Orchestrator { return nil })

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	recorder := httptest.NewRecorder()
	handler(recorder, req)

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, recorder.Code)
	}
	var body session.StatusSnapshot
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("decode status response: %v", err)
	}
	if body.EdhocState != "idle" {
		t.Errorf("expected idle state, got %q", body.EdhocState)
	}
	if body.OscoreActive {
		t.Error("expected no OSCORE context before any handshake")
	}
}

func TestStatusHandlerReflectsResponderState(t *testing.T) {
	orch := session.NewResponder(testIdentity(), discardLogger(), nil)
	handler := handlers.StatusHandler(func() *session.Orchestrator { return orch })

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	recorder := httptest.NewRecorder()
	handler(recorder, req)

	var body session.StatusSnapshot
	if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
		t.Fatalf("decode status response: %v", err)
	}
	if body.Role != "responder" {
		t.Errorf("expected role 'responder', got %q", body.Role)
	}
	if body.EdhocState != "waiting_for_message_1" {
		t.Errorf("expected waiting_for_message_1, got %q", body.EdhocState)
	}
}

func TestStatusHandlerRejectsNonGet(t *testing.T) {
	handler := handlers.StatusHandler(func() *session.Orchestrator { return nil })

	req := httptest.NewRequest(http.MethodPost, "/status", nil)
	recorder := httptest.NewRecorder()
	handler(recorder, req)

	if recorder.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, recorder.Code)
	}
}
