// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/edhocd/gateway/internal/session"
)

// StatusHandler exposes read-only session introspection over GET /status:
// the EDHOC state name, whether an OSCORE context has been bootstrapped, and
// sequence-number bookkeeping. It never returns key material. orch may be
// nil until a handshake has started; the handler reports an idle status in
// that case rather than erroring.
func StatusHandler(orch func() *session.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		slog.Debug("status request")

		o := orch()
		if o == nil {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(session.StatusSnapshot{EdhocState: "idle"})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(o.Status())
	}
}
