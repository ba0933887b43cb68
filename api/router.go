// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Package api wires the admin HTTP surface's handlers into a router. This
// surface is entirely separate from the UDP/CoAP path: it exists for
// operators, not for peers, and never touches protocol secrets.
package api

import (
	"net/http"

	"github.com/edhocd/gateway/api/handlers"
	"github.com/edhocd/gateway/internal/session"
)

// NewAdminRouter builds the GET /health and GET /status mux. orch is called
// on every /status request so the handler always reflects the live
// orchestrator, even if it is constructed after the router.
func NewAdminRouter(orch func() *session.Orchestrator) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", handlers.HealthHandler)
	mux.Handle("/status", handlers.StatusHandler(orch))
	return mux
}
