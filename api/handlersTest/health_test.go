// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package handlersTest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/edhocd/gateway/api/handlers"
)

func TestHealthHandler(t *testing.T) {
	t.Run("GET /health - Success", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		recorder := httptest.NewRecorder()

		handlers.HealthHandler(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, recorder.Code)
		}

		var body handlers.HealthResponse
		if err := json.NewDecoder(recorder.Body).Decode(&body); err != nil {
			t.Fatalf("decode health response: %v", err)
		}
		if body.Status != "OK" {
			t.Errorf("expected status 'OK', got %q", body.Status)
		}
		if body.Version == "" {
			t.Error("version should not be empty")
		}
	})

	t.Run("POST /health - Method Not Allowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/health", nil)
		recorder := httptest.NewRecorder()

		handlers.HealthHandler(recorder, req)

		if recorder.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, recorder.Code)
		}
	})
}
