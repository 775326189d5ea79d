// Cadence - AI-Assisted Music Recommendation Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cadence

package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tomtom215/cadence/internal/logging"
)

// RequestIDHeader is the inbound/outbound request ID header.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns every request a UUID (or adopts the caller's),
// echoes it in the response, and threads it through the logging
// context so every log line in the request carries it.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}

		ctx := logging.WithRequestID(r.Context(), id)
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
