package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"logseqbridge/src/internal/domain"
	"logseqbridge/src/internal/service/logging"
)

const (
	RequestIDHeader = "X-Request-Id"
	maxBodyBytes    = 1 << 20
)

// cors sets the CORS headers on every response and answers preflights.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Content-Type", "application/json")
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// trace tags the request with an id and logs it. Health checks are lifecycle
// events; everything else is request detail hidden outside debug mode.
func (a *Api) trace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := uuid.NewString()
		w.Header().Set(RequestIDHeader, id)

		if r.Method == http.MethodGet && r.URL.Path == "/health" {
			logging.Lifecycle(a.logger).Info("GET /health", "request_id", id)
		} else if r.Method == http.MethodGet {
			logging.Request(a.logger).Info(r.Method+" "+r.URL.Path, "request_id", id, "params", r.URL.Query())
		} else {
			logging.Request(a.logger).Info(r.Method+" "+r.URL.Path, "request_id", id)
		}
		next.ServeHTTP(w, r)
	})
}

// recoverer keeps a panicking handler from taking the listener down.
func (a *Api) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logging.Failure(a.logger).Error("handler panic", "path", r.URL.Path, "panic", rec)
				writeJSON(w, http.StatusInternalServerError, domain.ErrorResponse{Error: "Internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type bodyKey struct{}

// decodeBody parses the JSON body of every POST before routing, so a
// malformed body is rejected even on an unknown path. An empty body is an
// empty object.
func decodeBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			next.ServeHTTP(w, r)
			return
		}

		var body domain.RequestBody
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, &domain.TooLargeError{Message: fmt.Sprintf("Request body too large (limit %d bytes)", tooLarge.Limit)})
				return
			}
			writeError(w, &domain.ValidationError{Message: "Invalid JSON in request body"})
			return
		}
		if len(data) > 0 {
			dec := json.NewDecoder(bytes.NewReader(data))
			if err := dec.Decode(&body); err != nil || dec.More() {
				writeError(w, &domain.ValidationError{Message: "Invalid JSON in request body"})
				return
			}
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), bodyKey{}, body)))
	})
}

func bodyFrom(r *http.Request) domain.RequestBody {
	body, _ := r.Context().Value(bodyKey{}).(domain.RequestBody)
	return body
}
