package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"archie-core-shopee-layer/internal/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxRequestBody caps the invocation body
const maxRequestBody = 1 << 20

// SyncRunner runs one sync invocation
type SyncRunner interface {
	Run(ctx context.Context, kind domain.EntityKind, req domain.SyncRequest) *domain.SyncResponse
}

// SyncHandler exposes the sync invocation contract over HTTP
type SyncHandler struct {
	runner SyncRunner
	logger zerolog.Logger
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(runner SyncRunner, logger zerolog.Logger) *SyncHandler {
	return &SyncHandler{
		runner: runner,
		logger: logger,
	}
}

// Handle returns the handler of one entity kind.
// POST runs the sync, OPTIONS answers the preflight, anything else is 405.
// A sync answer is always 200; failures are reported through the ok flag.
func (h *SyncHandler) Handle(kind domain.EntityKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodOptions:
			setCORSHeaders(w)
			w.WriteHeader(http.StatusNoContent)
			return
		case http.MethodPost:
		default:
			w.Header().Set("Allow", "POST, OPTIONS")
			writeJSON(w, http.StatusMethodNotAllowed, map[string]interface{}{
				"ok":    false,
				"error": "method not allowed",
			})
			return
		}

		var body syncRequestBody
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err == nil && len(raw) > 0 {
			err = json.Unmarshal(raw, &body)
		}
		var req domain.SyncRequest
		if err == nil {
			req, err = body.toDomain(kind)
		}
		if err != nil {
			correlationID := uuid.NewString()
			h.logger.Warn().
				Err(err).
				Str("correlationId", correlationID).
				Str("kind", string(kind)).
				Msg("Rejected sync request body")
			msg := err.Error()
			if !errors.Is(err, domain.ErrInvalidRequest) {
				msg = domain.ErrInvalidRequest.Error() + ": malformed JSON body"
			}
			writeJSON(w, http.StatusOK, &domain.SyncResponse{OK: false, Error: msg, CorrelationID: correlationID})
			return
		}

		writeJSON(w, http.StatusOK, h.runner.Run(r.Context(), kind, req))
	}
}

func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "*")
	w.Header().Set("Access-Control-Max-Age", "86400")
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
