package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fslexpress/golang_services/internal/core_domain"
)

// statusForKind maps an error kind to the response status.
func statusForKind(kind core_domain.Kind) int {
	switch kind {
	case core_domain.KindValidation, core_domain.KindModelNotFound, core_domain.KindDecodeError:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func jsonError(w http.ResponseWriter, logger *slog.Logger, message string, status int) {
	writeJSON(w, logger, status, ErrorResponse{Error: message})
}

// clientMessage is the cause text of the outermost classified error, without
// its operation prefix. Only used for 4xx responses.
func clientMessage(err error) string {
	var cerr *core_domain.Error
	if errors.As(err, &cerr) && cerr.Err != nil {
		return cerr.Err.Error()
	}
	return err.Error()
}
