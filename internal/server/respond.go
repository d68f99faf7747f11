package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jensholdgaard/clubhub/internal/domainerr"
	"github.com/jensholdgaard/clubhub/internal/session"
	"github.com/jensholdgaard/clubhub/internal/telemetry"
)

type errorResponse struct {
	Error    string             `json:"error"`
	Kind     string             `json:"kind,omitempty"`
	Code     string             `json:"code,omitempty"`
	Metadata map[string]string  `json:"metadata,omitempty"`
	Rows     []session.RowError `json:"rows,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusOf maps a domain error kind to its HTTP status.
func statusOf(err error) int {
	switch domainerr.KindOf(err) {
	case domainerr.KindPrecondition:
		return http.StatusBadRequest
	case domainerr.KindStateConflict:
		return http.StatusConflict
	case domainerr.KindForbidden:
		return http.StatusForbidden
	case domainerr.KindNotFound:
		return http.StatusNotFound
	case domainerr.KindSequenceExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	resp := errorResponse{Error: err.Error()}

	var de *domainerr.Error
	if errors.As(err, &de) {
		resp.Kind = de.Kind.String()
		resp.Code = de.Code
		resp.Metadata = de.Metadata
	}
	var rows session.RowErrors
	if errors.As(err, &rows) {
		status = http.StatusUnprocessableEntity
		resp.Kind = domainerr.KindPrecondition.String()
		resp.Code = session.ErrRowErrors.Code
		resp.Rows = rows
	}

	if status == http.StatusInternalServerError {
		telemetry.LogWithTrace(r.Context(), s.logger).ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		resp = errorResponse{Error: "internal server error"}
	}
	writeJSON(w, status, resp)
}
