// Package httpserver contains the REST handlers and middleware of the
// candidate ranking API. It keeps HTTP concerns (status mapping, envelopes,
// upload limits) out of the usecase layer.
package httpserver

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"log/slog"

	"github.com/talentsift/talentsift/internal/adapter/observability"
	"github.com/talentsift/talentsift/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonUnmarshalStrict(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func writeError(w http.ResponseWriter, r *http.Request, err error, details interface{}) {
	code := http.StatusInternalServerError
	codeStr := "INTERNAL"
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		code = http.StatusBadRequest
		codeStr = "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
		codeStr = "NOT_FOUND"
	case errors.Is(err, domain.ErrConflict):
		code = http.StatusConflict
		codeStr = "CONFLICT"
	case errors.Is(err, domain.ErrRateLimited):
		code = http.StatusTooManyRequests
		codeStr = "RATE_LIMITED"
	case errors.Is(err, domain.ErrUpstreamTimeout):
		code = http.StatusServiceUnavailable
		codeStr = "UPSTREAM_TIMEOUT"
	case errors.Is(err, domain.ErrEmbedding):
		code = http.StatusServiceUnavailable
		codeStr = "EMBEDDING_FAILED"
	case errors.Is(err, domain.ErrIndex):
		code = http.StatusServiceUnavailable
		codeStr = "INDEX_FAILED"
	case errors.Is(err, domain.ErrParse):
		code = http.StatusUnprocessableEntity
		codeStr = "PARSE_FAILED"
	case errors.Is(err, domain.ErrAnalysis):
		code = http.StatusServiceUnavailable
		codeStr = "ANALYSIS_FAILED"
	}
	if code >= http.StatusInternalServerError {
		LoggerFrom(r).Error("request failed",
			slog.String("request_id", observability.RequestIDFromContext(r.Context())),
			slog.Any("error", err))
	}
	writeJSON(w, code, errorEnvelope{Error: apiError{Code: codeStr, Message: err.Error(), Details: details}})
}
