package errors

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// HTTPErrorAdapter handles error presentation and status code determination
// for the HTTP API.
type HTTPErrorAdapter struct {
	logger *slog.Logger
}

// NewHTTPErrorAdapter creates a new HTTP error adapter with an optional slog
// logger. If logger is nil, the default package logger will be used.
func NewHTTPErrorAdapter(logger *slog.Logger) *HTTPErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPErrorAdapter{logger: logger}
}

// HTTPErrorResponse represents a standard JSON error payload.
type HTTPErrorResponse struct {
	Error   string         `json:"error"`
	Kind    string         `json:"kind,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// StatusCodeFor determines the HTTP status code for a given error based on
// its kind. Unknown errors map to 500.
func (a *HTTPErrorAdapter) StatusCodeFor(err error) int {
	if err == nil {
		return http.StatusOK
	}

	var de *DocgenError
	if errors.As(err, &de) {
		switch de.Kind {
		case KindValidation, KindUnsupportedPackage, KindUnsupportedEmbedTarget:
			return http.StatusBadRequest
		case KindTemplateNotFound, KindArtifactNotFound:
			return http.StatusNotFound
		case KindArtifactExpired:
			return http.StatusGone
		case KindConversionTimeout:
			return http.StatusGatewayTimeout
		case KindConversionFailed:
			return http.StatusUnprocessableEntity
		default:
			return http.StatusInternalServerError
		}
	}

	return http.StatusInternalServerError
}

// FormatErrorResponse converts an error into the JSON payload shape.
func (a *HTTPErrorAdapter) FormatErrorResponse(err error) HTTPErrorResponse {
	var de *DocgenError
	if errors.As(err, &de) {
		return HTTPErrorResponse{
			Error:   de.Message,
			Kind:    string(de.Kind),
			Details: de.Context,
		}
	}
	return HTTPErrorResponse{Error: err.Error(), Kind: string(KindInternal)}
}

// WriteErrorResponse writes a JSON error response and logs with appropriate
// level.
func (a *HTTPErrorAdapter) WriteErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		w.WriteHeader(http.StatusOK)
		return
	}

	status := a.StatusCodeFor(err)
	payload := a.FormatErrorResponse(err)

	b, jerr := json.Marshal(payload)
	if jerr != nil {
		w.WriteHeader(status)
		_, _ = w.Write([]byte("{\"error\":\"internal error\"}"))
		return
	}

	if status >= http.StatusInternalServerError {
		a.logger.Error("HTTP request failed", "status", status, "path", r.URL.Path, "error", err)
	} else {
		a.logger.Warn("HTTP request rejected", "status", status, "path", r.URL.Path, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
