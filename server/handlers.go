package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/joeychilson/cisurl/client"
	urlutil "github.com/joeychilson/cisurl/url"
)

const maxRequestBodySize = 64 << 10

// FixRequest is the body of POST /v1/fix. URL is decoded loosely so that a non-string
// value is reported as invalid_type instead of a JSON error.
type FixRequest struct {
	URL     any  `json:"url"`
	Cascade bool `json:"cascade,omitempty"`
}

// FixResponse is returned by POST /v1/fix.
type FixResponse struct {
	URL string `json:"url"`
}

// ConvertRequest is the body of POST /v1/convert.
type ConvertRequest struct {
	URL  any    `json:"url"`
	Mode string `json:"mode,omitempty"`
}

// ErrorResponse represents an error.
type ErrorResponse struct {
	Error      string       `json:"error"`
	Kind       urlutil.Kind `json:"kind,omitempty"`
	StatusCode int          `json:"status_code"`
}

// handleFix handles POST /v1/fix requests.
func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	var req FixRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.logger.Debug("failed to decode request", "error", err)
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	rawURL, err := urlutil.AsString(req.URL)
	if err != nil {
		s.sendConversionError(w, err)
		return
	}

	fixed, err := s.client.Fix(rawURL, req.Cascade)
	if err != nil {
		s.sendConversionError(w, err)
		return
	}

	s.sendJSON(w, FixResponse{URL: fixed}, http.StatusOK)
}

// handleConvert handles POST /v1/convert requests.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	var req ConvertRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.logger.Debug("failed to decode request", "error", err)
		s.sendError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	mode, err := client.ParseMode(req.Mode)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	rawURL, err := urlutil.AsString(req.URL)
	if err != nil {
		s.sendConversionError(w, err)
		return
	}

	result, err := s.client.Convert(r.Context(), rawURL, mode)
	if err != nil {
		s.sendConversionError(w, err)
		return
	}

	s.logger.Info("convert completed", "url", rawURL, "mode", mode, "search_url", result.URL)
	s.sendJSON(w, result, http.StatusOK)
}

// handleHealth handles GET /health requests.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	}
	s.sendJSON(w, health, http.StatusOK)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	return json.NewDecoder(r.Body).Decode(v)
}

// statusForKind maps an error kind to the HTTP status returned for it.
func statusForKind(kind urlutil.Kind) int {
	switch kind {
	case urlutil.KindInvalidType,
		urlutil.KindEmptyInput,
		urlutil.KindMalformedURL,
		urlutil.KindNotAPIURL,
		urlutil.KindNotScheduleEndpoint,
		urlutil.KindNotExplorerURL,
		urlutil.KindNotExplorerScheduleURL,
		urlutil.KindInvalidCourseURLShape:
		return http.StatusBadRequest
	case urlutil.KindCourseNotFound:
		return http.StatusNotFound
	case urlutil.KindMissingSectionsMarker:
		return http.StatusUnprocessableEntity
	case urlutil.KindNetworkError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) sendConversionError(w http.ResponseWriter, err error) {
	var convErr *urlutil.Error
	if !errors.As(err, &convErr) {
		s.logger.Error("conversion failed", "error", err)
		s.sendError(w, "internal error", http.StatusInternalServerError)
		return
	}

	code := statusForKind(convErr.Kind)
	if code >= http.StatusInternalServerError {
		s.logger.Warn("conversion failed", "kind", convErr.Kind, "error", err)
	}

	s.sendJSON(w, ErrorResponse{
		Error:      convErr.Error(),
		Kind:       convErr.Kind,
		StatusCode: code,
	}, code)
}

func (s *Server) sendJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	s.sendJSON(w, ErrorResponse{
		Error:      message,
		StatusCode: statusCode,
	}, statusCode)
}
