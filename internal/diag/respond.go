// Perfcore - Performance Infrastructure Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/perfcore

package diag

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/perfcore/internal/logging"
	"github.com/tomtom215/perfcore/internal/validation"
)

// Error codes returned in the envelope.
const (
	CodeValidation  = "VALIDATION_ERROR"
	CodeNotFound    = "NOT_FOUND"
	CodeRateLimited = "RATE_LIMITED"
	CodeInternal    = "INTERNAL_ERROR"
)

// DefaultWindow applies when the window query parameter is absent.
const DefaultWindow = time.Hour

// Response is the JSON envelope of every diagnostics route.
type Response struct {
	Status   string               `json:"status"`
	Data     interface{}          `json:"data,omitempty"`
	Metadata Metadata             `json:"metadata"`
	Error    *validation.APIError `json:"error,omitempty"`
}

// Metadata accompanies every response.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// sanitizeLogValue escapes control characters so client input cannot forge log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (rt *router) metadata(r *http.Request) Metadata {
	return Metadata{
		Timestamp: rt.clock.Now().UTC(),
		RequestID: logging.RequestIDFromContext(r.Context()),
	}
}

func (rt *router) respondData(w http.ResponseWriter, r *http.Request, data interface{}) {
	writeJSON(w, http.StatusOK, &Response{
		Status:   "success",
		Data:     data,
		Metadata: rt.metadata(r),
	})
}

func (rt *router) respondError(w http.ResponseWriter, r *http.Request, status int, apiErr *validation.APIError) {
	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().
			Str("code", apiErr.Code).
			Str("message", sanitizeLogValue(apiErr.Message)).
			Msg("Diagnostics request failed")
	}
	writeJSON(w, status, &Response{
		Status:   "error",
		Metadata: rt.metadata(r),
		Error:    apiErr,
	})
}

func (rt *router) notFound(w http.ResponseWriter, r *http.Request, what, id string) {
	rt.respondError(w, r, http.StatusNotFound, &validation.APIError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", what),
		Details: map[string]interface{}{"id": id},
	})
}

// writeJSON writes resp with status. Marshal failures become a bare 500.
func writeJSON(w http.ResponseWriter, status int, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

// windowQuery is the validated form of the window query parameter.
type windowQuery struct {
	Window string `json:"window" validate:"window"`
}

// parseWindow reads ?window=, falling back to DefaultWindow.
func parseWindow(r *http.Request) (time.Duration, *validation.APIError) {
	raw := r.URL.Query().Get("window")
	if raw == "" {
		return DefaultWindow, nil
	}
	q := windowQuery{Window: raw}
	if verr := validation.ValidateStruct(&q); verr != nil {
		return 0, verr.ToAPIError()
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, &validation.APIError{Code: CodeValidation, Message: err.Error()}
	}
	return d, nil
}

// getIntParam reads an integer query parameter clamped to [1, maxValue].
func getIntParam(r *http.Request, key string, defaultValue, maxValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return defaultValue
	}
	if n > maxValue {
		return maxValue
	}
	return n
}
