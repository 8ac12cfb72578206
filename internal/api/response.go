// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/postviews/internal/logging"
	"github.com/tomtom215/postviews/internal/models"
	"github.com/tomtom215/postviews/internal/validation"
)

// Error codes for API responses
const (
	ErrCodeBadRequest       = "BAD_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeConflict         = "CONFLICT"
	ErrCodeTooManyRequests  = "TOO_MANY_REQUESTS"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeValidationFailed = "VALIDATION_ERROR"
)

// maxBodyBytes caps request bodies. Every body this API accepts is a small
// JSON object.
const maxBodyBytes = 4 * 1024

var errEmptyBody = errors.New("request body is empty")

func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("failed to write JSON response")
	}
}

// respondSuccess writes data in the success envelope. start is when the
// handler began, for query_time_ms.
func respondSuccess(w http.ResponseWriter, status int, data interface{}, start time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Warn().Str("code", code).Str("error", logging.SanitizeValue(err.Error())).Msg("API error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

func respondValidationError(w http.ResponseWriter, verr *validation.RequestValidationError) {
	apiErr := verr.ToAPIError()
	respondJSON(w, http.StatusBadRequest, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    apiErr.Code,
			Message: apiErr.Message,
			Details: apiErr.Details,
		},
	})
}

// decodeBody reads a JSON object into v. An empty body yields errEmptyBody.
func decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return errEmptyBody
	}
	if len(body) > maxBodyBytes {
		return errors.New("request body too large")
	}
	return json.Unmarshal(body, v)
}

// getIntParam extracts an integer query parameter with a default value.
// Missing, malformed and non-positive values yield the default.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return defaultValue
	}
	return n
}
