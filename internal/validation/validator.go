// Postviews - Post Engagement and View Tracking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/postviews

// Package validation validates caller input with go-playground/validator v10.
//
// A single validator instance is shared process-wide; it caches struct
// metadata and is safe for concurrent use. Two custom tags are registered:
//
//   - viewsource: value is one of the known models.Source names
//   - postid: non-blank, no whitespace, control characters or '/'
//
// Example:
//
//	req := TrackViewRequest{PostID: id, Source: "feed"}
//	if err := validation.ValidateStruct(&req); err != nil {
//	    apiErr := err.ToAPIError()
//	    respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, nil)
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/postviews/internal/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// ValidationError is a single failed field.
type ValidationError struct {
	field   string
	tag     string
	param   string
	value   interface{}
	message string
}

// Field returns the (json) name of the field that failed.
func (e *ValidationError) Field() string { return e.field }

// Tag returns the validation tag that failed.
func (e *ValidationError) Tag() string { return e.tag }

// Param returns the tag parameter, e.g. "128" for max=128.
func (e *ValidationError) Param() string { return e.param }

// Value returns the rejected value.
func (e *ValidationError) Value() interface{} { return e.value }

func (e *ValidationError) Error() string { return e.message }

// RequestValidationError collects every failed field of one struct.
type RequestValidationError struct {
	errors []ValidationError
}

// Errors returns the individual field errors.
func (ve *RequestValidationError) Errors() []ValidationError {
	return ve.errors
}

func (ve *RequestValidationError) Error() string {
	if len(ve.errors) == 0 {
		return "validation failed"
	}
	msgs := make([]string, 0, len(ve.errors))
	for _, e := range ve.errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// APIError mirrors models.APIError for handlers.
type APIError struct {
	Code    string
	Message string
	Details map[string]interface{}
}

// ToAPIError converts the errors to the VALIDATION_ERROR response shape.
func (ve *RequestValidationError) ToAPIError() *APIError {
	if len(ve.errors) == 1 {
		e := ve.errors[0]
		return &APIError{
			Code:    "VALIDATION_ERROR",
			Message: e.message,
			Details: map[string]interface{}{"field": e.field, "tag": e.tag},
		}
	}
	fields := make([]map[string]interface{}, len(ve.errors))
	for i, e := range ve.errors {
		fields[i] = map[string]interface{}{"field": e.field, "tag": e.tag, "message": e.message}
	}
	return &APIError{
		Code:    "VALIDATION_ERROR",
		Message: ve.Error(),
		Details: map[string]interface{}{"fields": fields},
	}
}

// GetValidator returns the shared validator.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(jsonFieldName)
		// Registration only fails for empty tags or nil funcs.
		_ = validate.RegisterValidation("viewsource", isViewSource)
		_ = validate.RegisterValidation("postid", isPostID)
	})
	return validate
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "" || name == "-" {
		return f.Name
	}
	return name
}

func isViewSource(fl validator.FieldLevel) bool {
	return models.Source(fl.Field().String()).Valid()
}

func isPostID(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if strings.TrimSpace(s) == "" {
		return false
	}
	for _, r := range s {
		if r == '/' || unicode.IsSpace(r) || unicode.IsControl(r) {
			return false
		}
	}
	return true
}

// ValidateStruct validates s. It returns nil when s is valid.
func ValidateStruct(s interface{}) *RequestValidationError {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &RequestValidationError{errors: []ValidationError{{
			field:   "unknown",
			tag:     "unknown",
			message: err.Error(),
		}}}
	}

	out := make([]ValidationError, len(verrs))
	for i, fe := range verrs {
		out[i] = ValidationError{
			field:   fe.Field(),
			tag:     fe.Tag(),
			param:   fe.Param(),
			value:   fe.Value(),
			message: translateError(fe),
		}
	}
	return &RequestValidationError{errors: out}
}

// ViewInput is the argument set shared by every view-recording call.
type ViewInput struct {
	PostID string `json:"postId" validate:"postid,max=128"`
	Source string `json:"source" validate:"viewsource"`
	UserID string `json:"userId" validate:"omitempty,max=128,printascii"`
}

// ValidateView checks the arguments of a view-recording call.
func ValidateView(postID string, source models.Source, userID string) *RequestValidationError {
	return ValidateStruct(&ViewInput{PostID: postID, Source: string(source), UserID: userID})
}

var errorMessageTemplates = map[string]string{
	"required":   "%s is required",
	"viewsource": "%s must be one of: feed modal profile search bookmark notification",
	"postid":     "%s must be a non-empty identifier without spaces or '/'",
	"printascii": "%s must contain printable ASCII only",
}

var errorMessageWithParam = map[string]string{
	"oneof": "%s must be one of: %s",
	"gte":   "%s must be greater than or equal to %s",
	"lte":   "%s must be less than or equal to %s",
}

func translateError(fe validator.FieldError) string {
	field, tag, param := fe.Field(), fe.Tag(), fe.Param()

	if tmpl, ok := errorMessageTemplates[tag]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	if tmpl, ok := errorMessageWithParam[tag]; ok {
		return fmt.Sprintf(tmpl, field, param)
	}

	isString := fe.Kind() == reflect.String
	switch tag {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at least %s", field, param)
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, param)
		}
		return fmt.Sprintf("%s must be at most %s", field, param)
	default:
		return fmt.Sprintf("%s failed %s validation", field, tag)
	}
}
