// Package http provides HTTP server and handler implementations.
//
// This file implements a small builder for JSON responses and the mapping
// from domain errors to HTTP status codes.

package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"minshare/internal/auth"
	"minshare/internal/core"
	"minshare/internal/docstore"
)

// errNotApplied is the message shown when a write failed in the store.
const errNotApplied = "Change not applied, please retry"

// ResponseBuilder provides a fluent API for building JSON responses.
type ResponseBuilder struct {
	statusCode int
	headers    map[string]string
	body       any
}

// NewResponse creates a new response builder with default 200 status.
func NewResponse() *ResponseBuilder {
	return &ResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

// Status sets the HTTP status code for the response.
func (b *ResponseBuilder) Status(code int) *ResponseBuilder {
	b.statusCode = code
	return b
}

// Header adds a custom header to the response.
func (b *ResponseBuilder) Header(name, value string) *ResponseBuilder {
	b.headers[name] = value
	return b
}

// JSON sets v as the response body.
func (b *ResponseBuilder) JSON(v any) *ResponseBuilder {
	b.body = v
	return b
}

// StatusCode returns the status that Write will send.
func (b *ResponseBuilder) StatusCode() int { return b.statusCode }

// Write sends the built response to the http.ResponseWriter.
func (b *ResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.body == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	data, err := json.Marshal(b.body)
	if err != nil {
		http.Error(w, `{"error":"encode response","code":"internal_error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_, _ = w.Write(append(data, '\n'))
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ErrorResponse creates a standard JSON error response.
func ErrorResponse(statusCode int, code, message string) *ResponseBuilder {
	return NewResponse().Status(statusCode).JSON(ErrorBody{Error: message, Code: code})
}

// BadRequestError creates a 400 Bad Request error response.
func BadRequestError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusBadRequest, "bad_request", message)
}

// UnauthorizedError creates a 401 response for calls without identity.
func UnauthorizedError() *ResponseBuilder {
	return ErrorResponse(http.StatusUnauthorized, "unauthenticated", "Sign in required")
}

// ForbiddenError creates a 403 response for non-privileged callers.
func ForbiddenError() *ResponseBuilder {
	return ErrorResponse(http.StatusForbidden, "forbidden", "Admin access required")
}

// NotFoundError creates a 404 Not Found error response.
func NotFoundError(message string) *ResponseBuilder {
	return ErrorResponse(http.StatusNotFound, "not_found", message)
}

// TooManyRequestsError creates a 429 response.
func TooManyRequestsError() *ResponseBuilder {
	return ErrorResponse(http.StatusTooManyRequests, "rate_limited", "Rate limit exceeded. Please try again later.")
}

// InternalServerError creates a 500 response telling the caller nothing changed.
func InternalServerError() *ResponseBuilder {
	return ErrorResponse(http.StatusInternalServerError, "not_applied", errNotApplied)
}

type errorMapping struct {
	err    error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{errMalformedBody, http.StatusBadRequest, "malformed_body"},
	{core.ErrInvalidPeriod, http.StatusBadRequest, "invalid_period"},
	{core.ErrEmptyMemberID, http.StatusBadRequest, "invalid_member"},
	{auth.ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated"},
	{docstore.ErrNotFound, http.StatusNotFound, "not_found"},
	{docstore.ErrAlreadyAllocated, http.StatusConflict, "already_allocated"},
	{core.ErrInvalidAmount, http.StatusUnprocessableEntity, "invalid_amount"},
	{core.ErrUsageLimit, http.StatusUnprocessableEntity, "usage_limit"},
	{core.ErrInvalidTarget, http.StatusUnprocessableEntity, "invalid_target"},
	{core.ErrDescriptionTooLong, http.StatusUnprocessableEntity, "description_too_long"},
	{core.ErrMissingName, http.StatusUnprocessableEntity, "missing_name"},
	{core.ErrMissingEmail, http.StatusUnprocessableEntity, "missing_email"},
	{core.ErrInvalidEmail, http.StatusUnprocessableEntity, "invalid_email"},
	{core.ErrMissingMessage, http.StatusUnprocessableEntity, "missing_message"},
}

// FromError maps err to its response. Unknown errors are store failures.
func FromError(err error) *ResponseBuilder {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return ErrorResponse(m.status, m.code, m.err.Error())
		}
	}
	return InternalServerError()
}
