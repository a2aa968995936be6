// Package handlers implements the tripmesh HTTP API: agent discovery,
// budget negotiation, task coordination, and health endpoints, all sharing
// one JSON response envelope.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tripmesh/tripmesh/types"
)

// Response is the uniform API response envelope.
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo is the serialized error payload.
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

// WriteJSON writes a JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 envelope around data.
func WriteSuccess(w http.ResponseWriter, r *http.Request, data any) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
		RequestID: RequestIDFrom(r.Context()),
	})
}

// WriteError writes an error envelope from a *types.Error.
func WriteError(w http.ResponseWriter, r *http.Request, err *types.Error, logger *zap.Logger) {
	status := err.HTTPStatus
	if status == 0 {
		status = mapErrorCodeToHTTPStatus(err.Code)
	}

	if logger != nil {
		logger.Error("API error",
			zap.String("code", string(err.Code)),
			zap.String("message", err.Message),
			zap.Int("status", status),
			zap.Bool("retryable", err.Retryable),
			zap.Error(err.Cause),
		)
	}

	WriteJSON(w, status, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:      string(err.Code),
			Message:   err.Message,
			Retryable: err.Retryable,
		},
		Timestamp: time.Now(),
		RequestID: RequestIDFrom(r.Context()),
	})
}

// WriteErrorFrom writes an error envelope from any error, wrapping
// non-structured ones as internal.
func WriteErrorFrom(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	var apiErr *types.Error
	if !errors.As(err, &apiErr) {
		apiErr = types.NewError(types.ErrInternal, "internal error").WithCause(err)
	}
	WriteError(w, r, apiErr, logger)
}

func mapErrorCodeToHTTPStatus(code types.ErrorCode) int {
	switch code {
	case types.ErrValidation, types.ErrUnsupportedTask:
		return http.StatusBadRequest
	case types.ErrAgentNotFound:
		return http.StatusNotFound
	case types.ErrAgentUnreachable:
		return http.StatusBadGateway
	case types.ErrRegistryFault:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSONBody decodes a JSON request body into dst, rejecting unknown
// fields. On failure it writes the error response and returns the error.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) error {
	if r.Body == nil {
		err := types.NewError(types.ErrValidation, "request body is empty")
		WriteError(w, r, err, logger)
		return err
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		apiErr := types.NewError(types.ErrValidation, "invalid JSON body").
			WithCause(err).
			WithHTTPStatus(http.StatusBadRequest)
		WriteError(w, r, apiErr, logger)
		return apiErr
	}

	return nil
}

// ResponseWriter wraps http.ResponseWriter to capture the status code for
// the logging and metrics middleware.
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Written    bool
}

// NewResponseWriter wraps w with a default status of 200.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{
		ResponseWriter: w,
		StatusCode:     http.StatusOK,
	}
}

func (rw *ResponseWriter) WriteHeader(code int) {
	if !rw.Written {
		rw.StatusCode = code
		rw.Written = true
		rw.ResponseWriter.WriteHeader(code)
	}
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(http.StatusOK)
	}
	return rw.ResponseWriter.Write(b)
}
