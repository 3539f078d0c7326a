package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/BaSui01/qaflow/types"
	"go.uber.org/zap"
)

// Response is the unified API response envelope.
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorInfo  `json:"error,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
	RequestID string      `json:"request_id,omitempty"`
}

// ErrorInfo carries error details in a Response.
type ErrorInfo struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Retryable  bool   `json:"retryable,omitempty"`
	HTTPStatus int    `json:"-"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)

	// Headers are already written; an encode failure can only be dropped.
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 response with the standard envelope.
func WriteSuccess(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusOK, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// WriteCreated writes a 201 response with the standard envelope.
func WriteCreated(w http.ResponseWriter, data interface{}) {
	WriteJSON(w, http.StatusCreated, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// WriteError writes an error response from a types.Error.
func WriteError(w http.ResponseWriter, err *types.Error, logger *zap.Logger) {
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
			Code:       string(err.Code),
			Message:    err.Message,
			Retryable:  err.Retryable,
			HTTPStatus: status,
		},
		Timestamp: time.Now(),
	})
}

// WriteErrorMessage writes a simple error response.
func WriteErrorMessage(w http.ResponseWriter, status int, code types.ErrorCode, message string, logger *zap.Logger) {
	WriteError(w, types.NewError(code, message).WithHTTPStatus(status), logger)
}

// WriteAnyError writes an error response from any error, converting
// plain errors to internal errors.
func WriteAnyError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var typed *types.Error
	if errors.As(err, &typed) {
		WriteError(w, typed, logger)
		return
	}
	WriteError(w, types.NewError(types.ErrInternalError, err.Error()), logger)
}

func mapErrorCodeToHTTPStatus(code types.ErrorCode) int {
	switch code {
	// 4xx client errors
	case types.ErrInvalidRequest:
		return http.StatusBadRequest
	case types.ErrAuthentication, types.ErrUnauthorized:
		return http.StatusUnauthorized
	case types.ErrForbidden:
		return http.StatusForbidden
	case types.ErrRunNotFound:
		return http.StatusNotFound
	case types.ErrRateLimited:
		return http.StatusTooManyRequests
	case types.ErrQuotaExceeded:
		return http.StatusPaymentRequired
	case types.ErrContentFiltered:
		return http.StatusUnprocessableEntity

	// 5xx server errors
	case types.ErrTimeout, types.ErrUpstreamTimeout:
		return http.StatusGatewayTimeout
	case types.ErrModelOverloaded, types.ErrProviderUnavailable:
		return http.StatusServiceUnavailable
	case types.ErrUpstreamError, types.ErrScriptGeneration, types.ErrReportValidation:
		return http.StatusBadGateway
	case types.ErrScriptExecution, types.ErrInternalError:
		return http.StatusInternalServerError

	default:
		return http.StatusInternalServerError
	}
}

// DecodeJSONBody decodes a JSON request body in strict mode, writing the
// error response itself on failure.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}, logger *zap.Logger) error {
	if r.Body == nil {
		err := types.NewError(types.ErrInvalidRequest, "request body is empty")
		WriteError(w, err, logger)
		return err
	}

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		apiErr := types.NewError(types.ErrInvalidRequest, "invalid JSON body").
			WithCause(err).
			WithHTTPStatus(http.StatusBadRequest)
		WriteError(w, apiErr, logger)
		return apiErr
	}
	return nil
}

// ResponseWriter wraps http.ResponseWriter to capture the status code.
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode int
	Written    bool
}

// NewResponseWriter creates a capturing ResponseWriter.
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

// Unwrap lets http.ResponseController reach the underlying writer, which
// WebSocket upgrades need for hijacking.
func (rw *ResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}
