package bybit

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-zero retCode returned by the v5 API
type APIError struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Operation string `json:"operation,omitempty"`
}

func (e *APIError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("bybit %s: error %d: %s", e.Operation, e.Code, e.Message)
	}
	return fmt.Sprintf("bybit error %d: %s", e.Code, e.Message)
}

// Bybit v5 error codes the engine reacts to
const (
	ErrCodeInvalidAPIKey       = 10003
	ErrCodeInvalidSignature    = 10004
	ErrCodeInvalidTimestamp    = 10005
	ErrCodeRateLimitExceeded   = 10006
	ErrCodeOrderNotFound       = 110001
	ErrCodeInsufficientBalance = 110007
	ErrCodeSymbolNotFound      = 110009
	ErrCodeInvalidQuantity     = 110020
	ErrCodeLeverageNotModified = 110043
)

func newAPIError(operation string, code int, msg string) error {
	if code == 0 {
		return nil
	}
	return &APIError{Code: code, Message: msg, Operation: operation}
}

func asAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}

// IsRetryableError reports rate limits and upstream 5xx failures
func IsRetryableError(err error) bool {
	if apiErr, ok := asAPIError(err); ok {
		switch apiErr.Code {
		case ErrCodeRateLimitExceeded,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "timeout") || strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "eof")
}

// IsAuthenticationError checks key, signature and timestamp rejections
func IsAuthenticationError(err error) bool {
	if apiErr, ok := asAPIError(err); ok {
		switch apiErr.Code {
		case ErrCodeInvalidAPIKey, ErrCodeInvalidSignature, ErrCodeInvalidTimestamp:
			return true
		}
	}
	return false
}

// IsInsufficientBalanceError checks if the error is due to insufficient balance
func IsInsufficientBalanceError(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Code == ErrCodeInsufficientBalance
}

// IsOrderNotFoundError checks if the error is due to order not found
func IsOrderNotFoundError(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Code == ErrCodeOrderNotFound
}

// IsSymbolNotFoundError checks for unknown instruments
func IsSymbolNotFoundError(err error) bool {
	apiErr, ok := asAPIError(err)
	return ok && apiErr.Code == ErrCodeSymbolNotFound
}
