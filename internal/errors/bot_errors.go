package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"sync"
)

// ErrorCategory represents different types of errors that can occur
type ErrorCategory string

const (
	// Fatal at startup or whenever seen
	ErrorCategoryFatal         ErrorCategory = "FATAL"
	ErrorCategoryCredentials   ErrorCategory = "CREDENTIALS"
	ErrorCategoryConfiguration ErrorCategory = "CONFIG"

	// Engine outcomes that are handled in-cycle
	ErrorCategoryInsufficientData ErrorCategory = "INSUFFICIENT_DATA"
	ErrorCategoryRiskVeto         ErrorCategory = "RISK_VETO"
	ErrorCategoryReconciliation   ErrorCategory = "RECONCILIATION"
	ErrorCategoryValidation       ErrorCategory = "VALIDATION"
	ErrorCategoryOrder            ErrorCategory = "ORDER"
	ErrorCategoryPosition         ErrorCategory = "POSITION"

	// Gateway failures, retried with backoff
	ErrorCategoryGateway   ErrorCategory = "GATEWAY"
	ErrorCategoryNetwork   ErrorCategory = "NETWORK"
	ErrorCategoryTimeout   ErrorCategory = "TIMEOUT"
	ErrorCategoryRateLimit ErrorCategory = "RATE_LIMIT"
	ErrorCategoryTemporary ErrorCategory = "TEMPORARY"
)

// BotError represents a categorized error with context
type BotError struct {
	Category   ErrorCategory
	Component  string
	Operation  string
	Message    string
	Underlying error
	Context    map[string]interface{}
	Retryable  bool
}

// Error implements the error interface
func (e *BotError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *BotError) Unwrap() error {
	return e.Underlying
}

// IsRetryable returns whether this error can be retried
func (e *BotError) IsRetryable() bool {
	return e.Retryable
}

// IsFatal returns whether this error should stop the engine
func (e *BotError) IsFatal() bool {
	return e.Category == ErrorCategoryFatal ||
		e.Category == ErrorCategoryCredentials ||
		e.Category == ErrorCategoryConfiguration
}

// NewBotError creates a new categorized error
func NewBotError(category ErrorCategory, component, operation, message string) *BotError {
	return &BotError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
		Context:   make(map[string]interface{}),
		Retryable: isRetryableCategory(category),
	}
}

// WrapError wraps an existing error with bot error context
func WrapError(err error, category ErrorCategory, component, operation string) *BotError {
	if err == nil {
		return nil
	}
	return &BotError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
		Context:    make(map[string]interface{}),
		Retryable:  isRetryableCategory(category),
	}
}

// WithContext adds context information to the error
func (e *BotError) WithContext(key string, value interface{}) *BotError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRetryable sets the retryable flag
func (e *BotError) WithRetryable(retryable bool) *BotError {
	e.Retryable = retryable
	return e
}

func isRetryableCategory(category ErrorCategory) bool {
	switch category {
	case ErrorCategoryGateway, ErrorCategoryNetwork, ErrorCategoryTimeout,
		ErrorCategoryTemporary, ErrorCategoryRateLimit:
		return true
	}
	return false
}

// temporary is implemented by gateway errors that know whether a retry can help
type temporary interface {
	Temporary() bool
}

// CategorizeError attempts to categorize a generic error
func CategorizeError(err error, component, operation string) *BotError {
	if err == nil {
		return nil
	}

	var botErr *BotError
	if stderrors.As(err, &botErr) {
		return botErr
	}

	errMsg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errMsg, "context canceled"):
		return WrapError(err, ErrorCategoryTemporary, component, operation).WithRetryable(false)
	case strings.Contains(errMsg, "insufficient data"):
		return WrapError(err, ErrorCategoryInsufficientData, component, operation)
	case strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline exceeded"):
		return WrapError(err, ErrorCategoryTimeout, component, operation)
	case strings.Contains(errMsg, "rate limit") || strings.Contains(errMsg, "too many requests"):
		return WrapError(err, ErrorCategoryRateLimit, component, operation)
	case strings.Contains(errMsg, "api key") || strings.Contains(errMsg, "api secret") ||
		strings.Contains(errMsg, "authentication") || strings.Contains(errMsg, "unauthorized"):
		return WrapError(err, ErrorCategoryCredentials, component, operation)
	case strings.Contains(errMsg, "insufficient") || strings.Contains(errMsg, "balance"):
		return WrapError(err, ErrorCategoryOrder, component, operation)
	}

	var tmp temporary
	if stderrors.As(err, &tmp) {
		return WrapError(err, ErrorCategoryGateway, component, operation).WithRetryable(tmp.Temporary())
	}

	switch {
	case strings.Contains(errMsg, "connection") || strings.Contains(errMsg, "network") ||
		strings.Contains(errMsg, "dns") || strings.Contains(errMsg, "dial") || strings.Contains(errMsg, "eof"):
		return WrapError(err, ErrorCategoryNetwork, component, operation)
	case strings.Contains(errMsg, "invalid") || strings.Contains(errMsg, "minimum") ||
		strings.Contains(errMsg, "maximum"):
		return WrapError(err, ErrorCategoryValidation, component, operation)
	}

	return WrapError(err, ErrorCategoryTemporary, component, operation)
}

// IsRetryable reports whether err, once categorized, may be retried
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return CategorizeError(err, "", "").Retryable
}

// HasCategory reports whether any BotError in err's chain has the category
func HasCategory(err error, category ErrorCategory) bool {
	for err != nil {
		if botErr, ok := err.(*BotError); ok && botErr.Category == category {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// Common error constructors
func NewGatewayError(component, operation string, err error) *BotError {
	return WrapError(err, ErrorCategoryGateway, component, operation)
}

func NewInsufficientDataError(component, operation string, err error) *BotError {
	return WrapError(err, ErrorCategoryInsufficientData, component, operation)
}

func NewRiskVetoError(component, rule, reason string) *BotError {
	return NewBotError(ErrorCategoryRiskVeto, component, "evaluate", reason).WithContext("rule", rule)
}

func NewReconciliationError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategoryReconciliation, component, operation, message)
}

func NewValidationError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategoryValidation, component, operation, message)
}

func NewConfigurationError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategoryConfiguration, component, operation, message)
}

func NewCredentialsError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategoryCredentials, component, operation, message)
}

func NewOrderError(component, operation string, err error) *BotError {
	return WrapError(err, ErrorCategoryOrder, component, operation)
}

func NewPositionError(component, operation string, err error) *BotError {
	return WrapError(err, ErrorCategoryPosition, component, operation)
}

func NewFatalError(component, operation, message string) *BotError {
	return NewBotError(ErrorCategoryFatal, component, operation, message)
}

// RecoveryAction is what the engine does after an error
type RecoveryAction string

const (
	RecoveryActionRetry  RecoveryAction = "RETRY"
	RecoveryActionSkip   RecoveryAction = "SKIP"
	RecoveryActionStop   RecoveryAction = "STOP"
	RecoveryActionWait   RecoveryAction = "WAIT"
	RecoveryActionAdopt  RecoveryAction = "ADOPT"
	RecoveryActionNotify RecoveryAction = "NOTIFY"
)

// GetRecoveryAction suggests a recovery action based on error category
func (e *BotError) GetRecoveryAction() RecoveryAction {
	switch e.Category {
	case ErrorCategoryFatal, ErrorCategoryCredentials, ErrorCategoryConfiguration:
		return RecoveryActionStop
	case ErrorCategoryRateLimit:
		return RecoveryActionWait
	case ErrorCategoryGateway, ErrorCategoryNetwork, ErrorCategoryTimeout, ErrorCategoryTemporary:
		if e.Retryable {
			return RecoveryActionRetry
		}
		return RecoveryActionSkip
	case ErrorCategoryReconciliation:
		return RecoveryActionAdopt
	case ErrorCategoryRiskVeto:
		return RecoveryActionNotify
	}
	return RecoveryActionSkip
}

// ErrorStats tracks error statistics. Safe for concurrent use.
type ErrorStats struct {
	mu               sync.Mutex
	totalErrors      int
	errorsByCategory map[ErrorCategory]int
	recent           []*BotError
	maxRecent        int
}

// NewErrorStats creates a new error statistics tracker
func NewErrorStats(maxRecentErrors int) *ErrorStats {
	return &ErrorStats{
		errorsByCategory: make(map[ErrorCategory]int),
		recent:           make([]*BotError, 0, maxRecentErrors),
		maxRecent:        maxRecentErrors,
	}
}

// RecordError records an error in the statistics
func (es *ErrorStats) RecordError(err *BotError) {
	es.mu.Lock()
	defer es.mu.Unlock()
	es.totalErrors++
	es.errorsByCategory[err.Category]++
	es.recent = append(es.recent, err)
	if len(es.recent) > es.maxRecent {
		es.recent = es.recent[1:]
	}
}

// Total returns the number of recorded errors
func (es *ErrorStats) Total() int {
	es.mu.Lock()
	defer es.mu.Unlock()
	return es.totalErrors
}

// GetErrorRate returns the share of errors in a category
func (es *ErrorStats) GetErrorRate(category ErrorCategory) float64 {
	es.mu.Lock()
	defer es.mu.Unlock()
	if es.totalErrors == 0 {
		return 0.0
	}
	return float64(es.errorsByCategory[category]) / float64(es.totalErrors)
}

// HasRecentErrors checks if at least count recent errors have the category
func (es *ErrorStats) HasRecentErrors(category ErrorCategory, count int) bool {
	es.mu.Lock()
	defer es.mu.Unlock()
	n := 0
	for _, err := range es.recent {
		if err.Category == category {
			n++
		}
	}
	return n >= count
}
