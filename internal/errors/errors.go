package errors

import (
	"errors"
	"fmt"
	"time"
)

// Category classifies a failure for recovery selection and user messaging.
type Category string

const (
	CategoryValidation     Category = "validation"
	CategoryAuthentication Category = "authentication"
	CategoryAuthorization  Category = "authorization"
	CategoryNetwork        Category = "network"
	CategoryTimeout        Category = "timeout"
	CategoryRateLimit      Category = "rate_limit"
	CategoryIntegration    Category = "integration"
	CategoryModel          Category = "model"
	CategoryBusinessRule   Category = "business_rule"
	CategoryWorkflow       Category = "workflow"
	CategoryState          Category = "state"
	CategoryNotFound       Category = "not_found"
	CategoryConflict       Category = "conflict"
	CategoryDataIntegrity  Category = "data_integrity"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Strategy is the recovery action selected for an error at construction time.
type Strategy string

const (
	StrategyNone             Strategy = "none"
	StrategyRetry            Strategy = "retry"
	StrategyRetryBackoff     Strategy = "retry_backoff"
	StrategyCircuitBreak     Strategy = "circuit_break"
	StrategyFallback         Strategy = "fallback"
	StrategyCompensate       Strategy = "compensate"
	StrategyIgnore           Strategy = "ignore"
	StrategyUserIntervention Strategy = "user_intervention"
)

type categoryDefault struct {
	severity  Severity
	strategy  Strategy
	retryable bool
}

// Per-category defaults. Every raised instance can override them, but the
// table is the single source of truth for unannotated errors.
var categoryDefaults = map[Category]categoryDefault{
	CategoryValidation:     {SeverityLow, StrategyUserIntervention, false},
	CategoryAuthentication: {SeverityMedium, StrategyUserIntervention, false},
	CategoryAuthorization:  {SeverityMedium, StrategyNone, false},
	CategoryNetwork:        {SeverityMedium, StrategyRetryBackoff, true},
	CategoryTimeout:        {SeverityMedium, StrategyRetryBackoff, true},
	CategoryRateLimit:      {SeverityMedium, StrategyRetryBackoff, true},
	CategoryIntegration:    {SeverityHigh, StrategyCircuitBreak, true},
	CategoryModel:          {SeverityHigh, StrategyFallback, false},
	CategoryBusinessRule:   {SeverityLow, StrategyUserIntervention, false},
	CategoryWorkflow:       {SeverityCritical, StrategyCompensate, false},
	CategoryState:          {SeverityCritical, StrategyCompensate, false},
	CategoryNotFound:       {SeverityLow, StrategyNone, false},
	CategoryConflict:       {SeverityMedium, StrategyRetry, true},
	CategoryDataIntegrity:  {SeverityCritical, StrategyCompensate, false},
}

// Error is the single tagged error record used across the agent. Category
// specific data (retry-after hints, resource ids) lives in Context rather
// than in subtypes.
type Error struct {
	Code       string
	Category   Category
	Severity   Severity
	Strategy   Strategy
	Retryable  bool
	RetryAfter time.Duration
	Context    map[string]any
	Message    string
	Technical  string
	cause      error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s/%s] %s: %v", e.Category, e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s/%s] %s", e.Category, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an error with the category's default severity, strategy and
// retryability.
func New(category Category, code, message string) *Error {
	def, ok := categoryDefaults[category]
	if !ok {
		def = categoryDefault{SeverityMedium, StrategyNone, false}
	}
	return &Error{
		Code:      code,
		Category:  category,
		Severity:  def.severity,
		Strategy:  def.strategy,
		Retryable: def.retryable,
		Message:   message,
	}
}

func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

func (e *Error) WithSeverity(s Severity) *Error {
	e.Severity = s
	return e
}

func (e *Error) WithStrategy(s Strategy) *Error {
	e.Strategy = s
	return e
}

func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

func (e *Error) WithRetryAfter(d time.Duration) *Error {
	e.RetryAfter = d
	return e
}

func (e *Error) WithTechnical(detail string) *Error {
	e.Technical = detail
	return e
}

func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// Category constructors.

func Validation(code, message string) *Error {
	return New(CategoryValidation, code, message)
}

func Authentication(code, message string) *Error {
	return New(CategoryAuthentication, code, message)
}

func Authorization(code, message string) *Error {
	return New(CategoryAuthorization, code, message)
}

func Network(code, message string) *Error {
	return New(CategoryNetwork, code, message)
}

func Timeout(code, message string) *Error {
	return New(CategoryTimeout, code, message)
}

func RateLimit(code, message string) *Error {
	return New(CategoryRateLimit, code, message)
}

func Integration(code, message string) *Error {
	return New(CategoryIntegration, code, message)
}

func Model(code, message string) *Error {
	return New(CategoryModel, code, message)
}

func BusinessRule(code, message string) *Error {
	return New(CategoryBusinessRule, code, message)
}

func Workflow(code, message string) *Error {
	return New(CategoryWorkflow, code, message)
}

func State(code, message string) *Error {
	return New(CategoryState, code, message)
}

func NotFound(code, message string) *Error {
	return New(CategoryNotFound, code, message)
}

func Conflict(code, message string) *Error {
	return New(CategoryConflict, code, message)
}

func DataIntegrity(code, message string) *Error {
	return New(CategoryDataIntegrity, code, message)
}

// As extracts the tagged record from any error chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCategory reports whether err carries the given category.
func IsCategory(err error, category Category) bool {
	if e, ok := As(err); ok {
		return e.Category == category
	}
	return false
}

// IsRetryable reports whether a retry could possibly succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if e, ok := As(err); ok {
		return e.Retryable
	}
	return false
}

// Wrap annotates err with a message without changing its classification.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
