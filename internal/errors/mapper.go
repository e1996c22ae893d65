package errors

import (
	"context"
	"errors"
	"strings"
)

// From coerces any error into the tagged taxonomy. Errors already carrying a
// record pass through; foreign errors are classified by message content the
// same way external SDK errors reach us: as opaque strings.
func From(err error) *Error {
	if err == nil {
		return nil
	}

	if e, ok := As(err); ok {
		return e
	}

	if errors.Is(err, context.Canceled) {
		return Timeout("CANCELLED", "operation cancelled").WithCause(err).WithRetryable(false)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout("DEADLINE_EXCEEDED", "operation timed out").WithCause(err)
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "not found"), strings.Contains(errStr, "does not exist"):
		return NotFound("RESOURCE_NOT_FOUND", "resource not found").WithCause(err)

	case strings.Contains(errStr, "unauthorized"), strings.Contains(errStr, "unauthenticated"):
		return Authentication("AUTH_REQUIRED", "authentication required").WithCause(err)

	case strings.Contains(errStr, "permission denied"), strings.Contains(errStr, "forbidden"):
		return Authorization("ACCESS_DENIED", "access denied").WithCause(err)

	case strings.Contains(errStr, "rate limit"), strings.Contains(errStr, "quota"), strings.Contains(errStr, "too many requests"):
		return RateLimit("RATE_LIMITED", "rate limited").WithCause(err)

	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return Timeout("REQUEST_TIMEOUT", "request timed out").WithCause(err)

	case strings.Contains(errStr, "network"), strings.Contains(errStr, "connection"), strings.Contains(errStr, "unreachable"):
		return Network("NETWORK_ERROR", "network error").WithCause(err)

	case strings.Contains(errStr, "conflict"), strings.Contains(errStr, "already exists"):
		return Conflict("CONFLICT", "conflicting update").WithCause(err)

	case strings.Contains(errStr, "invalid input"), strings.Contains(errStr, "invalid request"), strings.Contains(errStr, "bad request"):
		return Validation("INVALID_INPUT", "invalid input").WithCause(err)

	case strings.Contains(errStr, "model"), strings.Contains(errStr, "completion"), strings.Contains(errStr, "inference"):
		return Model("MODEL_ERROR", "model invocation failed").WithCause(err)

	default:
		return Integration("UPSTREAM_ERROR", "upstream dependency failed").WithCause(err)
	}
}
