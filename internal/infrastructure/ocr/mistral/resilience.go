package mistral

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/akulikov/autograder/internal/core/domain"
	"github.com/akulikov/autograder/internal/infrastructure/resilience"
)

// classifyProviderError drives retry/breaker behavior. Rate limits and
// server-side failures are worth retrying; tier rejections are configuration
// facts and retrying them only burns quota.
func classifyProviderError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	if resilience.IsCircuitOpen(err) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		case statusErr.StatusCode >= 500:
			return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
		default:
			return resilience.ErrorClassification{}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

// mapProviderError converts transport failures into the extraction error
// kinds the pipeline distinguishes.
func mapProviderError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return domain.WrapError(domain.ErrTransient, operation, err)
	}
	if resilience.IsCircuitOpen(err) {
		return domain.WrapError(domain.ErrTransient, operation, err)
	}

	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusTooManyRequests:
			return domain.WrapError(domain.ErrRateLimited, operation, err)
		case statusErr.StatusCode == http.StatusUnauthorized, statusErr.StatusCode == http.StatusForbidden:
			return domain.WrapError(domain.ErrTierUnsupported, operation, err)
		case statusErr.StatusCode >= 500:
			return domain.WrapError(domain.ErrTransient, operation, err)
		default:
			return domain.WrapError(domain.ErrMalformed, operation, err)
		}
	}

	var decErr *decodeError
	if errors.As(err, &decErr) {
		return domain.WrapError(domain.ErrMalformed, operation, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.WrapError(domain.ErrTransient, operation, err)
	}
	return domain.WrapError(domain.ErrTransient, operation, err)
}
