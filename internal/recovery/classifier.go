// Package recovery classifies failures and re-runs failed work.
//
// This package contains:
//   - Classifier: maps any error into the closed domain.AppError taxonomy
//   - Coordinator: per-key retry ledger with fixed-delay re-invocation
package recovery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/vietddude/syncwatch/internal/core/domain"
	"github.com/vietddude/syncwatch/internal/metrics"
)

var defaultThrottlePatterns = []string{
	"rate limit exceeded",
	"too many requests",
	"daily request count exceeded",
	"quota exceeded",
}

// Classifier maps failures from the network, API, auth and data layers into
// domain.AppError. Classification is deterministic and never fails.
type Classifier struct {
	logger           *slog.Logger
	throttlePatterns []string
}

// NewClassifier creates a classifier. A nil logger uses slog.Default.
func NewClassifier(logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{
		logger:           logger,
		throttlePatterns: defaultThrottlePatterns,
	}
}

// Classify converts err into an AppError. An *domain.AppError anywhere in
// the chain is returned unchanged. A nil err yields nil.
func (c *Classifier) Classify(err error) *domain.AppError {
	if err == nil {
		return nil
	}

	appErr := c.classify(err)

	metrics.ErrorsClassified.WithLabelValues(string(appErr.Kind), string(appErr.Severity())).Inc()
	c.log(appErr, err)
	return appErr
}

// ShouldAutoRetry reports whether the failure is plausibly transient.
func (c *Classifier) ShouldAutoRetry(e *domain.AppError) bool {
	return ShouldAutoRetry(e)
}

// ShouldAutoRetry is true for network, rate limit, api and data errors.
func ShouldAutoRetry(e *domain.AppError) bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case domain.ErrorKindNetwork, domain.ErrorKindRateLimit, domain.ErrorKindAPI, domain.ErrorKindData:
		return true
	default:
		return false
	}
}

func (c *Classifier) classify(err error) *domain.AppError {
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var apiErr *domain.APIError
	if errors.As(err, &apiErr) {
		return fromAPIError(apiErr)
	}

	var authErr *domain.AuthError
	if errors.As(err, &authErr) {
		return fromAuthError(authErr)
	}

	var statusErr *domain.HTTPStatusError
	if errors.As(err, &statusErr) {
		return fromStatus(statusErr.StatusCode)
	}

	if e := classifyNetwork(err); e != nil {
		return e
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return domain.NewAppError(domain.ErrorKindData, "Failed to decode response")
	}

	if errors.Is(err, context.Canceled) {
		return domain.NewAppError(domain.ErrorKindUnknown, "Request cancelled")
	}

	if c.matchesThrottle(err.Error()) {
		return domain.NewAppError(domain.ErrorKindRateLimit, "Rate limit exceeded")
	}

	return domain.NewAppError(domain.ErrorKindUnknown, err.Error())
}

func classifyNetwork(err error) *domain.AppError {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewAppError(domain.ErrorKindNetwork, "Request timed out")
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewAppError(domain.ErrorKindNetwork, "Request timed out")
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) {
		return domain.NewAppError(domain.ErrorKindNetwork, "Cannot connect to server")
	}

	if errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.ENETDOWN) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return domain.NewAppError(domain.ErrorKindNetwork, "No internet connection")
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return domain.NewAppError(domain.ErrorKindNetwork, opErr.Error())
	}

	return nil
}

func fromAPIError(e *domain.APIError) *domain.AppError {
	switch e.Code {
	case domain.APIErrorInvalidToken, domain.APIErrorUnauthorized:
		return domain.NewAppError(domain.ErrorKindAuth, e.Error())
	case domain.APIErrorInvalidURL:
		return domain.NewAppError(domain.ErrorKindConfig, "Invalid API URL")
	case domain.APIErrorNetwork:
		return domain.NewAppError(domain.ErrorKindNetwork, e.Message)
	case domain.APIErrorDecoding:
		return domain.NewAppError(domain.ErrorKindData, "Failed to decode response")
	case domain.APIErrorRateLimitExceeded:
		return domain.NewAppError(domain.ErrorKindRateLimit, "Rate limit exceeded")
	default:
		return domain.NewAppError(domain.ErrorKindAPI, e.Error())
	}
}

func fromAuthError(e *domain.AuthError) *domain.AppError {
	switch e.Code {
	case domain.AuthErrorNotConfigured:
		return domain.NewAppError(domain.ErrorKindConfig, "API not configured")
	case domain.AuthErrorInvalidURL, domain.AuthErrorInvalidState, domain.AuthErrorInvalidResponse:
		return domain.NewAppError(domain.ErrorKindAPI, e.Error())
	case domain.AuthErrorNetwork:
		return domain.NewAppError(domain.ErrorKindNetwork, e.Message)
	case domain.AuthErrorCancelled:
		return domain.NewAppError(domain.ErrorKindUnknown, "Authentication cancelled")
	default:
		return domain.NewAppError(domain.ErrorKindUnknown, e.Error())
	}
}

func fromStatus(code int) *domain.AppError {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.NewAppError(domain.ErrorKindAuth, "Unauthorized. Please reconnect your account.")
	case http.StatusTooManyRequests:
		return domain.NewAppError(domain.ErrorKindRateLimit, "Rate limit exceeded")
	default:
		return domain.NewAppError(domain.ErrorKindAPI, fmt.Sprintf("Server returned status %d", code))
	}
}

func (c *Classifier) matchesThrottle(msg string) bool {
	lower := strings.ToLower(msg)
	for _, p := range c.throttlePatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func (c *Classifier) log(appErr *domain.AppError, cause error) {
	attrs := []any{
		"kind", appErr.Kind,
		"severity", appErr.Severity(),
		"message", appErr.Message,
		"recovery", appErr.RecoverySuggestion(),
	}
	if cause != error(appErr) {
		attrs = append(attrs, "cause", cause)
	}

	switch appErr.Severity() {
	case domain.SeverityWarning:
		c.logger.Warn("Classified failure", attrs...)
	default:
		c.logger.Error("Classified failure", attrs...)
	}
}
