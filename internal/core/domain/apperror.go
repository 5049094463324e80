package domain

import "fmt"

// ErrorKind is the closed taxonomy every failure is mapped into.
type ErrorKind string

const (
	ErrorKindNetwork   ErrorKind = "network"
	ErrorKindAPI       ErrorKind = "api"
	ErrorKindAuth      ErrorKind = "auth"
	ErrorKindData      ErrorKind = "data"
	ErrorKindConfig    ErrorKind = "config"
	ErrorKindRateLimit ErrorKind = "rate_limit"
	ErrorKindUnknown   ErrorKind = "unknown"
)

// Severity ranks how urgently an error must be surfaced.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// AppError is the classified form of any failure. Build it once, never mutate.
type AppError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// NewAppError creates a classified error.
func NewAppError(kind ErrorKind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.title(), e.Message)
}

func (e *AppError) title() string {
	switch e.Kind {
	case ErrorKindNetwork:
		return "Network Error"
	case ErrorKindAPI:
		return "API Error"
	case ErrorKindAuth:
		return "Authentication Error"
	case ErrorKindData:
		return "Data Error"
	case ErrorKindConfig:
		return "Configuration Error"
	case ErrorKindRateLimit:
		return "Rate Limit Error"
	default:
		return "Unknown Error"
	}
}

// Severity is fixed per kind.
func (e *AppError) Severity() Severity {
	switch e.Kind {
	case ErrorKindNetwork, ErrorKindRateLimit:
		return SeverityWarning
	case ErrorKindAPI, ErrorKindData:
		return SeverityError
	case ErrorKindAuth, ErrorKindConfig:
		return SeverityCritical
	default:
		return SeverityError
	}
}

// RecoverySuggestion is the fixed hint shown to the user for the kind.
func (e *AppError) RecoverySuggestion() string {
	switch e.Kind {
	case ErrorKindNetwork:
		return "Check your internet connection and try again."
	case ErrorKindAPI:
		return "There was an issue with the Instagram API. Please try again later."
	case ErrorKindAuth:
		return "Please reconnect your Instagram account in Settings."
	case ErrorKindData:
		return "There was an issue processing the data. Please refresh."
	case ErrorKindConfig:
		return "Please check your Instagram API configuration in Settings."
	case ErrorKindRateLimit:
		return "Too many requests. Please wait a moment and try again."
	default:
		return "An unexpected error occurred. Please try again."
	}
}

// APIErrorCode enumerates failures raised by the graph API client.
type APIErrorCode string

const (
	APIErrorInvalidToken      APIErrorCode = "invalid_token"
	APIErrorUnauthorized      APIErrorCode = "unauthorized"
	APIErrorInvalidURL        APIErrorCode = "invalid_url"
	APIErrorNetwork           APIErrorCode = "network"
	APIErrorDecoding          APIErrorCode = "decoding"
	APIErrorRateLimitExceeded APIErrorCode = "rate_limit_exceeded"
)

// APIError is returned by API-facing data sources.
type APIError struct {
	Code    APIErrorCode
	Message string
}

func (e *APIError) Error() string {
	switch e.Code {
	case APIErrorInvalidURL:
		return "Invalid API URL"
	case APIErrorInvalidToken:
		return "Invalid or expired access token"
	case APIErrorNetwork:
		return "Network error: " + e.Message
	case APIErrorDecoding:
		return "Failed to decode response"
	case APIErrorUnauthorized:
		return "Unauthorized. Please reconnect your account."
	case APIErrorRateLimitExceeded:
		return "Rate limit exceeded"
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("api error: %s", e.Code)
}

// AuthErrorCode enumerates failures raised by the auth flow.
type AuthErrorCode string

const (
	AuthErrorNotConfigured   AuthErrorCode = "not_configured"
	AuthErrorInvalidURL      AuthErrorCode = "invalid_url"
	AuthErrorInvalidState    AuthErrorCode = "invalid_state"
	AuthErrorInvalidResponse AuthErrorCode = "invalid_response"
	AuthErrorNetwork         AuthErrorCode = "network"
	AuthErrorCancelled       AuthErrorCode = "cancelled"
)

// AuthError is returned by the auth layer.
type AuthError struct {
	Code    AuthErrorCode
	Message string
}

func (e *AuthError) Error() string {
	switch e.Code {
	case AuthErrorInvalidURL:
		return "Invalid authorization URL"
	case AuthErrorInvalidState:
		return "Invalid state parameter"
	case AuthErrorInvalidResponse:
		return "Invalid response from the provider"
	case AuthErrorNetwork:
		return "Network error: " + e.Message
	case AuthErrorCancelled:
		return "Authentication was cancelled"
	case AuthErrorNotConfigured:
		return "API credentials not configured"
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("auth error: %s", e.Code)
}

// HTTPStatusError carries a non-2xx response status.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}
