package models

import (
	"errors"
	"fmt"
)

// ErrorType classifies failures so callers can pick a corrective action
// with a type switch instead of matching on messages.
type ErrorType int

const (
	ErrorTypeStorageInit ErrorType = iota
	ErrorTypeStorage
	ErrorTypeSerialize
	ErrorTypeDeserialize
	ErrorTypeTransport
	ErrorTypeUnsupportedCurrencyCode
	ErrorTypeMalformedRequest
	ErrorTypeInvalidAPIKey
	ErrorTypeInactiveAccount
	ErrorTypeQuotaExceeded
	ErrorTypeUnknownProvider
	ErrorTypeCurrencyNotFound
	ErrorTypeInvalidInput
	ErrorTypeMissingAPIKey
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeStorageInit:             "storage_init",
	ErrorTypeStorage:                 "storage",
	ErrorTypeSerialize:               "serialize",
	ErrorTypeDeserialize:             "deserialize",
	ErrorTypeTransport:               "transport",
	ErrorTypeUnsupportedCurrencyCode: "unsupported_code",
	ErrorTypeMalformedRequest:        "malformed_request",
	ErrorTypeInvalidAPIKey:           "invalid_key",
	ErrorTypeInactiveAccount:         "inactive_account",
	ErrorTypeQuotaExceeded:           "quota_reached",
	ErrorTypeUnknownProvider:         "unknown_provider_error",
	ErrorTypeCurrencyNotFound:        "currency_not_found",
	ErrorTypeInvalidInput:            "invalid_input",
	ErrorTypeMissingAPIKey:           "missing_api_key",
}

func (errorType ErrorType) String() string {
	if name, ok := errorTypeNames[errorType]; ok {
		return name
	}
	return fmt.Sprintf("error_type(%d)", int(errorType))
}

// IsCacheFailure reports whether the type belongs to the cache layer. Cache
// failures never fail a resolution.
func (errorType ErrorType) IsCacheFailure() bool {
	switch errorType {
	case ErrorTypeStorageInit, ErrorTypeStorage, ErrorTypeSerialize, ErrorTypeDeserialize:
		return true
	}
	return false
}

// IsProviderError reports whether the type was reported by the remote API itself.
func (errorType ErrorType) IsProviderError() bool {
	return errorType >= ErrorTypeUnsupportedCurrencyCode && errorType <= ErrorTypeUnknownProvider
}

// Error is the single error type of the converter.
type Error struct {
	Type    ErrorType
	Message string
	// Code is the currency code or raw provider error string the failure is about.
	Code  string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same type, so errors.Is(err, &Error{Type: t}) works.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Type == e.Type
}

// TypeOf returns the ErrorType carried anywhere in err's chain.
func TypeOf(err error) (ErrorType, bool) {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Type, true
	}
	return 0, false
}

// HasType reports whether err carries an *Error of the given type.
func HasType(err error, errorType ErrorType) bool {
	actual, ok := TypeOf(err)
	return ok && actual == errorType
}

func NewStorageInitError(message string, cause error) *Error {
	return &Error{Type: ErrorTypeStorageInit, Message: message, Cause: cause}
}

func NewStorageError(message string, cause error) *Error {
	return &Error{Type: ErrorTypeStorage, Message: message, Cause: cause}
}

func NewSerializeError(message string, cause error) *Error {
	return &Error{Type: ErrorTypeSerialize, Message: message, Cause: cause}
}

func NewDeserializeError(message string, cause error) *Error {
	return &Error{Type: ErrorTypeDeserialize, Message: message, Cause: cause}
}

func NewTransportError(cause error) *Error {
	return &Error{Type: ErrorTypeTransport, Message: "cannot get response from API", Cause: cause}
}

// NewCurrencyNotFoundError is raised by the converter when the snapshot has no rate for to.
func NewCurrencyNotFoundError(base, to string) *Error {
	return &Error{
		Type:    ErrorTypeCurrencyNotFound,
		Message: fmt.Sprintf("cannot find conversion data for %s -> %s", base, to),
		Code:    to,
	}
}

func NewInvalidInputError(message string) *Error {
	return &Error{Type: ErrorTypeInvalidInput, Message: message}
}

func NewMissingAPIKeyError(variable string) *Error {
	return &Error{
		Type:    ErrorTypeMissingAPIKey,
		Message: fmt.Sprintf("cannot find the API key, set the %s environment variable", variable),
	}
}

// NewAPIError maps a provider "error-type" string onto the taxonomy. Unknown
// strings become ErrorTypeUnknownProvider carrying the raw value.
func NewAPIError(providerErrorType, baseCode string) *Error {
	switch providerErrorType {
	case "unsupported-code":
		return &Error{Type: ErrorTypeUnsupportedCurrencyCode, Message: "unsupported currency code: " + baseCode, Code: baseCode}
	case "malformed-request":
		return &Error{Type: ErrorTypeMalformedRequest, Message: "malformed request to API"}
	case "invalid-key":
		return &Error{Type: ErrorTypeInvalidAPIKey, Message: "invalid API key"}
	case "inactive-account":
		return &Error{Type: ErrorTypeInactiveAccount, Message: "inactive account, email address wasn't confirmed"}
	case "quota-reached":
		return &Error{Type: ErrorTypeQuotaExceeded, Message: "quota reached, the account has used all requests allowed by its plan"}
	default:
		return &Error{Type: ErrorTypeUnknownProvider, Message: "unknown API error: " + providerErrorType, Code: providerErrorType}
	}
}
