package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Host communication errors (HOST-001 to HOST-099)
	ErrCodeHostHandshake ErrorCode = "HOST-001"
	ErrCodeHostHeaderGet ErrorCode = "HOST-002"
	ErrCodeHostHeaderSet ErrorCode = "HOST-003"
	ErrCodeHostInvoke    ErrorCode = "HOST-004"

	// Fetch routing errors (FETCH-001 to FETCH-099)
	ErrCodeFetchMalformedBody ErrorCode = "FETCH-001"
	ErrCodeFetchMediated      ErrorCode = "FETCH-002"

	// Sync errors (SYNC-001 to SYNC-099)
	ErrCodeSyncEmit           ErrorCode = "SYNC-001"
	ErrCodeSyncListen         ErrorCode = "SYNC-002"
	ErrCodeSyncMalformedEvent ErrorCode = "SYNC-003"

	// Identity client errors (IDENTITY-001 to IDENTITY-099)
	ErrCodeIdentityPublishableKey ErrorCode = "IDENTITY-001"
	ErrCodeIdentityAPI            ErrorCode = "IDENTITY-002"
	ErrCodeIdentityNotLoaded      ErrorCode = "IDENTITY-003"

	// Host store errors (STORE-001 to STORE-099)
	ErrCodeStore ErrorCode = "STORE-001"
)

// BridgeError represents an error with code, suggestions, and documentation
type BridgeError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error
}

// Error implements the error interface
func (e *BridgeError) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *BridgeError) Unwrap() error {
	return e.Cause
}

// New creates a new BridgeError
func New(code ErrorCode, message string) *BridgeError {
	return &BridgeError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new BridgeError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *BridgeError {
	return &BridgeError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *BridgeError) WithSuggestion(suggestion string) *BridgeError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *BridgeError) WithDocs(url string) *BridgeError {
	e.DocsURL = url
	return e
}

// CodeOf returns the code of the first BridgeError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var be *BridgeError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

// HasCode reports whether err carries the given code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var be *BridgeError
		if !errors.As(err, &be) {
			return false
		}
		if be.Code == code {
			return true
		}
		err = be.Cause
	}
	return false
}

// NewHandshakeError creates a host handshake failure
func NewHandshakeError(cause error) *BridgeError {
	return Wrap(ErrCodeHostHandshake, "host initialize handshake failed", cause).
		WithSuggestion("Make sure the host process is running and the IPC URL is correct").
		WithSuggestion("Run 'sessionbridge host' to start a local host")
}

// NewMalformedBodyError creates an HTTP plugin body contract error
func NewMalformedBodyError(details string, cause error) *BridgeError {
	return Wrap(ErrCodeFetchMalformedBody, fmt.Sprintf("malformed http plugin request body: %s", details), cause).
		WithSuggestion("The host HTTP plugin and this bridge disagree on the clientConfig shape").
		WithSuggestion("Upgrade the host and the bridge to matching versions")
}

// NewPublishableKeyError creates an invalid publishable key error
func NewPublishableKeyError(details string) *BridgeError {
	return New(ErrCodeIdentityPublishableKey, fmt.Sprintf("invalid publishable key: %s", details)).
		WithSuggestion("Set CLERK_PUBLISHABLE_KEY to the key shown in your dashboard").
		WithSuggestion("Publishable keys start with pk_test_ or pk_live_")
}
