// Package exitcode maps command failures onto process exit codes.
package exitcode

import (
	"os"
	"strings"

	"github.com/felixgeelhaar/sessionbridge/internal/errors"
)

// Exit codes for consistent error handling across the CLI
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition
	GeneralError = 1

	// UsageError indicates invalid command usage (bad flags, missing args, etc.)
	UsageError = 2

	// HostUnavailable indicates the native host could not be reached
	HostUnavailable = 3

	// AuthError indicates the identity service rejected a request or key
	AuthError = 4

	// NetworkError indicates a network connectivity issue
	NetworkError = 5

	// StoreError indicates the host's persistent store failed
	StoreError = 6

	// Interrupted indicates the process was stopped by a signal
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(DetermineExitCode(err))
}

// DetermineExitCode prefers the bridge error code and falls back to
// matching the message text.
func DetermineExitCode(err error) int {
	if err == nil {
		return Success
	}

	switch code := errors.CodeOf(err); {
	case strings.HasPrefix(string(code), "HOST-"):
		return HostUnavailable
	case strings.HasPrefix(string(code), "IDENTITY-"):
		return AuthError
	case strings.HasPrefix(string(code), "STORE-"):
		return StoreError
	case code != "":
		return GeneralError
	}

	errMsg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errMsg, "unauthorized"), strings.Contains(errMsg, "publishable key"):
		return AuthError
	case strings.Contains(errMsg, "connection refused"), strings.Contains(errMsg, "timeout"),
		strings.Contains(errMsg, "unreachable"):
		return NetworkError
	case strings.Contains(errMsg, "unknown flag"), strings.Contains(errMsg, "unknown command"),
		strings.Contains(errMsg, "required flag"), strings.Contains(errMsg, "accepts "):
		return UsageError
	}

	return GeneralError
}

// GetExitCodeDescription returns a human-readable description of an exit code
func GetExitCodeDescription(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case UsageError:
		return "Usage error (invalid flags or arguments)"
	case HostUnavailable:
		return "Native host unavailable"
	case AuthError:
		return "Authentication error"
	case NetworkError:
		return "Network error"
	case StoreError:
		return "Store error"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
