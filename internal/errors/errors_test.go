package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	err := New(ErrCodeHostInvoke, "test error message")

	if err.Code != ErrCodeHostInvoke {
		t.Errorf("expected code %s, got %s", ErrCodeHostInvoke, err.Code)
	}

	if err.Message != "test error message" {
		t.Errorf("expected message 'test error message', got '%s'", err.Message)
	}

	if err.Cause != nil {
		t.Errorf("expected nil cause, got %v", err.Cause)
	}
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("underlying error")
	err := Wrap(ErrCodeStore, "failed to write", cause)

	if err.Code != ErrCodeStore {
		t.Errorf("expected code %s, got %s", ErrCodeStore, err.Code)
	}

	if !errors.Is(err, cause) {
		t.Errorf("Wrap should support errors.Is")
	}
}

func TestErrorFormatting(t *testing.T) {
	tests := []struct {
		name     string
		err      *BridgeError
		contains []string
	}{
		{
			name:     "simple error",
			err:      New(ErrCodeSyncEmit, "emit failed"),
			contains: []string{"[SYNC-001]", "emit failed"},
		},
		{
			name:     "error with cause",
			err:      Wrap(ErrCodeHostHeaderGet, "get failed", fmt.Errorf("connection refused")),
			contains: []string{"[HOST-002]", "get failed", "connection refused"},
		},
		{
			name:     "error with suggestions and docs",
			err:      New(ErrCodeIdentityAPI, "api").WithSuggestion("retry later").WithDocs("https://example.com"),
			contains: []string{"Suggestions:", "retry later", "Documentation: https://example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, want := range tt.contains {
				if !strings.Contains(msg, want) {
					t.Errorf("expected %q in %q", want, msg)
				}
			}
		})
	}
}

func TestCodeOf(t *testing.T) {
	inner := New(ErrCodeFetchMalformedBody, "bad body")
	wrapped := fmt.Errorf("round trip: %w", inner)

	if got := CodeOf(wrapped); got != ErrCodeFetchMalformedBody {
		t.Errorf("CodeOf() = %s, want %s", got, ErrCodeFetchMalformedBody)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != "" {
		t.Errorf("CodeOf(plain) = %s, want empty", got)
	}
}

func TestHasCode(t *testing.T) {
	err := NewHandshakeError(Wrap(ErrCodeHostInvoke, "status 500", nil))

	if !HasCode(err, ErrCodeHostHandshake) {
		t.Error("expected outer code")
	}
	if !HasCode(err, ErrCodeHostInvoke) {
		t.Error("expected nested code")
	}
	if HasCode(err, ErrCodeStore) {
		t.Error("unexpected code")
	}
}

func TestPublishableKeyError(t *testing.T) {
	err := NewPublishableKeyError("missing prefix")
	if err.Code != ErrCodeIdentityPublishableKey {
		t.Errorf("unexpected code %s", err.Code)
	}
	if len(err.Suggestions) == 0 {
		t.Error("expected suggestions")
	}
}
