package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "with code",
			err:  &Error{Type: ErrorTypeAuth, Message: "authentication required", Code: 401},
			want: "auth error (code 401): authentication required",
		},
		{
			name: "without code",
			err:  New(ErrorTypeParsing, "bad payload"),
			want: "parsing error: bad payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(ErrorTypeNetwork, "network error", cause)

	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should match its cause with errors.Is")
	}
	if err.Unwrap() != cause {
		t.Error("Unwrap() should return the cause")
	}
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"typed error", New(ErrorTypeRateLimit, "slow down"), ErrorTypeRateLimit},
		{"wrapped typed error", fmt.Errorf("context: %w", New(ErrorTypeNotFound, "gone")), ErrorTypeNotFound},
		{"untyped error", stderrors.New("plain"), ErrorTypeUnknown},
		{"nil", nil, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypeOf(tt.err); got != tt.want {
				t.Errorf("TypeOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := []ErrorType{ErrorTypeNetwork, ErrorTypeRateLimit, ErrorTypeServerError}
	fatal := []ErrorType{ErrorTypeAuth, ErrorTypeNotFound, ErrorTypeParsing, ErrorTypeWrite, ErrorTypeUnknown}

	for _, et := range retryable {
		if !IsRetryable(et) {
			t.Errorf("IsRetryable(%v) = false, want true", et)
		}
	}
	for _, et := range fatal {
		if IsRetryable(et) {
			t.Errorf("IsRetryable(%v) = true, want false", et)
		}
	}
}

func TestIsRetryableError(t *testing.T) {
	if !IsRetryableError(New(ErrorTypeServerError, "boom")) {
		t.Error("server errors should be retryable")
	}
	if IsRetryableError(New(ErrorTypeAuth, "denied")) {
		t.Error("auth errors should not be retryable")
	}
	// Untyped errors are treated as transient
	if !IsRetryableError(stderrors.New("plain")) {
		t.Error("untyped errors should be retryable")
	}
}

func TestIsAuthIsNotFound(t *testing.T) {
	authErr := fmt.Errorf("request failed: %w", New(ErrorTypeAuth, "denied"))
	if !IsAuth(authErr) {
		t.Error("IsAuth should see through wrapping")
	}
	if IsNotFound(authErr) {
		t.Error("IsNotFound should not match auth errors")
	}

	nfErr := New(ErrorTypeNotFound, "gone")
	if !IsNotFound(nfErr) {
		t.Error("IsNotFound should match not_found errors")
	}
	if IsAuth(nfErr) {
		t.Error("IsAuth should not match not_found errors")
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{0, true},
		{429, true},
		{500, true},
		{502, true},
		{503, true},
		{504, true},
		{599, true},
		{401, false},
		{403, false},
		{404, false},
		{200, false},
		{400, false},
	}

	for _, tt := range tests {
		if got := IsRetryableStatusCode(tt.code); got != tt.want {
			t.Errorf("IsRetryableStatusCode(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}
