package server

import (
	"errors"
	"strings"
	"testing"
)

func TestSendError(t *testing.T) {
	cause := errors.New("broken pipe")
	tests := []struct {
		name string
		err  *SendError
		want string
	}{
		{"with remote", &SendError{SessionID: "s1", Remote: "10.0.0.1:5", Err: cause}, "server: session s1: send to 10.0.0.1:5: broken pipe"},
		{"without remote", &SendError{SessionID: "s1", Err: cause}, "server: session s1: send: broken pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
			if !errors.Is(tt.err, cause) {
				t.Error("errors.Is(cause) = false")
			}
		})
	}
}

func TestHandlerError(t *testing.T) {
	err := NewHandlerError("s1", 42, "click", "boom", []byte("stack"))
	msg := err.Error()
	for _, want := range []string{"s1", "42", "click", "boom"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, missing %q", msg, want)
		}
	}
}
