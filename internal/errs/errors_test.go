package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: Validation("bad id %q", "x"), want: http.StatusBadRequest},
		{name: "auth", err: Auth("missing token"), want: http.StatusUnauthorized},
		{name: "not found", err: NotFound("chat %s", "abc"), want: http.StatusNotFound},
		{name: "insufficient credit", err: InsufficientCredit(0), want: http.StatusBadRequest},
		{name: "provider", err: Provider(errors.New("boom")), want: http.StatusBadGateway},
		{name: "persistence", err: Persistence("save message", errors.New("db down")), want: http.StatusInternalServerError},
		{name: "wrapped", err: fmt.Errorf("load: %w", NotFound("chat")), want: http.StatusNotFound},
		{name: "plain", err: errors.New("plain"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatusOf(tt.err); got != tt.want {
				t.Errorf("StatusOf() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", InsufficientCredit(0))
	if !errors.Is(err, ErrInsufficientCredit) {
		t.Error("errors.Is(err, ErrInsufficientCredit) = false, want true")
	}
	if errors.Is(err, ErrValidation) {
		t.Error("errors.Is(err, ErrValidation) = true, want false")
	}
	if KindOf(err) != KindInsufficientCredit {
		t.Errorf("KindOf() = %q, want %q", KindOf(err), KindInsufficientCredit)
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Provider(cause)
	if !errors.Is(err, cause) {
		t.Error("Provider error should unwrap to its cause")
	}
	if got := err.Error(); got != "provider error: connection reset" {
		t.Errorf("Error() = %q", got)
	}
}
