package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestWrapKeepsSentinelIdentity(t *testing.T) {
	cause := fmt.Errorf("dial tcp: i/o timeout")
	err := Wrap(ErrProviderUnreachable, cause)

	if !stderrors.Is(err, ErrProviderUnreachable) {
		t.Error("expected wrapped error to match its sentinel")
	}
	if !stderrors.Is(err, cause) {
		t.Error("expected wrapped error to expose its cause")
	}
	if stderrors.Is(err, ErrPriceUnavailable) {
		t.Error("expected no match against a different sentinel")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"sentinel", ErrPriceUnavailable, KindPriceUnavailable},
		{"wrapped", Wrap(ErrMalformedResponse, fmt.Errorf("bad json")), KindMalformedResponse},
		{"with_message", WithMessage(ErrInvalidQuery, "too short"), KindInvalidQuery},
		{"fmt_wrapped", fmt.Errorf("fetch: %w", ErrProviderUnreachable), KindProviderUnreachable},
		{"not_a_kind", ErrAssetNotFound, KindInternal},
		{"plain", fmt.Errorf("boom"), KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestRetryable(t *testing.T) {
	if !Retryable(Wrap(ErrProviderUnreachable, fmt.Errorf("503"))) {
		t.Error("expected provider unreachable to be retryable")
	}
	if Retryable(ErrPriceUnavailable) {
		t.Error("expected price unavailable not to be retryable")
	}
	if Retryable(nil) {
		t.Error("expected nil not to be retryable")
	}
}

func TestErrorMessage(t *testing.T) {
	err := Wrapf(ErrProviderUnreachable, fmt.Errorf("status 429"), "rate limited by provider")
	if err.Error() != "rate limited by provider" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
