package market

import (
	"context"
	"fmt"
	"testing"
	"time"

	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/testutil"

	"github.com/shopspring/decimal"
)

// stubQuotes returns a quoteFunc answering from rates and counting calls.
func stubQuotes(rates map[string]string, calls *int) quoteFunc {
	return func(_ context.Context, ticker string) (*yahooQuote, error) {
		*calls++
		r, ok := rates[ticker]
		if !ok {
			return nil, apperrors.WithMessage(apperrors.ErrPriceUnavailable, fmt.Sprintf("%s: not found", ticker))
		}
		return &yahooQuote{price: decimal.RequireFromString(r)}, nil
	}
}

func TestForexConverter_NeedsConversion(t *testing.T) {
	fc := NewForexConverter(nil, "TRY", 0, decimal.Zero, nil)

	tests := []struct {
		currency string
		want     bool
	}{
		{"USD", true},
		{"usd", true},
		{"EUR", true},
		{"TRY", false},
		{"try", false},
	}
	for _, tt := range tests {
		if got := fc.NeedsConversion(tt.currency); got != tt.want {
			t.Errorf("NeedsConversion(%q) = %v, want %v", tt.currency, got, tt.want)
		}
	}
	if fc.TargetCurrency() != "TRY" {
		t.Errorf("unexpected target %s", fc.TargetCurrency())
	}
}

func TestForexConverter_Rate_SameCurrency(t *testing.T) {
	calls := 0
	fc := NewForexConverter(stubQuotes(nil, &calls), "TRY", 0, decimal.Zero, nil)

	rate, fallback, err := fc.Rate(context.Background(), "try")
	testutil.AssertNoError(t, err)
	if !rate.Equal(decimal.NewFromInt(1)) || fallback {
		t.Errorf("expected rate 1 without fallback, got %s %v", rate, fallback)
	}
	if calls != 0 {
		t.Errorf("expected no quote calls, got %d", calls)
	}
}

func TestForexConverter_Rate_CachedUntilTTL(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	calls := 0
	fc := NewForexConverter(stubQuotes(map[string]string{"USDTRY=X": "32.1"}, &calls), "TRY", time.Minute, decimal.Zero, clock)

	for i := 0; i < 3; i++ {
		rate, _, err := fc.Rate(context.Background(), "USD")
		testutil.AssertNoError(t, err)
		if !rate.Equal(decimal.RequireFromString("32.1")) {
			t.Fatalf("unexpected rate %s", rate)
		}
	}
	if calls != 1 {
		t.Errorf("expected one quote call while cached, got %d", calls)
	}

	now = now.Add(time.Minute)
	_, _, err := fc.Rate(context.Background(), "USD")
	testutil.AssertNoError(t, err)
	if calls != 2 {
		t.Errorf("expected refetch after TTL, got %d calls", calls)
	}
}

func TestForexConverter_Rate_Fallback(t *testing.T) {
	calls := 0
	fc := NewForexConverter(stubQuotes(map[string]string{}, &calls), "TRY", 0, decimal.NewFromInt(34), nil)

	rate, fallback, err := fc.Rate(context.Background(), "USD")
	testutil.AssertNoError(t, err)
	if !fallback || !rate.Equal(decimal.NewFromInt(34)) {
		t.Errorf("expected fallback rate 34, got %s %v", rate, fallback)
	}

	_, _, err = fc.Rate(context.Background(), "EUR")
	testutil.AssertAppError(t, err, "PRICE_UNAVAILABLE")
}

func TestForexConverter_Rate_NoFallbackConfigured(t *testing.T) {
	calls := 0
	fc := NewForexConverter(stubQuotes(map[string]string{}, &calls), "TRY", 0, decimal.Zero, nil)

	_, _, err := fc.Rate(context.Background(), "USD")
	testutil.AssertAppError(t, err, "PRICE_UNAVAILABLE")
}
