package market

import (
	"context"
	"strings"
	"time"

	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/logger"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/pricecache"

	"github.com/shopspring/decimal"
)

const defaultForexTTL = 5 * time.Minute

type quoteFunc func(ctx context.Context, ticker string) (*yahooQuote, error)

// ForexConverter looks up exchange rates into the target currency through
// Yahoo forex tickers (e.g. "USDTRY=X") and caches them for a TTL.
type ForexConverter struct {
	quote          quoteFunc
	targetCurrency string
	ttl            time.Duration
	fallbackUSD    decimal.Decimal
	rates          *pricecache.Cache[decimal.Decimal]
}

// NewForexConverter creates a converter into targetCurrency. When fallbackUSD
// is positive it is used for USD if the live rate cannot be fetched.
func NewForexConverter(quote quoteFunc, targetCurrency string, ttl time.Duration, fallbackUSD decimal.Decimal, clock func() time.Time) *ForexConverter {
	if ttl <= 0 {
		ttl = defaultForexTTL
	}
	return &ForexConverter{
		quote:          quote,
		targetCurrency: strings.ToUpper(targetCurrency),
		ttl:            ttl,
		fallbackUSD:    fallbackUSD,
		rates:          pricecache.New[decimal.Decimal](clock),
	}
}

// TargetCurrency returns the target currency code (e.g. "TRY").
func (f *ForexConverter) TargetCurrency() string {
	return f.targetCurrency
}

// NeedsConversion returns true if the given currency differs from the target.
func (f *ForexConverter) NeedsConversion(fromCurrency string) bool {
	return strings.ToUpper(fromCurrency) != f.targetCurrency
}

// Rate returns how many units of the target currency one unit of
// fromCurrency buys. fallback is true when the configured USD fallback was used.
func (f *ForexConverter) Rate(ctx context.Context, fromCurrency string) (rate decimal.Decimal, fallback bool, err error) {
	from := strings.ToUpper(fromCurrency)
	if from == f.targetCurrency {
		return decimal.NewFromInt(1), false, nil
	}

	if cached, ok := f.rates.Get(from); ok {
		return cached, false, nil
	}

	ticker := from + f.targetCurrency + "=X"
	q, err := f.quote(ctx, ticker)
	if err != nil {
		if from == "USD" && f.fallbackUSD.IsPositive() {
			logger.Named("market").Warnw("forex rate unavailable, using fallback",
				"ticker", ticker,
				"fallback_rate", f.fallbackUSD.String(),
				"error", err,
			)
			return f.fallbackUSD, true, nil
		}
		return decimal.Zero, false, err
	}
	if !q.price.IsPositive() {
		return decimal.Zero, false, apperrors.WithMessage(apperrors.ErrPriceUnavailable, "invalid forex rate for "+ticker)
	}

	f.rates.Set(from, q.price, f.ttl)
	return q.price, false, nil
}
