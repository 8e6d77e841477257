// Package market fetches current prices from external market-data sources and
// normalizes them into PriceRecord values. Sources never retry; retry policy
// belongs to the caller.
package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/resolver"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// maxBodyBytes bounds how much of a provider response is read.
const maxBodyBytes = 8 << 20

// PriceRecord is a normalized point-in-time quote. Its price fields encode as
// JSON numbers.
type PriceRecord struct {
	Symbol         string              `json:"symbol"`
	ExternalSymbol string              `json:"resolvedSymbol"`
	Category       resolver.Category   `json:"category"`
	CurrentPrice   decimal.Decimal     `json:"currentPrice" swaggertype:"number"`
	PreviousClose  decimal.NullDecimal `json:"previousClose" swaggertype:"number"`
	ChangeAmount   decimal.Decimal     `json:"changeAmount" swaggertype:"number"`
	ChangePercent  decimal.Decimal     `json:"changePercent" swaggertype:"number"`
	Currency       string              `json:"currency"`
	Timestamp      time.Time           `json:"timestamp"`
	Source         string              `json:"source"`
}

// MarshalJSON implements json.Marshaler.
func (r PriceRecord) MarshalJSON() ([]byte, error) {
	type plain PriceRecord
	out := struct {
		plain
		CurrentPrice  json.Number  `json:"currentPrice"`
		PreviousClose *json.Number `json:"previousClose"`
		ChangeAmount  json.Number  `json:"changeAmount"`
		ChangePercent json.Number  `json:"changePercent"`
	}{
		plain:         plain(r),
		CurrentPrice:  json.Number(r.CurrentPrice.String()),
		ChangeAmount:  json.Number(r.ChangeAmount.String()),
		ChangePercent: json.Number(r.ChangePercent.String()),
	}
	if r.PreviousClose.Valid {
		prev := json.Number(r.PreviousClose.Decimal.String())
		out.PreviousClose = &prev
	}
	return json.Marshal(out)
}

// Client fetches the current price for a resolved symbol.
type Client interface {
	FetchPrice(ctx context.Context, symbol string, category resolver.Category) (*PriceRecord, error)
}

// Source is one external provider route.
type Source interface {
	Name() string
	Supports(category resolver.Category) bool
	Fetch(ctx context.Context, symbol string, category resolver.Category) (*PriceRecord, error)
}

var hundred = decimal.NewFromInt(100)

// newRecord fills the derived change fields. A missing or zero previous close
// yields zero change.
func newRecord(symbol, external string, category resolver.Category, current decimal.Decimal,
	previous decimal.NullDecimal, currency, source string, at time.Time) *PriceRecord {
	rec := &PriceRecord{
		Symbol:         symbol,
		ExternalSymbol: external,
		Category:       category,
		CurrentPrice:   current,
		PreviousClose:  previous,
		ChangeAmount:   decimal.Zero,
		ChangePercent:  decimal.Zero,
		Currency:       currency,
		Timestamp:      at,
		Source:         source,
	}
	if previous.Valid {
		rec.ChangeAmount = current.Sub(previous.Decimal)
		if !previous.Decimal.IsZero() {
			rec.ChangePercent = rec.ChangeAmount.Div(previous.Decimal).Mul(hundred)
		}
	}
	return rec
}

// normalizeCurrency returns code when go-money knows it, else fallback.
func normalizeCurrency(code, fallback string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" || money.GetCurrency(code) == nil {
		return fallback
	}
	return code
}

// validPrice rejects zero and negative prices.
func validPrice(d decimal.Decimal) bool {
	return d.IsPositive()
}

// doRequest executes req and returns the body of a 2xx response. Transport
// failures, context deadlines and non-2xx statuses map to ErrProviderUnreachable.
func doRequest(httpClient *http.Client, req *http.Request) ([]byte, error) {
	status, body, err := fetchBody(httpClient, req)
	if err != nil {
		return nil, err
	}
	if err := statusError(status); err != nil {
		return nil, err
	}
	return body, nil
}

// fetchBody executes req and returns the status and body of whatever response
// arrives. Only transport and read failures are errors.
func fetchBody(httpClient *http.Client, req *http.Request) (int, []byte, error) {
	resp, err := httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, nil, apperrors.Wrapf(apperrors.ErrProviderUnreachable, err, "request timed out")
		}
		return 0, nil, apperrors.Wrapf(apperrors.ErrProviderUnreachable, err, "request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return 0, nil, apperrors.Wrapf(apperrors.ErrProviderUnreachable, err, "reading response body failed")
	}
	return resp.StatusCode, body, nil
}

// statusError classifies a non-2xx status. It returns nil for 2xx.
func statusError(status int) error {
	if status >= 200 && status <= 299 {
		return nil
	}
	cause := fmt.Errorf("unexpected status %d", status)
	switch status {
	case http.StatusTooManyRequests:
		return apperrors.Wrapf(apperrors.ErrProviderUnreachable, cause, "rate limited by provider")
	case http.StatusNotFound:
		return apperrors.Wrapf(apperrors.ErrProviderUnreachable, cause, "symbol not found at provider (404)")
	default:
		return apperrors.Wrapf(apperrors.ErrProviderUnreachable, cause, fmt.Sprintf("provider returned status %d", status))
	}
}

// Download performs a GET against url and returns the body, classifying
// failures the same way price fetches do.
func Download(ctx context.Context, httpClient *http.Client, url, userAgent string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	return doRequest(httpClient, req)
}
