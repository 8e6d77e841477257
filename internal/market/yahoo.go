package market

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/resolver"

	"github.com/shopspring/decimal"
)

const (
	yahooBaseURL = "https://query1.finance.yahoo.com/v8/finance/chart"
	yahooUA      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7)"
	sourceYahoo  = "yahoo"
)

// gramsPerOunce converts troy-ounce quotes to grams.
var gramsPerOunce = decimal.RequireFromString("31.1035")

// commodityTickers maps resolver commodity symbols to Yahoo futures tickers.
// Quotes for these are USD per troy ounce.
var commodityTickers = map[string]string{
	"GOLD":   "GC=F",
	"SILVER": "SI=F",
}

// YahooConfig configures a YahooSource. Zero values fall back to defaults.
type YahooConfig struct {
	BaseURL         string
	UserAgent       string
	LocalCurrency   string
	ExchangeSuffix  string
	ForexTTL        time.Duration
	FallbackUSDRate decimal.Decimal
	Clock           func() time.Time
}

// YahooSource serves equities, crypto, commodities and currency pairs from
// the Yahoo Finance v8 chart endpoint. Crypto and commodity quotes are
// converted into the local currency.
type YahooSource struct {
	httpClient     *http.Client
	baseURL        string // overridable for tests
	userAgent      string
	localCurrency  string
	exchangeSuffix string
	forex          *ForexConverter
	now            func() time.Time
}

// NewYahooSource creates a Yahoo Finance source.
func NewYahooSource(httpClient *http.Client, cfg YahooConfig) *YahooSource {
	s := &YahooSource{
		httpClient:     httpClient,
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:      cfg.UserAgent,
		localCurrency:  strings.ToUpper(cfg.LocalCurrency),
		exchangeSuffix: cfg.ExchangeSuffix,
		now:            cfg.Clock,
	}
	if s.baseURL == "" {
		s.baseURL = yahooBaseURL
	}
	if s.userAgent == "" {
		s.userAgent = yahooUA
	}
	if s.localCurrency == "" {
		s.localCurrency = "TRY"
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.forex = NewForexConverter(s.quote, s.localCurrency, cfg.ForexTTL, cfg.FallbackUSDRate, s.now)
	return s
}

// Name returns the source tag written into price records.
func (s *YahooSource) Name() string { return sourceYahoo }

// Supports reports whether category is served by Yahoo.
func (s *YahooSource) Supports(category resolver.Category) bool {
	switch category {
	case resolver.CategoryEquity, resolver.CategoryCrypto, resolver.CategoryCommodity, resolver.CategoryCurrency:
		return true
	default:
		return false
	}
}

// ExternalSymbol converts a resolver symbol into a Yahoo ticker. The exchange
// suffix for equities is applied here and nowhere else.
func (s *YahooSource) ExternalSymbol(symbol string, category resolver.Category) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	switch category {
	case resolver.CategoryEquity:
		if s.exchangeSuffix == "" || strings.Contains(symbol, ".") {
			return symbol
		}
		return symbol + s.exchangeSuffix
	case resolver.CategoryCrypto:
		if strings.Contains(symbol, "-") {
			return symbol
		}
		return symbol + "-USD"
	case resolver.CategoryCommodity:
		if ticker, ok := commodityTickers[symbol]; ok {
			return ticker
		}
		return symbol
	case resolver.CategoryCurrency:
		if strings.HasSuffix(symbol, "=X") {
			return symbol
		}
		// Yahoo quotes USD-based pairs under the counter currency alone.
		if len(symbol) == 6 && strings.HasPrefix(symbol, "USD") {
			return symbol[3:] + "=X"
		}
		return symbol + "=X"
	}
	return symbol
}

// Fetch returns the current price for symbol.
func (s *YahooSource) Fetch(ctx context.Context, symbol string, category resolver.Category) (*PriceRecord, error) {
	external := s.ExternalSymbol(symbol, category)

	q, err := s.quote(ctx, external)
	if err != nil {
		return nil, err
	}

	price := q.price
	previous := q.previous
	currency := normalizeCurrency(q.currency, s.localCurrency)
	source := s.Name()

	if category == resolver.CategoryCrypto || category == resolver.CategoryCommodity {
		if s.forex.NeedsConversion(currency) {
			rate, fallback, err := s.forex.Rate(ctx, currency)
			if err != nil {
				return nil, err
			}
			price = price.Mul(rate)
			if previous.Valid {
				previous.Decimal = previous.Decimal.Mul(rate)
			}
			currency = s.localCurrency
			if fallback {
				source += "+fallback-rate"
			}
		}
		if _, perOunce := commodityTickers[strings.ToUpper(symbol)]; perOunce && category == resolver.CategoryCommodity {
			price = price.Div(gramsPerOunce)
			if previous.Valid {
				previous.Decimal = previous.Decimal.Div(gramsPerOunce)
			}
		}
	}

	return newRecord(symbol, external, category, price, previous, currency, source, s.now().UTC()), nil
}

// yahooQuote is the subset of chart meta the service uses.
type yahooQuote struct {
	price    decimal.Decimal
	previous decimal.NullDecimal
	currency string
}

// quote fetches chart meta for one Yahoo ticker.
func (s *YahooSource) quote(ctx context.Context, ticker string) (*yahooQuote, error) {
	endpoint := s.baseURL + "/" + url.PathEscape(ticker) + "?interval=1d&range=1d"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrProviderUnreachable, err, "building request failed")
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	status, body, err := fetchBody(s.httpClient, req)
	if err != nil {
		return nil, err
	}
	// Yahoo answers unknown tickers with a 404 carrying a chart error.
	if status == http.StatusNotFound {
		if doc, decodeErr := decodeDocument(body); decodeErr == nil {
			if err := chartError(doc, ticker); err != nil {
				return nil, err
			}
		}
		return nil, apperrors.WithMessage(apperrors.ErrPriceUnavailable, ticker+": symbol not found (404)")
	}
	if err := statusError(status); err != nil {
		return nil, err
	}

	doc, err := decodeDocument(body)
	if err != nil {
		return nil, err
	}
	if err := chartError(doc, ticker); err != nil {
		return nil, err
	}

	meta, ok := lookup(doc, "$.chart.result[0].meta")
	if !ok {
		return nil, apperrors.WithMessage(apperrors.ErrMalformedResponse, ticker+": chart result is missing")
	}
	if _, isObject := meta.(map[string]any); !isObject {
		return nil, apperrors.WithMessage(apperrors.ErrMalformedResponse, ticker+": chart meta is not an object")
	}

	rawPrice, ok := lookup(meta, "$.regularMarketPrice")
	if !ok {
		return nil, apperrors.WithMessage(apperrors.ErrPriceUnavailable, ticker+": no current price in response")
	}
	price, ok := decimalValue(rawPrice)
	if !ok {
		return nil, apperrors.WithMessage(apperrors.ErrMalformedResponse, ticker+": regularMarketPrice is not a number")
	}
	if !validPrice(price) {
		return nil, apperrors.WithMessage(apperrors.ErrPriceUnavailable, ticker+": Failed to fetch valid price")
	}

	q := &yahooQuote{price: price}
	for _, field := range []string{"$.chartPreviousClose", "$.previousClose"} {
		if raw, ok := lookup(meta, field); ok {
			if prev, ok := decimalValue(raw); ok && prev.IsPositive() {
				q.previous = decimal.NullDecimal{Decimal: prev, Valid: true}
				break
			}
		}
	}
	if raw, ok := lookup(meta, "$.currency"); ok {
		q.currency = stringValue(raw)
	}
	return q, nil
}

// chartError returns ErrPriceUnavailable when doc carries a chart error.
func chartError(doc any, ticker string) error {
	chartErr, ok := lookup(doc, "$.chart.error")
	if !ok {
		return nil
	}
	desc := stringValue(mapField(chartErr, "description"))
	if desc == "" {
		desc = "symbol not found"
	}
	return apperrors.WithMessage(apperrors.ErrPriceUnavailable, fmt.Sprintf("%s: %s", ticker, desc))
}

func mapField(v any, key string) any {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	return m[key]
}
