package market

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/logger"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/resolver"

	"github.com/shopspring/decimal"
)

const (
	tefasBaseURL        = "https://www.tefas.gov.tr"
	tefasHistoryPath    = "/api/DB/BindHistoryInfo"
	tefasFallbackURL    = "https://raw.githubusercontent.com/emirhalici/tefas_intermittent_api/data/fund_data.json"
	tefasUA             = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
	tefasDateLayout     = "02.01.2006"
	tefasHistoryDays    = 7
	SourceTEFASOfficial = "tefas-official"
	SourceTEFASGitHub   = "tefas-github"
)

// FundInfo is one fund in the TEFAS directory.
type FundInfo struct {
	Code string
	Name string
}

// TEFASConfig configures a TEFASSource. Zero values fall back to defaults.
type TEFASConfig struct {
	BaseURL     string
	FallbackURL string
	UserAgent   string
	Clock       func() time.Time
}

// TEFASSource serves Turkish investment fund prices from the TEFAS history
// API, falling back to a GitHub mirror when TEFAS blocks the request.
type TEFASSource struct {
	httpClient  *http.Client
	baseURL     string
	fallbackURL string
	userAgent   string
	now         func() time.Time
}

// NewTEFASSource creates a TEFAS source.
func NewTEFASSource(httpClient *http.Client, cfg TEFASConfig) *TEFASSource {
	s := &TEFASSource{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		fallbackURL: cfg.FallbackURL,
		userAgent:   cfg.UserAgent,
		now:         cfg.Clock,
	}
	if s.baseURL == "" {
		s.baseURL = tefasBaseURL
	}
	if s.fallbackURL == "" {
		s.fallbackURL = tefasFallbackURL
	}
	if s.userAgent == "" {
		s.userAgent = tefasUA
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Name returns the provider name.
func (s *TEFASSource) Name() string { return "tefas" }

// Supports reports whether category is served by TEFAS.
func (s *TEFASSource) Supports(category resolver.Category) bool {
	return category == resolver.CategoryFund
}

// ExternalSymbol returns the TEFAS fund code.
func (s *TEFASSource) ExternalSymbol(symbol string, _ resolver.Category) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Fetch returns the latest NAV for a fund code.
func (s *TEFASSource) Fetch(ctx context.Context, symbol string, category resolver.Category) (*PriceRecord, error) {
	code := s.ExternalSymbol(symbol, category)

	rec, err := s.fetchOfficial(ctx, symbol, code)
	if err == nil {
		return rec, nil
	}
	logger.Named("market").Warnw("tefas official API failed, trying fallback",
		"fund", code,
		"error", err,
	)

	rec, fallbackErr := s.fetchFallback(ctx, symbol, code)
	if fallbackErr != nil {
		return nil, fmt.Errorf("official API failed (%v); fallback failed: %w", err, fallbackErr)
	}
	return rec, nil
}

// ListFunds returns the fund directory and the tag of the source that served it.
func (s *TEFASSource) ListFunds(ctx context.Context) ([]FundInfo, string, error) {
	today := s.now().Format(tefasDateLayout)
	doc, err := s.postHistory(ctx, "", today, today)
	if err == nil {
		funds, parseErr := fundsFromHistory(doc)
		if parseErr == nil && len(funds) > 0 {
			return funds, SourceTEFASOfficial, nil
		}
		err = parseErr
		if err == nil {
			err = apperrors.WithMessage(apperrors.ErrPriceUnavailable, "TEFAS returned no funds")
		}
	}
	logger.Named("market").Warnw("tefas fund listing failed, trying fallback", "error", err)

	items, fallbackErr := s.fallbackItems(ctx)
	if fallbackErr != nil {
		return nil, "", apperrors.Wrapf(apperrors.ErrProviderUnreachable, fallbackErr,
			"both TEFAS official and fallback APIs failed")
	}

	funds := make([]FundInfo, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		code := strings.ToUpper(stringValue(mapField(item, "code")))
		name := stringValue(mapField(item, "description"))
		if code == "" || name == "" || seen[code] {
			continue
		}
		seen[code] = true
		funds = append(funds, FundInfo{Code: code, Name: name})
	}
	return funds, SourceTEFASGitHub, nil
}

func (s *TEFASSource) fetchOfficial(ctx context.Context, symbol, code string) (*PriceRecord, error) {
	end := s.now()
	start := end.AddDate(0, 0, -tefasHistoryDays)

	doc, err := s.postHistory(ctx, code, start.Format(tefasDateLayout), end.Format(tefasDateLayout))
	if err != nil {
		return nil, err
	}

	rows, err := historyRows(doc)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrPriceUnavailable, code+": no price history returned")
	}

	// TARIH is epoch milliseconds; order oldest first so the last row is the latest.
	sort.SliceStable(rows, func(i, j int) bool {
		return rowTime(rows[i]) < rowTime(rows[j])
	})

	current, ok := decimalValue(mapField(rows[len(rows)-1], "FIYAT"))
	if !ok {
		return nil, apperrors.WithMessage(apperrors.ErrMalformedResponse, code+": FIYAT is not a number")
	}
	if !validPrice(current) {
		return nil, apperrors.WithMessage(apperrors.ErrPriceUnavailable, code+": Failed to fetch valid price")
	}

	var previous decimal.NullDecimal
	if len(rows) > 1 {
		if prev, ok := decimalValue(mapField(rows[len(rows)-2], "FIYAT")); ok && prev.IsPositive() {
			previous = decimal.NullDecimal{Decimal: prev, Valid: true}
		}
	}

	return newRecord(symbol, code, resolver.CategoryFund, current, previous, "TRY", SourceTEFASOfficial, s.now().UTC()), nil
}

func (s *TEFASSource) fetchFallback(ctx context.Context, symbol, code string) (*PriceRecord, error) {
	items, err := s.fallbackItems(ctx)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if !strings.EqualFold(stringValue(mapField(item, "code")), code) {
			continue
		}
		current, ok := decimalValue(mapField(item, "priceTRY"))
		if !ok || !validPrice(current) {
			return nil, apperrors.WithMessage(apperrors.ErrPriceUnavailable, code+": Failed to fetch valid price")
		}

		var previous decimal.NullDecimal
		if pct, ok := decimalValue(mapField(item, "changePercentageDaily")); ok {
			divisor := decimal.NewFromInt(1).Add(pct.Div(hundred))
			if divisor.IsPositive() {
				previous = decimal.NullDecimal{Decimal: current.Div(divisor), Valid: true}
			}
		}
		return newRecord(symbol, code, resolver.CategoryFund, current, previous, "TRY", SourceTEFASGitHub, s.now().UTC()), nil
	}

	return nil, apperrors.WithMessage(apperrors.ErrPriceUnavailable, code+": fund not found in fallback data")
}

// postHistory calls BindHistoryInfo. An empty code lists every fund.
func (s *TEFASSource) postHistory(ctx context.Context, code, from, to string) (any, error) {
	form := url.Values{
		"fontip":    {"YAT"},
		"sfontur":   {""},
		"kurucukod": {""},
		"fonkod":    {code},
		"bastarih":  {from},
		"bittarih":  {to},
		"fonturkod": {""},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+tefasHistoryPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrProviderUnreachable, err, "building request failed")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	req.Header.Set("Accept", "application/json, text/javascript, */*; q=0.01")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Origin", tefasBaseURL)
	req.Header.Set("Referer", tefasBaseURL+"/TarihselVeriler.aspx")

	body, err := doRequest(s.httpClient, req)
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(bytes.TrimSpace(body), []byte("<")) {
		return nil, apperrors.WithMessage(apperrors.ErrProviderUnreachable, "TEFAS returned HTML instead of JSON, access blocked")
	}
	return decodeDocument(body)
}

func (s *TEFASSource) fallbackItems(ctx context.Context) ([]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.fallbackURL, nil)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrProviderUnreachable, err, "building request failed")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)

	body, err := doRequest(s.httpClient, req)
	if err != nil {
		return nil, err
	}
	doc, err := decodeDocument(body)
	if err != nil {
		return nil, err
	}
	items, ok := doc.([]any)
	if !ok {
		return nil, apperrors.WithMessage(apperrors.ErrMalformedResponse, "fallback fund data is not a list")
	}
	return items, nil
}

func historyRows(doc any) ([]any, error) {
	data, ok := lookup(doc, "$.data")
	if !ok {
		return nil, apperrors.WithMessage(apperrors.ErrMalformedResponse, "TEFAS response has no data field")
	}
	rows, ok := data.([]any)
	if !ok {
		return nil, apperrors.WithMessage(apperrors.ErrMalformedResponse, "TEFAS data field is not a list")
	}
	return rows, nil
}

func fundsFromHistory(doc any) ([]FundInfo, error) {
	rows, err := historyRows(doc)
	if err != nil {
		return nil, err
	}
	funds := make([]FundInfo, 0, len(rows))
	seen := make(map[string]bool, len(rows))
	for _, row := range rows {
		code := strings.ToUpper(stringValue(mapField(row, "FONKODU")))
		name := stringValue(mapField(row, "FONUNVAN"))
		if code == "" || name == "" || seen[code] {
			continue
		}
		seen[code] = true
		funds = append(funds, FundInfo{Code: code, Name: name})
	}
	return funds, nil
}

func rowTime(row any) int64 {
	v := mapField(row, "TARIH")
	switch t := v.(type) {
	case string:
		n, _ := strconv.ParseInt(strings.TrimSpace(t), 10, 64)
		return n
	default:
		if d, ok := decimalValue(t); ok {
			return d.IntPart()
		}
	}
	return 0
}
