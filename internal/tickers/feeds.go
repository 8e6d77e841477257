package tickers

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"strings"

	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/logger"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/market"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// Data source tags stored on ticker rows.
const (
	SourceKAP      = "kap"
	SourceFundSeed = "static-seed"
)

// Feed produces the complete list of instruments for one asset type.
type Feed interface {
	Name() string
	List(ctx context.Context) ([]Entry, error)
}

// kapHeaderTicker marks repeated header rows inside the KAP sheet.
const kapHeaderTicker = "BIST KODU"

// KAPFeed downloads the KAP listed-companies workbook.
type KAPFeed struct {
	httpClient *http.Client
	url        string
	userAgent  string
}

// NewKAPFeed creates a KAP feed reading from url.
func NewKAPFeed(httpClient *http.Client, url, userAgent string) *KAPFeed {
	return &KAPFeed{httpClient: httpClient, url: url, userAgent: userAgent}
}

// Name returns the feed name.
func (f *KAPFeed) Name() string { return SourceKAP }

// List downloads and parses the workbook.
func (f *KAPFeed) List(ctx context.Context) ([]Entry, error) {
	body, err := market.Download(ctx, f.httpClient, f.url, f.userAgent)
	if err != nil {
		return nil, err
	}
	return ParseKAPWorkbook(body)
}

// ParseKAPWorkbook reads companies from the first sheet of a KAP export.
// Columns are ticker, name and city. A ticker cell may list several codes
// separated by commas; each becomes its own entry.
func ParseKAPWorkbook(data []byte) ([]Entry, error) {
	wb, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrMalformedResponse, err, "KAP workbook could not be opened")
	}
	defer func() { _ = wb.Close() }()

	rows, err := wb.GetRows(wb.GetSheetName(0))
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrMalformedResponse, err, "KAP workbook has no readable sheet")
	}

	var entries []Entry
	seen := make(map[string]bool)
	for i, row := range rows {
		if i == 0 || len(row) < 3 {
			continue
		}
		tickerCell := strings.TrimSpace(row[0])
		name := strings.TrimSpace(row[1])
		city := strings.TrimSpace(row[2])
		if tickerCell == "" || name == "" || strings.EqualFold(tickerCell, kapHeaderTicker) {
			continue
		}

		for _, code := range strings.Split(tickerCell, ",") {
			code = strings.ToUpper(strings.TrimSpace(code))
			if code == "" || seen[code] {
				continue
			}
			seen[code] = true
			entries = append(entries, Entry{
				Symbol:     code,
				Name:       name,
				City:       city,
				DataSource: SourceKAP,
			})
		}
	}
	return entries, nil
}

// FundLister lists the fund directory. market.TEFASSource implements it.
type FundLister interface {
	ListFunds(ctx context.Context) ([]market.FundInfo, string, error)
}

//go:embed seed/funds.yaml
var fundSeedYAML []byte

type fundSeed struct {
	Funds []struct {
		Code     string `yaml:"code"`
		Name     string `yaml:"name"`
		Category string `yaml:"category"`
	} `yaml:"funds"`
}

// SeedFunds returns the bundled fund list.
func SeedFunds() ([]Entry, error) {
	var seed fundSeed
	if err := yaml.Unmarshal(fundSeedYAML, &seed); err != nil {
		return nil, fmt.Errorf("decode fund seed: %w", err)
	}
	entries := make([]Entry, 0, len(seed.Funds))
	for _, f := range seed.Funds {
		entries = append(entries, Entry{
			Symbol:     strings.ToUpper(f.Code),
			Name:       f.Name,
			Category:   f.Category,
			DataSource: SourceFundSeed,
		})
	}
	return entries, nil
}

// FundFeed lists TEFAS funds, using the bundled seed when TEFAS and its
// mirror are both unavailable.
type FundFeed struct {
	lister FundLister
}

// NewFundFeed creates a fund feed. A nil lister serves the seed only.
func NewFundFeed(lister FundLister) *FundFeed {
	return &FundFeed{lister: lister}
}

// Name returns the feed name.
func (f *FundFeed) Name() string { return "tefas" }

// List returns the fund directory.
func (f *FundFeed) List(ctx context.Context) ([]Entry, error) {
	if f.lister != nil {
		funds, source, err := f.lister.ListFunds(ctx)
		if err == nil && len(funds) > 0 {
			entries := make([]Entry, 0, len(funds))
			for _, fund := range funds {
				entries = append(entries, Entry{Symbol: fund.Code, Name: fund.Name, DataSource: source})
			}
			return entries, nil
		}
		logger.Named("tickers").Warnw("fund listing unavailable, using bundled seed", "error", err)
	}
	return SeedFunds()
}
