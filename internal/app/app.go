// Package app wires the price and ticker engines onto a database handle.
// The API server and the operator CLI share it so both run the same stack.
package app

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/config"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/market"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/models"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/pricecache"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/pricesync"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/resolver"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/services"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/tickers"
)

// App holds the wired services and engines.
type App struct {
	Users    services.UserServicer
	Assets   services.AssetServicer
	SyncLogs services.SyncLogServicer
	Audit    services.AuditServicer
	Prices   *pricesync.Syncer
	Tickers  *tickers.Service
}

// Options overrides parts of the wiring. Tests swap the HTTP client and clock.
type Options struct {
	HTTPClient *http.Client
	Clock      func() time.Time
}

// New builds the application stack from cfg over db.
func New(cfg *config.Config, db *gorm.DB, opts Options) *App {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		// Per-fetch deadlines come from the syncer; this only bounds stray requests.
		httpClient = &http.Client{Timeout: 2 * cfg.FetchTimeout}
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	yahoo := market.NewYahooSource(httpClient, market.YahooConfig{
		BaseURL:         cfg.YahooBaseURL,
		UserAgent:       cfg.UserAgent,
		LocalCurrency:   cfg.LocalCurrency,
		ExchangeSuffix:  cfg.EquityExchangeSuffix,
		ForexTTL:        cfg.ForexCacheTTL,
		FallbackUSDRate: decimal.NewFromFloat(cfg.FallbackUSDRate),
		Clock:           clock,
	})
	tefas := market.NewTEFASSource(httpClient, market.TEFASConfig{
		BaseURL:     cfg.TEFASBaseURL,
		FallbackURL: cfg.TEFASFallbackURL,
		UserAgent:   cfg.UserAgent,
		Clock:       clock,
	})
	router := market.NewRouter(tefas, yahoo).WithFetchTimeout(cfg.FetchTimeout)

	assets := services.NewAssetService(db, cfg.LocalCurrency)
	syncLogs := services.NewSyncLogService(db, clock)

	syncer := pricesync.New(assets, resolver.Default(), router,
		pricecache.New[market.PriceRecord](pricecache.Clock(clock)), syncLogs,
		pricesync.Config{
			DefaultTTL:   cfg.PriceCacheTTL,
			FetchTimeout: cfg.FetchTimeout,
			Retries:      cfg.FetchRetries,
			RetryBackoff: cfg.FetchRetryBackoff,
			Concurrency:  cfg.SyncConcurrency,
			Clock:        clock,
		})

	tickerService := tickers.NewService(tickers.NewStore(db, clock), syncLogs, tickers.ServiceConfig{
		Feeds: map[models.AssetType]tickers.Feed{
			models.AssetTypeStock: tickers.NewKAPFeed(httpClient, cfg.KAPCompaniesURL, cfg.UserAgent),
			models.AssetTypeFund:  tickers.NewFundFeed(tefas),
		},
		MinInterval: cfg.TickerSyncMinInterval,
		Clock:       clock,
	})

	return &App{
		Users:    services.NewUserService(db),
		Assets:   assets,
		SyncLogs: syncLogs,
		Audit:    services.NewAuditService(db),
		Prices:   syncer,
		Tickers:  tickerService,
	}
}
