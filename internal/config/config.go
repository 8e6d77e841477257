package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Server
	Port string
	Env  string

	// Auth
	JWTSecret      string
	PipelineAPIKey string

	// Market data sources
	YahooBaseURL         string
	TEFASBaseURL         string
	TEFASFallbackURL     string
	KAPCompaniesURL      string
	UserAgent            string
	LocalCurrency        string
	EquityExchangeSuffix string
	FallbackUSDRate      float64

	// Price sync
	FetchTimeout      time.Duration
	FetchRetries      int
	FetchRetryBackoff time.Duration
	SyncConcurrency   int
	PriceCacheTTL     time.Duration
	ForexCacheTTL     time.Duration

	// Ticker sync
	TickerSyncMinInterval time.Duration
}

var appConfig *Config

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if not already loaded
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}

	config := &Config{
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		JWTSecret:      getEnv("JWT_SECRET", "fallback-secret-key-for-dev-only"),
		PipelineAPIKey: getEnv("PIPELINE_API_KEY", ""),

		YahooBaseURL:         getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com/v8/finance/chart"),
		TEFASBaseURL:         getEnv("TEFAS_BASE_URL", "https://www.tefas.gov.tr"),
		TEFASFallbackURL:     getEnv("TEFAS_FALLBACK_URL", "https://raw.githubusercontent.com/emirhalici/tefas_intermittent_api/data/fund_data.json"),
		KAPCompaniesURL:      getEnv("KAP_COMPANIES_URL", "https://www.kap.org.tr/tr/api/company/generic/excel/IGS/A"),
		UserAgent:            getEnv("MARKET_USER_AGENT", "Mozilla/5.0 (compatible; portfolio-tracker/1.0)"),
		LocalCurrency:        currencyEnv("LOCAL_CURRENCY", "TRY"),
		EquityExchangeSuffix: getEnv("EQUITY_EXCHANGE_SUFFIX", ".IS"),
		FallbackUSDRate:      floatEnv("FALLBACK_USD_RATE", 34),

		FetchTimeout:      durationEnv("FETCH_TIMEOUT", 10*time.Second),
		FetchRetries:      intEnv("FETCH_RETRIES", 2),
		FetchRetryBackoff: durationEnv("FETCH_RETRY_BACKOFF", 500*time.Millisecond),
		SyncConcurrency:   intEnv("SYNC_CONCURRENCY", 1),
		PriceCacheTTL:     durationEnv("PRICE_CACHE_TTL", 5*time.Minute),
		ForexCacheTTL:     durationEnv("FOREX_CACHE_TTL", 5*time.Minute),

		TickerSyncMinInterval: durationEnv("TICKER_SYNC_MIN_INTERVAL", 24*time.Hour),
	}

	if config.SyncConcurrency < 1 {
		log.Printf("Warning: SYNC_CONCURRENCY must be at least 1, got %d; using 1\n", config.SyncConcurrency)
		config.SyncConcurrency = 1
	}
	if config.FetchRetries < 0 {
		config.FetchRetries = 0
	}

	appConfig = config
	return config, nil
}

// Get returns the application configuration
func Get() *Config {
	if appConfig == nil {
		var err error
		appConfig, err = Load()
		if err != nil {
			log.Fatalf("Failed to load configuration: %v", err)
		}
	}
	return appConfig
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %s\n", key, raw, fallback)
		return fallback
	}
	return d
}

func intEnv(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("Warning: invalid %s value '%s', falling back to %d\n", key, raw, fallback)
		return fallback
	}
	return n
}

func floatEnv(key string, fallback float64) float64 {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		log.Printf("Warning: invalid %s value '%s', falling back to %v\n", key, raw, fallback)
		return fallback
	}
	return f
}

// currencyEnv reads an ISO 4217 code, rejecting codes go-money does not know.
func currencyEnv(key, fallback string) string {
	code := strings.ToUpper(strings.TrimSpace(getEnv(key, fallback)))
	if money.GetCurrency(code) == nil {
		log.Printf("Warning: unknown currency %s='%s', falling back to %s\n", key, code, fallback)
		return fallback
	}
	return code
}
