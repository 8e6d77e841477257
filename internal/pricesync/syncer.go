// Package pricesync refreshes stored asset prices from market data. A run
// resolves each asset to a market symbol, serves fresh prices from the price
// cache, fetches the rest and folds every per-asset outcome into one Result.
// Per-asset failures never abort a run.
package pricesync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/logger"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/market"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/models"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/pricecache"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/resolver"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

// MaxAgeLimit bounds Options.MaxAge.
const MaxAgeLimit = 24 * time.Hour

// Sync types recorded on price sync logs.
const (
	SyncTypeAll    = "all"
	SyncTypeByType = "by_type"
	SyncTypeAssets = "assets"
	SyncTypeSingle = "single"
)

// AssetQuery selects the working set of a run.
type AssetQuery struct {
	OwnerID    string
	AssetTypes []models.AssetType
	AssetIDs   []string
}

// AssetStore loads and updates assets.
type AssetStore interface {
	// ListForSync returns the matching assets ordered by ID.
	ListForSync(ctx context.Context, q AssetQuery) ([]models.Asset, error)
	ApplySyncedPrice(ctx context.Context, assetID string, price decimal.Decimal, at time.Time) error
}

// SymbolResolver maps an asset, or a bare symbol of a given kind, to its
// market symbol.
type SymbolResolver interface {
	Resolve(asset *models.Asset) (resolver.Resolution, error)
	ResolveSymbol(symbol, kind string) (resolver.Resolution, error)
}

// LogRecorder persists sync log rows.
type LogRecorder interface {
	Start(ctx context.Context, entry *models.SyncLog) error
	Finish(ctx context.Context, entry *models.SyncLog) error
}

// Options narrows and tunes one run.
type Options struct {
	AssetTypes []models.AssetType `json:"asset_types,omitempty"`
	// AssetIDs takes precedence over AssetTypes when non-empty.
	AssetIDs []string `json:"asset_ids,omitempty"`
	// OwnerID scopes the run to one user. Empty means every owner.
	OwnerID string `json:"owner_id,omitempty"`
	Force   bool   `json:"force"`
	// MaxAge serves an asset from its stored price while that price is
	// younger than MaxAge. Ignored when Force is set.
	MaxAge      time.Duration `json:"max_age,omitempty"`
	Limit       int           `json:"limit,omitempty"`
	TriggeredBy string        `json:"triggered_by,omitempty"`
	SyncType    string        `json:"sync_type,omitempty"`
}

// AssetError describes one failed asset.
type AssetError struct {
	AssetID string         `json:"asset_id"`
	Name    string         `json:"name"`
	Kind    apperrors.Kind `json:"kind"`
	Message string         `json:"message"`
}

// PriceUpdate describes one successful asset.
type PriceUpdate struct {
	AssetID  string              `json:"asset_id"`
	Name     string              `json:"name"`
	Symbol   string              `json:"symbol"`
	OldPrice decimal.NullDecimal `json:"old_price"`
	NewPrice decimal.Decimal     `json:"new_price"`
	Source   string              `json:"source"`
	Cached   bool                `json:"cached,omitempty"`
}

// Result aggregates one run.
type Result struct {
	LogID       string        `json:"log_id,omitempty"`
	TotalAssets int           `json:"total_assets"`
	Successful  int           `json:"successful"`
	Failed      int           `json:"failed"`
	Skipped     int           `json:"skipped"`
	DurationMs  int64         `json:"duration_ms"`
	Errors      []AssetError  `json:"errors,omitempty"`
	Updates     []PriceUpdate `json:"updates,omitempty"`
}

// Status classifies the result for the sync log.
func (r *Result) Status() models.SyncStatus {
	switch {
	case r.Failed == 0:
		return models.SyncStatusCompleted
	case r.Successful == 0 && r.Skipped == 0:
		return models.SyncStatusFailed
	default:
		return models.SyncStatusPartial
	}
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config tunes a Syncer. Zero values fall back to sequential processing,
// no retries and no per-fetch timeout.
type Config struct {
	// TTL is the cache lifetime per category; DefaultTTL covers the rest.
	TTL          map[resolver.Category]time.Duration
	DefaultTTL   time.Duration
	FetchTimeout time.Duration
	Retries      int
	RetryBackoff time.Duration
	Concurrency  int
	Clock        func() time.Time
	Sleep        SleepFunc
}

// Syncer runs price syncs.
type Syncer struct {
	store    AssetStore
	resolver SymbolResolver
	client   market.Client
	cache    *pricecache.Cache[market.PriceRecord]
	logs     LogRecorder
	cfg      Config
	now      func() time.Time
	sleep    SleepFunc

	assetLocks sync.Map
}

// New creates a Syncer. logs may be nil.
func New(store AssetStore, res SymbolResolver, client market.Client, cache *pricecache.Cache[market.PriceRecord], logs LogRecorder, cfg Config) *Syncer {
	s := &Syncer{
		store:    store,
		resolver: res,
		client:   client,
		cache:    cache,
		logs:     logs,
		cfg:      cfg,
		now:      cfg.Clock,
		sleep:    cfg.Sleep,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	if s.cfg.Concurrency < 1 {
		s.cfg.Concurrency = 1
	}
	if s.cfg.Retries < 0 {
		s.cfg.Retries = 0
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Sync runs one price sync. It fails only when the working set cannot be
// loaded; everything else is reported in the Result.
func (s *Syncer) Sync(ctx context.Context, opts Options) (*Result, error) {
	log := logger.Named("pricesync")
	if opts.MaxAge < 0 || opts.MaxAge > MaxAgeLimit {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "max_age must be between 0 and 86400000 milliseconds")
	}
	if opts.Limit < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrValidation, "limit must not be negative")
	}
	if opts.TriggeredBy == "" {
		opts.TriggeredBy = models.TriggerManual
	}
	if opts.SyncType == "" {
		opts.SyncType = syncTypeFor(opts)
	}

	started := s.now()
	entry := s.startLog(ctx, opts)
	res := &Result{}
	if entry != nil {
		res.LogID = entry.ID
	}

	q := AssetQuery{OwnerID: opts.OwnerID}
	if len(opts.AssetIDs) > 0 {
		q.AssetIDs = opts.AssetIDs
	} else {
		q.AssetTypes = opts.AssetTypes
	}
	assets, err := s.store.ListForSync(ctx, q)
	if err != nil {
		log.Errorw("price sync could not load assets", "log_id", res.LogID, "error", err)
		s.finishLog(ctx, entry, res, models.SyncStatusFailed, "failed to load assets")
		return nil, err
	}
	if opts.Limit > 0 && len(assets) > opts.Limit {
		assets = assets[:opts.Limit]
	}
	res.TotalAssets = len(assets)

	red := &reducer{}
	g := new(errgroup.Group)
	g.SetLimit(s.cfg.Concurrency)
	for i := range assets {
		asset := assets[i]
		g.Go(func() error {
			red.add(i, s.syncAsset(ctx, &asset, opts))
			return nil
		})
	}
	_ = g.Wait()
	red.fold(res)

	res.DurationMs = s.now().Sub(started).Milliseconds()
	log.Infow("price sync finished",
		"log_id", res.LogID,
		"triggered_by", opts.TriggeredBy,
		"total", res.TotalAssets,
		"successful", res.Successful,
		"failed", res.Failed,
		"skipped", res.Skipped,
		"duration_ms", res.DurationMs,
	)
	s.finishLog(ctx, entry, res, res.Status(), joinMessages(res.Errors))
	return res, nil
}

// SyncAsset force-refreshes one asset owned by ownerID.
func (s *Syncer) SyncAsset(ctx context.Context, ownerID, assetID, triggeredBy string) (*Result, error) {
	res, err := s.Sync(ctx, Options{
		AssetIDs:    []string{assetID},
		OwnerID:     ownerID,
		Force:       true,
		TriggeredBy: triggeredBy,
		SyncType:    SyncTypeSingle,
	})
	if err != nil {
		return nil, err
	}
	if res.TotalAssets == 0 {
		return nil, apperrors.ErrAssetNotFound
	}
	return res, nil
}

// LatestPrice returns the current price for a symbol, served from the cache
// when fresh. kind is an asset type or a provider category.
func (s *Syncer) LatestPrice(ctx context.Context, symbol, kind string) (*market.PriceRecord, error) {
	r, err := s.resolver.ResolveSymbol(symbol, kind)
	if err != nil {
		return nil, err
	}
	if rec, ok := s.cache.Get(r.Key()); ok {
		return &rec, nil
	}
	rec, err := s.fetch(ctx, r)
	if err != nil {
		return nil, err
	}
	out := *rec
	return &out, nil
}

type outcomeKind int

const (
	outcomeSuccess outcomeKind = iota
	outcomeFailed
	outcomeSkipped
)

type outcome struct {
	kind   outcomeKind
	err    AssetError
	update PriceUpdate
}

func (s *Syncer) syncAsset(ctx context.Context, asset *models.Asset, opts Options) outcome {
	log := logger.Named("pricesync")

	r, err := s.resolver.Resolve(asset)
	if err != nil {
		log.Infow("asset skipped, no market symbol",
			"asset_id", asset.ID,
			"asset_type", asset.AssetType,
			"error", err,
		)
		return outcome{kind: outcomeSkipped}
	}

	update := PriceUpdate{
		AssetID:  asset.ID,
		Name:     asset.Name,
		Symbol:   r.Symbol,
		OldPrice: asset.CurrentPrice,
	}

	if !opts.Force {
		if opts.MaxAge > 0 && asset.HasPrice() && asset.LastUpdated != nil && s.now().Sub(*asset.LastUpdated) < opts.MaxAge {
			update.NewPrice = asset.CurrentPrice.Decimal
			update.Source = "store"
			update.Cached = true
			return outcome{kind: outcomeSuccess, update: update}
		}
		if rec, ok := s.cache.Get(r.Key()); ok {
			update.NewPrice = rec.CurrentPrice
			update.Source = rec.Source
			update.Cached = true
			if asset.HasPrice() && asset.CurrentPrice.Decimal.Equal(rec.CurrentPrice) {
				return outcome{kind: outcomeSuccess, update: update}
			}
			if err := s.apply(ctx, asset.ID, rec.CurrentPrice); err != nil {
				return failure(asset, err)
			}
			return outcome{kind: outcomeSuccess, update: update}
		}
	}

	rec, err := s.fetch(ctx, r)
	if err != nil {
		return failure(asset, err)
	}
	if err := s.apply(ctx, asset.ID, rec.CurrentPrice); err != nil {
		return failure(asset, err)
	}
	update.NewPrice = rec.CurrentPrice
	update.Source = rec.Source
	return outcome{kind: outcomeSuccess, update: update}
}

func failure(asset *models.Asset, err error) outcome {
	return outcome{
		kind: outcomeFailed,
		err: AssetError{
			AssetID: asset.ID,
			Name:    asset.Name,
			Kind:    apperrors.KindOf(err),
			Message: fmt.Sprintf("Failed to update %s: %s", asset.Name, err.Error()),
		},
	}
}

// apply writes a price while holding the asset's lock.
func (s *Syncer) apply(ctx context.Context, assetID string, price decimal.Decimal) error {
	v, _ := s.assetLocks.LoadOrStore(assetID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	defer mu.Unlock()
	return s.store.ApplySyncedPrice(ctx, assetID, price, s.now())
}

// fetch calls the market client with per-attempt timeouts and retries
// transient failures with exponential backoff. A fetched record is cached.
func (s *Syncer) fetch(ctx context.Context, r resolver.Resolution) (*market.PriceRecord, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.Retries; attempt++ {
		if attempt > 0 {
			delay := s.cfg.RetryBackoff * time.Duration(1<<(attempt-1))
			logger.Named("pricesync").Debugw("retrying market fetch",
				"symbol", r.Symbol,
				"category", r.Category,
				"attempt", attempt,
				"delay", delay,
			)
			if err := s.sleep(ctx, delay); err != nil {
				return nil, apperrors.Wrapf(apperrors.ErrProviderUnreachable, err, "sync cancelled")
			}
		}

		rec, err := s.fetchOnce(ctx, r)
		if err == nil {
			if !rec.CurrentPrice.IsPositive() {
				return nil, apperrors.WithMessage(apperrors.ErrPriceUnavailable, "Failed to fetch valid price")
			}
			if ttl := s.ttl(r.Category); ttl > 0 {
				s.cache.Set(r.Key(), *rec, ttl)
			}
			return rec, nil
		}
		lastErr = err
		if !apperrors.Retryable(err) {
			break
		}
	}
	return nil, lastErr
}

func (s *Syncer) fetchOnce(ctx context.Context, r resolver.Resolution) (*market.PriceRecord, error) {
	fetchCtx := ctx
	if s.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, s.cfg.FetchTimeout)
		defer cancel()
	}

	rec, err := s.client.FetchPrice(fetchCtx, r.Symbol, r.Category)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindInternal &&
			(errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
			return nil, apperrors.Wrapf(apperrors.ErrProviderUnreachable, err, "request timed out")
		}
		return nil, err
	}
	if rec == nil {
		return nil, apperrors.WithMessage(apperrors.ErrPriceUnavailable, "Failed to fetch valid price")
	}
	return rec, nil
}

func (s *Syncer) ttl(category resolver.Category) time.Duration {
	if d, ok := s.cfg.TTL[category]; ok {
		return d
	}
	return s.cfg.DefaultTTL
}

func syncTypeFor(opts Options) string {
	switch {
	case len(opts.AssetIDs) > 0:
		return SyncTypeAssets
	case len(opts.AssetTypes) > 0:
		return SyncTypeByType
	}
	return SyncTypeAll
}

func (s *Syncer) startLog(ctx context.Context, opts Options) *models.SyncLog {
	if s.logs == nil {
		return nil
	}
	cfg, _ := json.Marshal(opts)
	entry := &models.SyncLog{
		Kind:        models.SyncKindPrice,
		SyncType:    opts.SyncType,
		TriggeredBy: opts.TriggeredBy,
		SyncConfig:  cfg,
	}
	if opts.OwnerID != "" {
		owner := opts.OwnerID
		entry.UserID = &owner
	}
	if err := s.logs.Start(ctx, entry); err != nil {
		logger.Named("pricesync").Warnw("failed to record price sync start", "error", err)
		return nil
	}
	return entry
}

func (s *Syncer) finishLog(ctx context.Context, entry *models.SyncLog, res *Result, status models.SyncStatus, message string) {
	if entry == nil {
		return
	}
	entry.Status = status
	entry.TotalRecords = res.TotalAssets
	entry.Successful = res.Successful
	entry.Failed = res.Failed
	entry.Skipped = res.Skipped
	entry.ErrorMessage = message
	if len(res.Errors) > 0 {
		if raw, err := json.Marshal(res.Errors); err == nil {
			entry.ErrorDetails = raw
		}
	}
	if err := s.logs.Finish(ctx, entry); err != nil {
		logger.Named("pricesync").Warnw("failed to record price sync result", "log_id", entry.ID, "error", err)
	}
}

func joinMessages(errs []AssetError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

// reducer accumulates outcomes from concurrent workers.
type reducer struct {
	mu       sync.Mutex
	outcomes []indexedOutcome
}

type indexedOutcome struct {
	index int
	outcome
}

func (r *reducer) add(i int, o outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, indexedOutcome{index: i, outcome: o})
}

// fold writes the counts into res in working-set order.
func (r *reducer) fold(res *Result) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sort.Slice(r.outcomes, func(i, j int) bool { return r.outcomes[i].index < r.outcomes[j].index })
	for _, o := range r.outcomes {
		switch o.kind {
		case outcomeSuccess:
			res.Successful++
			res.Updates = append(res.Updates, o.update)
		case outcomeFailed:
			res.Failed++
			res.Errors = append(res.Errors, o.err)
		case outcomeSkipped:
			res.Skipped++
		}
	}
}
