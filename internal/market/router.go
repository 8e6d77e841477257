package market

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/logger"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/resolver"

	"golang.org/x/sync/singleflight"
)

// SymbolSource is a Source that can report the provider ticker it queries.
type SymbolSource interface {
	Source
	ExternalSymbol(symbol string, category resolver.Category) string
}

// defaultFetchTimeout bounds a shared fetch when no timeout is configured.
const defaultFetchTimeout = 10 * time.Second

// Router dispatches each fetch to the first source supporting the category.
// Concurrent fetches for the same symbol and category share one request. The
// shared request runs detached from every caller's cancellation and is bounded
// by the fetch timeout; a caller whose context ends stops waiting on its own.
type Router struct {
	sources []SymbolSource
	group   singleflight.Group
	timeout time.Duration
}

// NewRouter creates a Router over sources, in priority order.
func NewRouter(sources ...SymbolSource) *Router {
	return &Router{sources: sources, timeout: defaultFetchTimeout}
}

// WithFetchTimeout sets the bound of one shared fetch. Non-positive values
// keep the default.
func (r *Router) WithFetchTimeout(d time.Duration) *Router {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Resolve returns the source and provider ticker serving symbol, if any.
func (r *Router) Resolve(symbol string, category resolver.Category) (SymbolSource, string, bool) {
	for _, src := range r.sources {
		if src.Supports(category) {
			return src, src.ExternalSymbol(symbol, category), true
		}
	}
	return nil, "", false
}

// FetchPrice implements Client.
func (r *Router) FetchPrice(ctx context.Context, symbol string, category resolver.Category) (*PriceRecord, error) {
	log := logger.Named("market")
	symbol = strings.TrimSpace(symbol)

	src, external, ok := r.Resolve(symbol, category)
	if !ok {
		err := apperrors.WithMessage(apperrors.ErrPriceUnavailable, "no market data source for category "+string(category))
		log.Warnw("market fetch failed",
			"symbol", symbol,
			"category", category,
			"error", err,
		)
		return nil, err
	}

	v, err, shared := r.share(ctx, string(category)+":"+symbol, func(fetchCtx context.Context) (any, error) {
		return src.Fetch(fetchCtx, symbol, category)
	})
	if err != nil {
		log.Warnw("market fetch failed",
			"symbol", symbol,
			"external_symbol", external,
			"category", category,
			"source", src.Name(),
			"kind", apperrors.KindOf(err),
			"error", err,
		)
		return nil, err
	}

	// Callers sharing a flight each get their own copy.
	rec := *v.(*PriceRecord)
	log.Infow("market price fetched",
		"symbol", symbol,
		"external_symbol", rec.ExternalSymbol,
		"category", category,
		"source", rec.Source,
		"price", rec.CurrentPrice.String(),
		"currency", rec.Currency,
		"shared", shared,
	)
	return &rec, nil
}

// share runs fetch once per key across concurrent callers and waits for the
// result until ctx ends.
func (r *Router) share(ctx context.Context, key string, fetch func(context.Context) (any, error)) (any, error, bool) {
	ch := r.group.DoChan(key, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		return fetch(fetchCtx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Err, res.Shared
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.Wrapf(apperrors.ErrProviderUnreachable, ctx.Err(), "request timed out"), false
		}
		return nil, apperrors.Wrapf(apperrors.ErrProviderUnreachable, ctx.Err(), "request cancelled"), false
	}
}
