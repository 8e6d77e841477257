package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/market"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/models"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/pricesync"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/services"
)

// PriceSyncer is the price sync engine as seen by the HTTP layer.
type PriceSyncer interface {
	Sync(ctx context.Context, opts pricesync.Options) (*pricesync.Result, error)
	SyncAsset(ctx context.Context, ownerID, assetID, triggeredBy string) (*pricesync.Result, error)
	LatestPrice(ctx context.Context, symbol, kind string) (*market.PriceRecord, error)
}

var _ PriceSyncer = (*pricesync.Syncer)(nil)

// SyncLogReader reads recent sync history.
type SyncLogReader interface {
	RecentForUser(ctx context.Context, kind models.SyncKind, userID string, limit int) ([]models.SyncLog, error)
}

// PriceHandler serves price lookups and price sync runs.
type PriceHandler struct {
	syncer       PriceSyncer
	logs         SyncLogReader
	auditService services.AuditServicer
}

// NewPriceHandler creates a new PriceHandler.
func NewPriceHandler(syncer PriceSyncer, logs SyncLogReader, auditService services.AuditServicer) *PriceHandler {
	return &PriceHandler{syncer: syncer, logs: logs, auditService: auditService}
}

// LatestPriceQuery holds the query of GET /prices/latest.
type LatestPriceQuery struct {
	Symbol string `form:"symbol" binding:"required,min=1,max=32"`
	Type   string `form:"type" binding:"omitempty,price_type"`
}

// PriceSyncRequest represents the request payload for a price sync run.
type PriceSyncRequest struct {
	AssetTypes []string `json:"asset_types" binding:"omitempty,dive,asset_type"`
	AssetIDs   []string `json:"asset_ids" binding:"omitempty,dive,min=1"`
	Force      bool     `json:"force"`
	// MaxAge is in milliseconds.
	MaxAge      int64  `json:"max_age" binding:"omitempty,min=0,max=86400000"`
	Limit       int    `json:"limit" binding:"omitempty,min=1"`
	TriggeredBy string `json:"triggered_by" binding:"omitempty,trigger"`
}

// options converts the request into sync options.
func (r PriceSyncRequest) options() pricesync.Options {
	opts := pricesync.Options{
		AssetIDs:    r.AssetIDs,
		Force:       r.Force,
		MaxAge:      time.Duration(r.MaxAge) * time.Millisecond,
		Limit:       r.Limit,
		TriggeredBy: r.TriggeredBy,
	}
	for _, raw := range r.AssetTypes {
		if t, ok := models.ParseAssetType(raw); ok {
			opts.AssetTypes = append(opts.AssetTypes, t)
		}
	}
	return opts
}

// GetLatestPrice godoc
//
//	@Summary		Get the latest price of a symbol
//	@Description	Resolves the symbol for the asset type or provider category and returns a cached or freshly fetched quote
//	@Tags			prices
//	@Produce		json
//	@Security		BearerAuth
//	@Param			symbol	query		string	true	"Symbol, e.g. THYAO or GRAM_ALTIN"
//	@Param			type	query		string	false	"Asset type (STOCK, FUND, GOLD, ...) or provider category (EQUITY, COMMODITY, CURRENCY, CRYPTO)"	default(STOCK)
//	@Success		200		{object}	DataResponse{data=market.PriceRecord}
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Failure		500		{object}	ErrorResponse
//	@Router			/prices/latest [get]
func (h *PriceHandler) GetLatestPrice(c *gin.Context) {
	var q LatestPriceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		respondBindError(c, err)
		return
	}

	record, err := h.syncer.LatestPrice(c.Request.Context(), q.Symbol, q.Type)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondOK(c, http.StatusOK, record)
}

// SyncPrices godoc
//
//	@Summary		Sync prices of the caller's assets
//	@Description	Refreshes stored prices of the caller's assets, optionally narrowed by type or ID
//	@Tags			prices
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		PriceSyncRequest	false	"Sync options"
//	@Success		200		{object}	DataResponse{data=pricesync.Result}
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Router			/prices/sync [post]
func (h *PriceHandler) SyncPrices(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PriceSyncRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBindError(c, err)
		return
	}

	opts := req.options()
	opts.OwnerID = userID
	if opts.TriggeredBy == "" {
		opts.TriggeredBy = models.TriggerManual
	}

	result, err := h.syncer.Sync(c.Request.Context(), opts)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "SYNC_PRICES", "sync_log", result.LogID, c.ClientIP(),
		map[string]any{"total_assets": result.TotalAssets, "successful": result.Successful, "failed": result.Failed})

	respondOK(c, http.StatusOK, result)
}

// SyncAssetPrice godoc
//
//	@Summary		Refresh the price of one asset
//	@Description	Forces a fresh fetch for one of the caller's assets
//	@Tags			prices
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Asset ID"
//	@Success		200	{object}	DataResponse{data=pricesync.Result}
//	@Failure		401	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/prices/assets/{id}/sync [post]
func (h *PriceHandler) SyncAssetPrice(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	assetID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.syncer.SyncAsset(c.Request.Context(), userID, assetID, models.TriggerManual)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "SYNC_ASSET_PRICE", "asset", assetID, c.ClientIP(),
		map[string]any{"successful": result.Successful, "failed": result.Failed})

	respondOK(c, http.StatusOK, result)
}

// GetSyncStatus godoc
//
//	@Summary		List recent price sync runs
//	@Tags			prices
//	@Produce		json
//	@Security		BearerAuth
//	@Param			limit	query		int	false	"Number of runs (max 50)"	default(10)
//	@Success		200		{object}	DataResponse{data=[]models.SyncLog}
//	@Failure		401		{object}	ErrorResponse
//	@Router			/prices/sync/status [get]
func (h *PriceHandler) GetSyncStatus(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	logs, err := h.logs.RecentForUser(c.Request.Context(), models.SyncKindPrice, userID, limit)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondOK(c, http.StatusOK, logs)
}

// PipelineSyncPrices godoc
//
//	@Summary		Sync prices of every owner's assets
//	@Description	Cron entry point. Runs unscoped and defaults the trigger to cron.
//	@Tags			pipeline
//	@Accept			json
//	@Produce		json
//	@Security		PipelineAPIKey
//	@Param			request	body		PriceSyncRequest	false	"Sync options"
//	@Success		200		{object}	DataResponse{data=pricesync.Result}
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Router			/pipeline/prices/sync [post]
func (h *PriceHandler) PipelineSyncPrices(c *gin.Context) {
	var req PriceSyncRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBindError(c, err)
		return
	}

	opts := req.options()
	if opts.TriggeredBy == "" {
		opts.TriggeredBy = models.TriggerCron
	}

	result, err := h.syncer.Sync(c.Request.Context(), opts)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log("", "PIPELINE_SYNC_PRICES", "sync_log", result.LogID, c.ClientIP(),
		map[string]any{"triggered_by": opts.TriggeredBy, "asset_ids": opts.AssetIDs, "force": opts.Force})

	respondOK(c, http.StatusOK, result)
}

// bindOptionalJSON binds a JSON body that may be absent altogether.
func bindOptionalJSON(c *gin.Context, dst any) error {
	if c.Request.ContentLength == 0 {
		return nil
	}
	return c.ShouldBindJSON(dst)
}
