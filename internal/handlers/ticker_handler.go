package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/models"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/services"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/tickers"
)

// TickerServicer is the ticker directory as seen by the HTTP layer.
type TickerServicer interface {
	Search(ctx context.Context, query string, assetType models.AssetType, limit int) ([]models.TickerCacheEntry, error)
	Sync(ctx context.Context, req tickers.SyncRequest) (*tickers.SyncReport, error)
	Stats(ctx context.Context) (*tickers.Stats, error)
}

var _ TickerServicer = (*tickers.Service)(nil)

// TickerHandler serves ticker search and directory refreshes.
type TickerHandler struct {
	tickerService TickerServicer
	auditService  services.AuditServicer
}

// NewTickerHandler creates a new TickerHandler.
func NewTickerHandler(tickerService TickerServicer, auditService services.AuditServicer) *TickerHandler {
	return &TickerHandler{tickerService: tickerService, auditService: auditService}
}

// TickerItem is one search hit.
type TickerItem struct {
	ID          string           `json:"id"`
	AssetType   models.AssetType `json:"assetType"`
	Symbol      string           `json:"symbol"`
	Name        string           `json:"name"`
	Category    string           `json:"category"`
	City        string           `json:"city,omitempty"`
	LastUpdated time.Time        `json:"lastUpdated"`
}

// SearchMeta describes a search response.
type SearchMeta struct {
	Query     string           `json:"query"`
	AssetType models.AssetType `json:"asset_type"`
	Count     int              `json:"count"`
	Limit     int              `json:"limit"`
}

// TickerSyncRequest represents the request payload for a ticker directory refresh.
type TickerSyncRequest struct {
	SyncType    string `json:"sync_type" binding:"required,sync_type"`
	Force       bool   `json:"force"`
	TriggeredBy string `json:"triggered_by" binding:"omitempty,trigger"`
	Policy      string `json:"policy" binding:"omitempty,oneof=best_effort atomic"`
}

func (r TickerSyncRequest) syncRequest() tickers.SyncRequest {
	t, _ := tickers.ParseSyncType(r.SyncType)
	return tickers.SyncRequest{
		Type:        t,
		Force:       r.Force,
		TriggeredBy: r.TriggeredBy,
		Policy:      tickers.ReplacePolicy(r.Policy),
	}
}

// SearchTickers godoc
//
//	@Summary		Search the ticker directory
//	@Description	Case-insensitive substring search over symbols and names, ranked by match quality
//	@Tags			tickers
//	@Produce		json
//	@Security		BearerAuth
//	@Param			q		query		string	true	"Query (at least 2 characters)"
//	@Param			type	query		string	false	"STOCK or FUND"
//	@Param			limit	query		int		false	"Maximum results (max 50)"	default(20)
//	@Success		200		{object}	DataResponse{data=[]TickerItem,meta=SearchMeta}
//	@Failure		400		{object}	ErrorResponse
//	@Router			/tickers/search [get]
func (h *TickerHandler) SearchTickers(c *gin.Context) {
	query := c.Query("q")

	var assetType models.AssetType
	if raw := c.Query("type"); raw != "" {
		t, ok := models.ParseAssetType(raw)
		if !ok {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, "Invalid asset type"))
			return
		}
		assetType = t
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	limit = tickers.ClampLimit(limit)

	entries, err := h.tickerService.Search(c.Request.Context(), query, assetType, limit)
	if err != nil {
		respondWithError(c, err)
		return
	}

	items := make([]TickerItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, TickerItem{
			ID:          e.ID,
			AssetType:   e.AssetType,
			Symbol:      e.Symbol,
			Name:        e.Name,
			Category:    e.Category,
			City:        e.City,
			LastUpdated: e.LastUpdated,
		})
	}

	respondWithMeta(c, items, SearchMeta{
		Query:     query,
		AssetType: assetType,
		Count:     len(items),
		Limit:     limit,
	})
}

// SyncTickers godoc
//
//	@Summary		Refresh the ticker directory
//	@Description	Replaces the directory entries of BIST, TEFAS or both from their upstream feeds
//	@Tags			tickers
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		TickerSyncRequest	true	"Sync options"
//	@Success		200		{object}	DataResponse{data=tickers.SyncReport}
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Router			/tickers/sync [post]
func (h *TickerHandler) SyncTickers(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req TickerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	syncReq := req.syncRequest()
	syncReq.UserID = &userID
	if syncReq.TriggeredBy == "" {
		syncReq.TriggeredBy = models.TriggerManual
	}

	report, err := h.tickerService.Sync(c.Request.Context(), syncReq)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "SYNC_TICKERS", "ticker_cache", string(report.SyncType), c.ClientIP(),
		map[string]any{"force": req.Force})

	respondOK(c, http.StatusOK, report)
}

// GetTickerStats godoc
//
//	@Summary		Ticker directory statistics
//	@Tags			tickers
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	DataResponse{data=tickers.Stats}
//	@Router			/tickers/stats [get]
func (h *TickerHandler) GetTickerStats(c *gin.Context) {
	stats, err := h.tickerService.Stats(c.Request.Context())
	if err != nil {
		respondWithError(c, err)
		return
	}
	respondOK(c, http.StatusOK, stats)
}

// PipelineSyncTickers godoc
//
//	@Summary		Refresh the ticker directory from cron
//	@Tags			pipeline
//	@Accept			json
//	@Produce		json
//	@Security		PipelineAPIKey
//	@Param			request	body		TickerSyncRequest	true	"Sync options"
//	@Success		200		{object}	DataResponse{data=tickers.SyncReport}
//	@Failure		400		{object}	ErrorResponse
//	@Router			/pipeline/tickers/sync [post]
func (h *TickerHandler) PipelineSyncTickers(c *gin.Context) {
	var req TickerSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	syncReq := req.syncRequest()
	if syncReq.TriggeredBy == "" {
		syncReq.TriggeredBy = models.TriggerCron
	}

	report, err := h.tickerService.Sync(c.Request.Context(), syncReq)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log("", "PIPELINE_SYNC_TICKERS", "ticker_cache", string(report.SyncType), c.ClientIP(),
		map[string]any{"triggered_by": syncReq.TriggeredBy, "force": syncReq.Force})

	respondOK(c, http.StatusOK, report)
}
