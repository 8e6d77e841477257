package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/models"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/pagination"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/pricesync"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/services"
)

// PortfolioHandler handles asset and transaction requests.
type PortfolioHandler struct {
	assetService services.AssetServicer
	syncer       PriceSyncer
	auditService services.AuditServicer
}

// NewPortfolioHandler creates a new PortfolioHandler.
func NewPortfolioHandler(assetService services.AssetServicer, syncer PriceSyncer, auditService services.AuditServicer) *PortfolioHandler {
	return &PortfolioHandler{assetService: assetService, syncer: syncer, auditService: auditService}
}

// PortfolioSyncRequest represents the request payload of the portfolio price refresh.
type PortfolioSyncRequest struct {
	AssetIDs []string `json:"assetIds" binding:"omitempty,dive,min=1"`
	Force    bool     `json:"force"`
}

// TransactionRequest represents the request payload for a new transaction.
type TransactionRequest struct {
	Type         string           `json:"type" binding:"omitempty,transaction_type"`
	Quantity     *decimal.Decimal `json:"quantity" binding:"required"`
	PricePerUnit *decimal.Decimal `json:"price_per_unit" binding:"required"`
	Date         time.Time        `json:"date"`
	Notes        string           `json:"notes" binding:"max=500"`
}

func (r TransactionRequest) input() services.TransactionInput {
	return services.TransactionInput{
		Type:         models.TransactionType(strings.ToUpper(r.Type)),
		Quantity:     *r.Quantity,
		PricePerUnit: *r.PricePerUnit,
		Date:         r.Date,
		Notes:        r.Notes,
	}
}

// CreateAssetRequest represents the request payload for creating an asset.
type CreateAssetRequest struct {
	AssetType          string              `json:"asset_type" binding:"required,asset_type"`
	Name               string              `json:"name" binding:"required,min=1,max=200"`
	Symbol             string              `json:"symbol" binding:"max=32"`
	Category           string              `json:"category" binding:"max=100"`
	Currency           string              `json:"currency" binding:"omitempty,iso4217"`
	InitialTransaction *TransactionRequest `json:"initial_transaction"`
}

// UpdateTransactionRequest represents the request payload for updating a transaction.
type UpdateTransactionRequest struct {
	Type         *string          `json:"type" binding:"omitempty,transaction_type"`
	Quantity     *decimal.Decimal `json:"quantity"`
	PricePerUnit *decimal.Decimal `json:"price_per_unit"`
	Date         *time.Time       `json:"date"`
	Notes        *string          `json:"notes" binding:"omitempty,max=500"`
}

// ManualPriceRequest represents the request payload for a manual price entry.
type ManualPriceRequest struct {
	Price *decimal.Decimal `json:"price" binding:"required"`
}

// SyncPrices godoc
//
//	@Summary		Refresh prices of the caller's portfolio
//	@Description	Runs the price sync over the caller's assets, optionally restricted to the given IDs
//	@Tags			portfolio
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		PortfolioSyncRequest	false	"Assets to refresh"
//	@Success		200		{object}	DataResponse{data=pricesync.Result}
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Router			/portfolio/sync-prices [post]
func (h *PortfolioHandler) SyncPrices(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req PortfolioSyncRequest
	if err := bindOptionalJSON(c, &req); err != nil {
		respondBindError(c, err)
		return
	}

	result, err := h.syncer.Sync(c.Request.Context(), pricesync.Options{
		OwnerID:     userID,
		AssetIDs:    req.AssetIDs,
		Force:       req.Force,
		TriggeredBy: models.TriggerManual,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "SYNC_PORTFOLIO_PRICES", "sync_log", result.LogID, c.ClientIP(),
		map[string]any{"asset_ids": req.AssetIDs, "force": req.Force})

	respondOK(c, http.StatusOK, result)
}

// CreateAsset godoc
//
//	@Summary		Create an asset
//	@Tags			portfolio
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		CreateAssetRequest	true	"Asset details"
//	@Success		201		{object}	DataResponse{data=models.Asset}
//	@Failure		400		{object}	ErrorResponse
//	@Failure		401		{object}	ErrorResponse
//	@Router			/portfolio/assets [post]
func (h *PortfolioHandler) CreateAsset(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateAssetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	assetType, _ := models.ParseAssetType(req.AssetType)
	in := services.CreateAssetInput{
		AssetType: assetType,
		Name:      req.Name,
		Symbol:    req.Symbol,
		Category:  req.Category,
		Currency:  req.Currency,
	}
	if req.InitialTransaction != nil {
		txn := req.InitialTransaction.input()
		in.InitialTransaction = &txn
	}

	asset, err := h.assetService.CreateAsset(c.Request.Context(), userID, in)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_ASSET", "asset", asset.ID, c.ClientIP(),
		map[string]any{"asset_type": asset.AssetType, "name": asset.Name, "symbol": asset.Symbol})

	respondOK(c, http.StatusCreated, asset)
}

// GetAssets godoc
//
//	@Summary		List the caller's assets
//	@Tags			portfolio
//	@Produce		json
//	@Security		BearerAuth
//	@Param			type		query		string	false	"Asset type filter"
//	@Param			page		query		int		false	"Page number"	default(1)
//	@Param			page_size	query		int		false	"Page size"		default(20)
//	@Success		200			{object}	DataResponse{data=[]models.Asset,meta=pagination.Meta}
//	@Failure		400			{object}	ErrorResponse
//	@Failure		401			{object}	ErrorResponse
//	@Router			/portfolio/assets [get]
func (h *PortfolioHandler) GetAssets(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondBindError(c, err)
		return
	}

	var assetType models.AssetType
	if raw := c.Query("type"); raw != "" {
		t, ok := models.ParseAssetType(raw)
		if !ok {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, "Invalid asset type"))
			return
		}
		assetType = t
	}

	result, err := h.assetService.GetUserAssets(c.Request.Context(), userID, assetType, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondWithMeta(c, result.Items, result.Meta)
}

// GetAsset godoc
//
//	@Summary		Get an asset with its transactions
//	@Tags			portfolio
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Asset ID"
//	@Success		200	{object}	DataResponse{data=models.Asset}
//	@Failure		404	{object}	ErrorResponse
//	@Router			/portfolio/assets/{id} [get]
func (h *PortfolioHandler) GetAsset(c *gin.Context) {
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

	asset, err := h.assetService.GetAssetByID(c.Request.Context(), userID, assetID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondOK(c, http.StatusOK, asset)
}

// DeleteAsset godoc
//
//	@Summary		Delete an asset and its transactions
//	@Tags			portfolio
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id	path		string	true	"Asset ID"
//	@Success		200	{object}	DataResponse
//	@Failure		404	{object}	ErrorResponse
//	@Router			/portfolio/assets/{id} [delete]
func (h *PortfolioHandler) DeleteAsset(c *gin.Context) {
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

	if err := h.assetService.DeleteAsset(c.Request.Context(), userID, assetID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_ASSET", "asset", assetID, c.ClientIP(), nil)

	respondOK(c, http.StatusOK, gin.H{"id": assetID})
}

// SetManualPrice godoc
//
//	@Summary		Set an asset price by hand
//	@Description	For assets without a market source. A later sync may overwrite it.
//	@Tags			portfolio
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string				true	"Asset ID"
//	@Param			request	body		ManualPriceRequest	true	"New price"
//	@Success		200		{object}	DataResponse{data=models.Asset}
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/portfolio/assets/{id}/price [put]
func (h *PortfolioHandler) SetManualPrice(c *gin.Context) {
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

	var req ManualPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	asset, err := h.assetService.SetManualPrice(c.Request.Context(), userID, assetID, *req.Price)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "SET_MANUAL_PRICE", "asset", assetID, c.ClientIP(),
		map[string]any{"price": req.Price.String()})

	respondOK(c, http.StatusOK, asset)
}

// AddTransaction godoc
//
//	@Summary		Record a buy or sell
//	@Tags			portfolio
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string				true	"Asset ID"
//	@Param			request	body		TransactionRequest	true	"Transaction details"
//	@Success		201		{object}	DataResponse{data=models.Transaction}
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/portfolio/assets/{id}/transactions [post]
func (h *PortfolioHandler) AddTransaction(c *gin.Context) {
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

	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	txn, err := h.assetService.AddTransaction(c.Request.Context(), userID, assetID, req.input())
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, txn)
}

// UpdateTransaction godoc
//
//	@Summary		Update a transaction
//	@Description	Omitted fields keep their value. The total is recomputed.
//	@Tags			portfolio
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			id		path		string						true	"Transaction ID"
//	@Param			request	body		UpdateTransactionRequest	true	"Changed fields"
//	@Success		200		{object}	DataResponse{data=models.Transaction}
//	@Failure		400		{object}	ErrorResponse
//	@Failure		404		{object}	ErrorResponse
//	@Router			/portfolio/transactions/{id} [put]
func (h *PortfolioHandler) UpdateTransaction(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	transactionID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	update := services.TransactionUpdate{
		Quantity:     req.Quantity,
		PricePerUnit: req.PricePerUnit,
		Date:         req.Date,
		Notes:        req.Notes,
	}
	if req.Type != nil {
		t := models.TransactionType(strings.ToUpper(*req.Type))
		update.Type = &t
	}

	txn, err := h.assetService.UpdateTransaction(c.Request.Context(), userID, transactionID, update)
	if err != nil {
		respondWithError(c, err)
		return
	}

	respondOK(c, http.StatusOK, txn)
}
