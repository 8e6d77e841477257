// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/models"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/resolver"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/tickers"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterOn(v)
	}
}

// RegisterOn registers the custom validators on v.
func RegisterOn(v *validator.Validate) {
	_ = v.RegisterValidation("iso4217", validateISO4217)
	_ = v.RegisterValidation("asset_type", validateAssetType)
	_ = v.RegisterValidation("ticker_category", validateTickerCategory)
	_ = v.RegisterValidation("price_type", validatePriceType)
	_ = v.RegisterValidation("sync_type", validateSyncType)
	_ = v.RegisterValidation("trigger", validateTrigger)
	_ = v.RegisterValidation("transaction_type", validateTransactionType)
}

func validateISO4217(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	return code == strings.ToUpper(code) && money.GetCurrency(code) != nil
}

func validateAssetType(fl validator.FieldLevel) bool {
	_, ok := models.ParseAssetType(fl.Field().String())
	return ok
}

// validatePriceType accepts an asset type or a provider category.
func validatePriceType(fl validator.FieldLevel) bool {
	if _, ok := models.ParseAssetType(fl.Field().String()); ok {
		return true
	}
	_, ok := resolver.ParseCategory(fl.Field().String())
	return ok
}

// validateTickerCategory accepts the asset types kept in the ticker directory.
func validateTickerCategory(fl validator.FieldLevel) bool {
	t, ok := models.ParseAssetType(fl.Field().String())
	return ok && (t == models.AssetTypeStock || t == models.AssetTypeFund)
}

func validateSyncType(fl validator.FieldLevel) bool {
	_, ok := tickers.ParseSyncType(fl.Field().String())
	return ok
}

func validateTrigger(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case models.TriggerManual, models.TriggerCron, models.TriggerAPI:
		return true
	}
	return false
}

func validateTransactionType(fl validator.FieldLevel) bool {
	switch strings.ToUpper(fl.Field().String()) {
	case string(models.TransactionTypeBuy), string(models.TransactionTypeSell):
		return true
	}
	return false
}
