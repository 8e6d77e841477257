package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/stvowns/portfolio-tracker-starter-sub001/internal/errors"
	"github.com/stvowns/portfolio-tracker-starter-sub001/internal/logger"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Success bool         `json:"success" example:"false"`
	Error   string       `json:"error" example:"Search query must be at least 2 characters"`
	Code    string       `json:"code" example:"INVALID_QUERY"`
	Details []FieldError `json:"details,omitempty"`
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// DataResponse is the body of a successful request.
type DataResponse struct {
	Success bool `json:"success" example:"true"`
	Data    any  `json:"data"`
	Meta    any  `json:"meta,omitempty"`
}

// getUserID extracts the authenticated user ID from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (string, error) {
	userID := c.GetString("userID")
	if userID == "" {
		return "", apperrors.ErrUnauthorized
	}
	return userID, nil
}

// parsePathID reads a non-empty path parameter.
func parsePathID(c *gin.Context, param string) (string, error) {
	id := strings.TrimSpace(c.Param(param))
	if id == "" {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid "+param)
	}
	return id, nil
}

func respondOK(c *gin.Context, status int, data any) {
	c.JSON(status, DataResponse{Success: true, Data: data})
}

func respondWithMeta(c *gin.Context, data, meta any) {
	c.JSON(http.StatusOK, DataResponse{Success: true, Data: data, Meta: meta})
}

// respondBindError reports a request that failed binding or validation.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrValidation, err.Error()))
		return
	}

	details := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	c.JSON(apperrors.ErrValidation.StatusCode, ErrorResponse{
		Error:   apperrors.ErrValidation.Message,
		Code:    apperrors.ErrValidation.Code,
		Details: details,
	})
}

// respondWithError writes a consistent JSON error response. If the error is an
// *AppError it uses the error's status code, code, and message. Otherwise it
// logs the unexpected error and returns a generic internal server error.
func respondWithError(c *gin.Context, err error) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Internal != nil {
			logger.Get().Errorw("app error",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
			)
		}
		c.JSON(appErr.StatusCode, ErrorResponse{Error: appErr.Message, Code: appErr.Code})
		return
	}

	logger.Get().Errorw("unexpected error",
		"error", err.Error(),
		"path", c.Request.URL.Path,
		"method", c.Request.Method,
	)
	c.JSON(apperrors.ErrInternalServer.StatusCode, ErrorResponse{
		Error: apperrors.ErrInternalServer.Message,
		Code:  apperrors.ErrInternalServer.Code,
	})
}
