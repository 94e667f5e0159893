package handler

import (
	"github.com/gin-gonic/gin"

	"checkout-core/internal/domains/hold/service"
	"checkout-core/internal/shared/apperror"
	"checkout-core/internal/shared/response"
)

type Handler struct {
	ops service.HoldOps
}

func NewHandler(ops service.HoldOps) *Handler {
	return &Handler{ops: ops}
}

type createHoldRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Qty       int   `json:"qty" binding:"required,gt=0"`
}

// CreateHold handles POST /api/v1/holds.
func (h *Handler) CreateHold(c *gin.Context) {
	var req createHoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := apperror.Wrap(apperror.KindValidationFailed, "invalid request body", err)
		response.ErrorResponse(c, apperror.HTTPStatus(appErr.Kind), string(appErr.Kind), appErr.Message)
		return
	}

	hold, err := h.ops.CreateHold(c.Request.Context(), req.ProductID, req.Qty)
	if err != nil {
		appErr := apperror.As(err)
		response.ErrorResponse(c, apperror.HTTPStatus(appErr.Kind), string(appErr.Kind), appErr.Message)
		return
	}

	response.Success(c, 201, gin.H{
		"hold_id":    hold.ID,
		"product_id": hold.ProductID,
		"qty":        hold.Qty,
		"expires_at": hold.ExpiresAt,
	})
}
