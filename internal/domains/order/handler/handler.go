package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"checkout-core/internal/domains/order/model"
	"checkout-core/internal/domains/order/service"
	"checkout-core/internal/shared/apperror"
	"checkout-core/internal/shared/response"
)

type Handler struct {
	ops service.OrderOps
}

func NewHandler(ops service.OrderOps) *Handler {
	return &Handler{ops: ops}
}

type createOrderRequest struct {
	HoldID int64 `json:"hold_id" binding:"required"`
}

// CreateOrder handles POST /api/v1/orders.
func (h *Handler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		appErr := apperror.Wrap(apperror.KindValidationFailed, "invalid request body", err)
		response.ErrorResponse(c, apperror.HTTPStatus(appErr.Kind), string(appErr.Kind), appErr.Message)
		return
	}

	order, err := h.ops.CreateOrderFromHold(c.Request.Context(), req.HoldID)
	if err != nil {
		appErr := apperror.As(err)
		response.ErrorResponse(c, apperror.HTTPStatus(appErr.Kind), string(appErr.Kind), appErr.Message)
		return
	}

	respondOrder(c, 201, order)
}

// GetOrder handles GET /api/v1/orders/:id.
func (h *Handler) GetOrder(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid order id")
		return
	}

	order, err := h.ops.Get(c.Request.Context(), id)
	if err != nil {
		appErr := apperror.As(err)
		response.ErrorResponse(c, apperror.HTTPStatus(appErr.Kind), string(appErr.Kind), appErr.Message)
		return
	}

	respondOrder(c, 200, order)
}

func respondOrder(c *gin.Context, status int, o *model.Order) {
	response.Success(c, status, gin.H{
		"id":         o.ID,
		"hold_id":    o.HoldID,
		"status":     o.Status,
		"amount":     o.Amount,
		"created_at": o.CreatedAt,
		"updated_at": o.UpdatedAt,
	})
}
