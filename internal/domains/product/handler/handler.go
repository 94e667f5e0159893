package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"checkout-core/internal/domains/product/service"
	"checkout-core/internal/shared/apperror"
	"checkout-core/internal/shared/response"
)

type Handler struct {
	ops service.ProductOps
}

func NewHandler(ops service.ProductOps) *Handler {
	return &Handler{ops: ops}
}

// GetProduct handles GET /api/v1/products/:id.
func (h *Handler) GetProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid product id")
		return
	}

	view, err := h.ops.GetView(c.Request.Context(), id)
	if err != nil {
		appErr := apperror.As(err)
		response.ErrorResponse(c, apperror.ProductNotFoundStatus(appErr.Kind), string(appErr.Kind), appErr.Message)
		return
	}

	response.Success(c, 200, view)
}
