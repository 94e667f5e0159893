package handler

import (
	"io"

	"github.com/gin-gonic/gin"

	"checkout-core/internal/domains/webhook/service"
	"checkout-core/internal/shared/apperror"
	"checkout-core/internal/shared/response"
)

type Handler struct {
	ops service.WebhookOps
}

func NewHandler(ops service.WebhookOps) *Handler {
	return &Handler{ops: ops}
}

// HandleWebhook handles POST /api/v1/payments/webhook. The gateway's
// delivery is always answered 200 once recorded, even when settlement
// is deferred to reconciliation, so the gateway doesn't treat a
// pending_order outcome as a delivery failure and retry-storm us.
func (h *Handler) HandleWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "could not read webhook body")
		return
	}

	result, err := h.ops.Handle(c.Request.Context(), body)
	if err != nil {
		appErr := apperror.As(err)
		response.ErrorResponse(c, apperror.HTTPStatus(appErr.Kind), string(appErr.Kind), appErr.Message)
		return
	}

	response.Success(c, 200, result)
}
