package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	wh "github.com/fatflowers/subgate/internal/app/service/webhook"
	"github.com/fatflowers/subgate/pkg/logctx"
)

// ApiEasytoolsWebhook handles provider webhook deliveries. All verification,
// processing and audit logging happen in the webhook service; this layer
// only moves bytes. The response envelope and status codes belong to the
// provider contract, not to the generic API envelope.
func ApiEasytoolsWebhook(h *wh.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			logctx.FromGin(c, h.Logger).Errorw("webhook body read failed", "error", err.Error())
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Failed to read request body"})
			return
		}

		traceID := c.GetString("traceID")
		out := h.Handle(
			c.Request.Context(),
			body,
			c.GetHeader("x-webhook-signature"),
			c.Query("api_token"),
			traceID,
		)
		c.JSON(out.HTTPStatus, out.Response)
	}
}

func RegisterWebhookRoutes(r gin.IRouter, h *wh.Service) {
	r.POST("/webhook", ApiEasytoolsWebhook(h))
}
