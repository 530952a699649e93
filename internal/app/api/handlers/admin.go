package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"gorm.io/gorm"

	"github.com/fatflowers/subgate/internal/app/service/notifier"
	"github.com/fatflowers/subgate/internal/app/service/webhooklog"
	models "github.com/fatflowers/subgate/internal/models"
	"github.com/fatflowers/subgate/pkg/response"
	"github.com/fatflowers/subgate/pkg/types"
)

type ListWebhookLogsRequest struct {
	Filters   []*types.CommonFilter `json:"filters"`
	From      int                   `json:"from"`
	Size      int                   `json:"size"`
	SortOrder string                `json:"sort_order"`
}

type WebhookLogItem struct {
	ID            string                  `json:"id"`
	EventType     string                  `json:"event_type"`
	CustomerEmail string                  `json:"customer_email"`
	UserID        *string                 `json:"user_id"`
	TraceID       string                  `json:"trace_id"`
	Status        models.WebhookLogStatus `json:"status"`
	RequestBody   string                  `json:"request_body"`
	ResponseBody  string                  `json:"response_body"`
	CreatedAt     time.Time               `json:"created_at"`
}

func toWebhookLogItem(m *models.WebhookLog) *WebhookLogItem {
	return &WebhookLogItem{
		ID:            m.ID,
		EventType:     m.EventType,
		CustomerEmail: m.CustomerEmail,
		UserID:        m.UserID,
		TraceID:       m.TraceID,
		Status:        m.Status,
		RequestBody:   m.RequestBody,
		ResponseBody:  m.ResponseBody,
		CreatedAt:     m.CreatedAt,
	}
}

type ListWebhookLogsResponse struct {
	Items []*WebhookLogItem `json:"items"`
	Total int64             `json:"total"`
}

// ApiListWebhookLogs handles POST /api/v1/admin/list_webhook_logs
func ApiListWebhookLogs(svc *webhooklog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListWebhookLogsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.List(c.Request.Context(), &webhooklog.ListRequest{Filters: req.Filters, From: req.From, Size: req.Size, SortOrder: req.SortOrder})
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		items := lo.Map(res.Items, func(it *models.WebhookLog, _ int) *WebhookLogItem { return toWebhookLogItem(it) })
		c.JSON(http.StatusOK, response.OKT(&ListWebhookLogsResponse{Items: items, Total: res.Total}))
	}
}

// ApiGetWebhookLog handles GET /api/v1/admin/webhook_logs/:id
func ApiGetWebhookLog(svc *webhooklog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		entry, err := svc.Get(c.Request.Context(), c.Param("id"))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, "webhook log not found"))
			return
		}
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(toWebhookLogItem(entry)))
	}
}

// ApiDeleteWebhookLog handles DELETE /api/v1/admin/webhook_logs/:id
func ApiDeleteWebhookLog(svc *webhooklog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := svc.Delete(c.Request.Context(), c.Param("id"))
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, "webhook log not found"))
			return
		}
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

// ApiExportWebhookLogs handles POST /api/v1/admin/export_webhook_logs.
// The format query parameter picks csv (default) or md; the export is a
// plain file download, not the JSON envelope.
func ApiExportWebhookLogs(svc *webhooklog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListWebhookLogsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		format := webhooklog.ExportFormat(c.DefaultQuery("format", string(webhooklog.ExportFormatCSV)))
		data, contentType, err := svc.Export(c.Request.Context(), &webhooklog.ListRequest{Filters: req.Filters, From: req.From, Size: req.Size, SortOrder: req.SortOrder}, format)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		filename := fmt.Sprintf("webhook_logs_%s.%s", time.Now().Format("2006-01-02"), format)
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
		c.Data(http.StatusOK, contentType, data)
	}
}

// ApiGetWebhookLogStats handles GET /api/v1/admin/webhook_log_stats
func ApiGetWebhookLogStats(svc *webhooklog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := svc.GetStats(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(stats))
	}
}

// ApiSendTestEmail handles POST /api/v1/admin/send_test_email
func ApiSendTestEmail(notif *notifier.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email"`
			Username string `json:"username"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if req.Email == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing email"))
			return
		}
		if err := notif.SendTestEmail(c.Request.Context(), req.Email, req.Username); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

func RegisterAdminRoutes(r gin.IRouter, logs *webhooklog.Service, notif *notifier.Service) {
	r.POST("/list_webhook_logs", ApiListWebhookLogs(logs))
	r.GET("/webhook_logs/:id", ApiGetWebhookLog(logs))
	r.DELETE("/webhook_logs/:id", ApiDeleteWebhookLog(logs))
	r.POST("/export_webhook_logs", ApiExportWebhookLogs(logs))
	r.GET("/webhook_log_stats", ApiGetWebhookLogStats(logs))
	r.POST("/send_test_email", ApiSendTestEmail(notif))
}
