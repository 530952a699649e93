package webhooklog

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strings"
	"time"

	"github.com/fatflowers/subgate/internal/models"
)

type ExportFormat string

const (
	ExportFormatCSV      ExportFormat = "csv"
	ExportFormatMarkdown ExportFormat = "md"
)

// Export renders the filtered audit entries in the requested format and
// returns the bytes plus a content type for the download response.
func (s *Service) Export(ctx context.Context, req *ListRequest, format ExportFormat) ([]byte, string, error) {
	res, err := s.List(ctx, req)
	if err != nil {
		return nil, "", err
	}
	switch format {
	case ExportFormatCSV:
		data, err := renderCSV(res.Items)
		return data, "text/csv", err
	case ExportFormatMarkdown:
		return renderMarkdown(res.Items), "text/markdown", nil
	default:
		return nil, "", fmt.Errorf("unsupported export format: %s", format)
	}
}

var exportHeader = []string{"id", "created_at", "event_type", "customer_email", "user_id", "status", "request_body", "response_body"}

func renderCSV(items []*models.WebhookLog) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(exportHeader); err != nil {
		return nil, err
	}
	for _, it := range items {
		userID := ""
		if it.UserID != nil {
			userID = *it.UserID
		}
		row := []string{
			it.ID,
			it.CreatedAt.Format(time.RFC3339),
			it.EventType,
			it.CustomerEmail,
			userID,
			string(it.Status),
			it.RequestBody,
			it.ResponseBody,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderMarkdown(items []*models.WebhookLog) []byte {
	var b strings.Builder
	b.WriteString("| Date | Event | Email | User ID | Status |\n")
	b.WriteString("|------|-------|-------|---------|--------|\n")
	for _, it := range items {
		userID := "-"
		if it.UserID != nil {
			userID = *it.UserID
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s |\n",
			it.CreatedAt.Format(time.RFC3339),
			escapePipes(it.EventType),
			escapePipes(it.CustomerEmail),
			userID,
			it.Status,
		)
	}
	return []byte(b.String())
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
