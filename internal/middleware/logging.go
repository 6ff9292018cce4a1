// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"time"
)

// 監査ログの結果。
const (
	ResultSuccess = "SUCCESS"
	ResultFailed  = "FAILED"
)

// AuditLog は監査ログの構造体。
type AuditLog struct {
	Operation string `json:"operation"`
	Subject   string `json:"subject"`
	Result    string `json:"result"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// WriteAuditLog は監査ログを出力する。
// subject はバッチIDまたは平文IDで、鍵や暗号文は含めない。
func WriteAuditLog(ctx context.Context, operation, subject, result string, reason error) {
	entry := AuditLog{
		Operation: operation,
		Subject:   subject,
		Result:    result,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if reason != nil {
		entry.Reason = reason.Error()
	}

	level := slog.LevelInfo
	if result != ResultSuccess {
		level = slog.LevelWarn
	}
	slog.Log(ctx, level, "stub operation completed",
		"operation", entry.Operation,
		"subject", entry.Subject,
		"result", entry.Result,
		"reason", entry.Reason,
		"timestamp", entry.Timestamp,
	)
}
