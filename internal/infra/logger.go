package infra

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"meal-stub-service/config"
)

// TraceHandler はスパン情報をログレコードに付与するslogハンドラ。
type TraceHandler struct {
	slog.Handler
	// "projects/<id>/traces/" 形式。空ならCloud Logging用フィールドを付けない。
	cloudTracePrefix string
	enabled          bool
}

// NewTraceHandler はhandlerをラップしたTraceHandlerを生成する。
func NewTraceHandler(handler slog.Handler, cfg *config.Config) *TraceHandler {
	h := &TraceHandler{Handler: handler, enabled: cfg.OtelEnabled}
	if cfg.GoogleCloudProject != "" {
		h.cloudTracePrefix = "projects/" + cfg.GoogleCloudProject + "/traces/"
	}
	return h
}

// Handle はスパンが有効な場合にtrace/spanIdを付与して委譲する。
func (h *TraceHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.enabled {
		r.AddAttrs(spanAttrs(trace.SpanContextFromContext(ctx), h.cloudTracePrefix)...)
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs は属性を追加した新しいハンドラを返す。
func (h *TraceHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.Handler = h.Handler.WithAttrs(attrs)
	return &clone
}

// WithGroup はグループを追加した新しいハンドラを返す。
func (h *TraceHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.Handler = h.Handler.WithGroup(name)
	return &clone
}

func spanAttrs(sc trace.SpanContext, cloudTracePrefix string) []slog.Attr {
	if !sc.IsValid() {
		return nil
	}
	traceID := sc.TraceID().String()
	spanID := sc.SpanID().String()
	attrs := []slog.Attr{
		slog.String("trace", traceID),
		slog.String("spanId", spanID),
		slog.Bool("traceSampled", sc.IsSampled()),
	}
	if cloudTracePrefix != "" {
		attrs = append(attrs,
			slog.String("logging.googleapis.com/trace", cloudTracePrefix+traceID),
			slog.String("logging.googleapis.com/spanId", spanID),
		)
	}
	return attrs
}

// ParseLogLevel はLOG_LEVELの値をslog.Levelに変換する。未知の値はINFO。
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// severityAttr はlevelキーをCloud Loggingのseverityに置き換える。
func severityAttr(groups []string, a slog.Attr) slog.Attr {
	if len(groups) == 0 && a.Key == slog.LevelKey {
		level, _ := a.Value.Any().(slog.Level)
		severity := "DEFAULT"
		switch {
		case level >= slog.LevelError:
			severity = "ERROR"
		case level >= slog.LevelWarn:
			severity = "WARNING"
		case level >= slog.LevelInfo:
			severity = "INFO"
		case level >= slog.LevelDebug:
			severity = "DEBUG"
		}
		return slog.String("severity", severity)
	}
	return a
}

// SetupLogger はトレース情報付きのグローバルロガーを設定する。
func SetupLogger(cfg *config.Config) {
	SetupLoggerTo(os.Stdout, cfg)
}

// SetupLoggerTo は出力先を指定してグローバルロガーを設定する。
// CLIでは標準出力をコマンド結果に使うため標準エラーを渡す。
func SetupLoggerTo(w io.Writer, cfg *config.Config) {
	slog.SetDefault(NewLogger(w, cfg))
}

// NewLogger はJSON形式でserviceを付与したロガーを生成する。
func NewLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       ParseLogLevel(cfg.LogLevel),
		ReplaceAttr: severityAttr,
	})
	return slog.New(NewTraceHandler(jsonHandler, cfg)).With("service", cfg.OtelServiceName)
}
