// Package main はCLIツールのエントリポイント。
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"meal-stub-service/config"
	"meal-stub-service/internal/infra"
)

const version = "1.0.0"

var (
	apiURL         string
	output         string
	timeout        time.Duration
	cfg            *config.Config
	shutdownTracer infra.ShutdownFunc
)

// HTTPクライアント
var httpClient *http.Client

func main() {
	// Ctrl-Cで生成中のバッチを三つ組の区切りで止める
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if shutdownTracer != nil {
		if shutdownErr := shutdownTracer(context.Background()); shutdownErr != nil {
			fmt.Fprintf(os.Stderr, "failed to shutdown tracer: %v\n", shutdownErr)
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "stubctl",
		Short:        "Meal stub generation and verification CLI",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg = config.Load()

			shutdown, err := infra.InitTracer(cmd.Context(), cfg, version)
			if err != nil {
				return fmt.Errorf("failed to init tracer: %w", err)
			}
			shutdownTracer = shutdown
			// 標準出力はCSVや結果に使うためログは標準エラーへ
			infra.SetupLoggerTo(os.Stderr, cfg)

			if apiURL == "" {
				apiURL = os.Getenv("STUBCTL_API_URL")
			}
			if output != "text" && output != "json" {
				return fmt.Errorf("--output must be text or json, got %q", output)
			}
			httpClient = &http.Client{Timeout: timeout}
			return nil
		},
	}

	// グローバルフラグ
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API endpoint URL for verify/redeem (or set STUBCTL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	// サブコマンド登録
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(redeemCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(batchesCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(versionCmd())

	return rootCmd
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "stubctl version %s\n", version)
		},
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
