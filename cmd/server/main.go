// Package main はAPIサーバーのエントリポイント。
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"meal-stub-service/config"
	"meal-stub-service/internal/domain"
	"meal-stub-service/internal/handler"
	"meal-stub-service/internal/infra"
	"meal-stub-service/internal/repository"
	"meal-stub-service/internal/usecase"
)

const version = "1.0.0"

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	cfg := config.Load()

	// トレーサー初期化（ロガー設定の前に実行）
	shutdownTracer, err := infra.InitTracer(ctx, cfg, version)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracer(ctx); err != nil {
			slog.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// トレース情報付きロガーを設定
	infra.SetupLogger(cfg)

	// メトリクスはサービス生成より先に登録する
	metrics, err := infra.InitMetrics(ctx, cfg, version)
	if err != nil {
		return err
	}
	defer func() {
		if err := metrics.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown metrics", "error", err)
		}
	}()
	var metricsHandler http.Handler
	if metrics != nil {
		metricsHandler = metrics.Handler()
	}

	policy, err := domain.ParseErrorPolicy(cfg.ErrorPolicy)
	if err != nil {
		return err
	}

	// DB初期化
	db, err := infra.NewDB(cfg)
	if err != nil {
		return err
	}
	defer infra.CloseDB(db)

	// 鍵の保存形式
	var wrapper usecase.KeyWrapper = infra.PlainKeyWrapper{}
	if cfg.KMSKeyName != "" {
		kmsClient, err := infra.NewKMSClient(ctx, cfg.KMSKeyName)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := kmsClient.Close(); closeErr != nil {
				slog.Error("failed to close KMS client", "error", closeErr)
			}
		}()
		wrapper = kmsClient
	}

	// DI
	stubRepo := repository.NewStubRepository(db)
	batchRepo := repository.NewBatchRepository(db)
	h := handler.NewStubHandler(
		usecase.NewBatchService(stubRepo, batchRepo, wrapper),
		usecase.NewVerifyService(stubRepo, wrapper),
		handler.Defaults{
			Prefix:  cfg.IDPrefix,
			Scheme:  domain.Scheme(cfg.CipherScheme),
			Policy:  policy,
			Workers: cfg.BatchWorkers,
		},
	)
	router := handler.NewRouter(h, cfg, metricsHandler)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	idleClosed := make(chan struct{})
	go func() {
		defer close(idleClosed)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting server",
		"port", cfg.Port,
		"db_driver", cfg.DBDriver,
		"scheme", cfg.CipherScheme,
		"key_wrapping", wrapper.Kind(),
		"metrics", cfg.MetricsEnabled,
	)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-idleClosed
	slog.Info("server stopped")
	return nil
}
