package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"gorm.io/gorm"

	"meal-stub-service/config"
	"meal-stub-service/internal/infra"
	"meal-stub-service/internal/repository"
	"meal-stub-service/internal/usecase"
	"meal-stub-service/migrations"
)

// app はコマンド1回分の依存関係。
type app struct {
	db         *gorm.DB
	batches    *usecase.BatchService
	verifier   *usecase.VerifyService
	migrations *usecase.MigrationService
}

// withApp はDB接続とサービスを組み立ててfnを実行する。
// 接続はfnの成否にかかわらず閉じる。
func withApp(ctx context.Context, cfg *config.Config, fn func(a *app) error) error {
	db, err := infra.NewDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer infra.CloseDB(db)

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

	migrationRepo := repository.NewMigrationRepository(db)
	migrationService := usecase.NewMigrationServiceFS(migrationRepo, db, migrations.Files)
	if cfg.MigrationsDir != "" {
		dir, err := filepath.Abs(cfg.MigrationsDir)
		if err != nil {
			return fmt.Errorf("failed to resolve migrations directory: %w", err)
		}
		migrationService = usecase.NewMigrationService(migrationRepo, db, dir)
	}

	stubRepo := repository.NewStubRepository(db)
	a := &app{
		db:         db,
		batches:    usecase.NewBatchService(stubRepo, repository.NewBatchRepository(db), wrapper),
		verifier:   usecase.NewVerifyService(stubRepo, wrapper),
		migrations: migrationService,
	}
	return fn(a)
}
