package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"slices"
	"strings"
	"time"

	"gorm.io/gorm"

	"meal-stub-service/internal/domain"
)

// MigrationRepository はマイグレーション履歴を管理するリポジトリのインターフェース。
type MigrationRepository interface {
	EnsureTable(ctx context.Context) error
	FindAllApplied(ctx context.Context) ([]*domain.Migration, error)
	RecordMigration(ctx context.Context, tx *gorm.DB, version string) error
}

// MigrationService はSQLファイルをバージョン順に適用する。
type MigrationService struct {
	repo   MigrationRepository
	db     *gorm.DB
	source fs.FS
	// エラーメッセージ用
	sourceName string
}

// NewMigrationService はディレクトリ上のSQLファイルを読むMigrationServiceを生成する。
func NewMigrationService(repo MigrationRepository, db *gorm.DB, migrationsDir string) *MigrationService {
	s := NewMigrationServiceFS(repo, db, os.DirFS(migrationsDir))
	s.sourceName = migrationsDir
	return s
}

// NewMigrationServiceFS は任意のfs.FS(embed.FSなど)直下のSQLファイルを読むMigrationServiceを生成する。
func NewMigrationServiceFS(repo MigrationRepository, db *gorm.DB, source fs.FS) *MigrationService {
	return &MigrationService{repo: repo, db: db, source: source, sourceName: "embedded"}
}

// listMigrations は.sqlファイルを列挙しバージョン順に並べる。
func (s *MigrationService) listMigrations() ([]*domain.Migration, error) {
	entries, err := fs.ReadDir(s.source, ".")
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrMigrationFileNotFound, s.sourceName)
		}
		return nil, fmt.Errorf("failed to read migrations from %s: %w", s.sourceName, err)
	}

	var migrations []*domain.Migration
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".sql" {
			continue
		}
		version, name, ok := strings.Cut(strings.TrimSuffix(entry.Name(), ".sql"), "_")
		if !ok || version == "" || name == "" {
			return nil, fmt.Errorf("%w: %s (expected {version}_{name}.sql)", domain.ErrInvalidMigrationFile, entry.Name())
		}
		migrations = append(migrations, &domain.Migration{
			Version:  version,
			Name:     name,
			FilePath: entry.Name(),
			Status:   domain.MigrationStatusPending,
		})
	}

	slices.SortFunc(migrations, func(a, b *domain.Migration) int {
		return strings.Compare(a.Version, b.Version)
	})
	return migrations, nil
}

// status は履歴テーブルを用意し、各ファイルに適用状態を反映して返す。
func (s *MigrationService) status(ctx context.Context) ([]*domain.Migration, error) {
	if err := s.repo.EnsureTable(ctx); err != nil {
		return nil, fmt.Errorf("%w: preparing schema_migrations: %v", domain.ErrMigrationFailed, err)
	}

	migrations, err := s.listMigrations()
	if err != nil {
		return nil, err
	}

	applied, err := s.repo.FindAllApplied(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch applied migrations: %w", err)
	}
	appliedAt := make(map[string]*time.Time, len(applied))
	for _, m := range applied {
		appliedAt[m.Version] = m.AppliedAt
	}

	for _, m := range migrations {
		if at, ok := appliedAt[m.Version]; ok {
			m.Status = domain.MigrationStatusApplied
			m.AppliedAt = at
		}
	}
	return migrations, nil
}

// ApplyMigrations は未適用マイグレーションを番号順に実行し、適用件数を返す。
// 失敗した時点で中断し、それ以前の適用はそのまま残る。
func (s *MigrationService) ApplyMigrations(ctx context.Context) (int, error) {
	migrations, err := s.status(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load migrations",
			"operation", "apply_migrations",
			"source", s.sourceName,
			"error", err,
		)
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		if m.IsApplied() {
			continue
		}
		start := time.Now()
		if err := s.apply(ctx, m); err != nil {
			slog.ErrorContext(ctx, "failed to apply migration",
				"operation", "apply_migrations",
				"version", m.Version,
				"error", err,
			)
			return applied, fmt.Errorf("%w: version %s: %v", domain.ErrMigrationFailed, m.Version, err)
		}
		slog.InfoContext(ctx, "migration applied",
			"version", m.Version,
			"name", m.Name,
			"elapsed", time.Since(start),
		)
		applied++
	}
	return applied, nil
}

// apply はSQLの実行と履歴の記録を同一トランザクションで行う。
func (s *MigrationService) apply(ctx context.Context, m *domain.Migration) error {
	sql, err := fs.ReadFile(s.source, m.FilePath)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", m.FilePath, err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec(string(sql)).Error; err != nil {
			return fmt.Errorf("failed to execute %s: %w", m.FilePath, err)
		}
		if err := s.repo.RecordMigration(ctx, tx, m.Version); err != nil {
			return fmt.Errorf("failed to record migration: %w", err)
		}
		return nil
	})
}

// GetMigrationStatus は全マイグレーションの適用状況をバージョン順に返す。
func (s *MigrationService) GetMigrationStatus(ctx context.Context) ([]*domain.Migration, error) {
	return s.status(ctx)
}
