package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"meal-stub-service/internal/domain"
)

// BatchModel はgorm用のモデル定義。
type BatchModel struct {
	ID        string    `gorm:"type:char(36);primaryKey"`
	Prefix    string    `gorm:"type:varchar(16);not null;uniqueIndex:uk_batches_prefix"`
	Quantity  int       `gorm:"not null"`
	Scheme    string    `gorm:"type:varchar(32);not null"`
	Policy    string    `gorm:"type:varchar(16);not null"`
	Status    string    `gorm:"type:varchar(16);not null;default:'running'"`
	Persisted int       `gorm:"not null;default:0"`
	Failed    int       `gorm:"not null;default:0"`
	CreatedAt time.Time `gorm:"type:datetime;not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:datetime;not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (BatchModel) TableName() string {
	return "batches"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *BatchModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

func (m *BatchModel) toDomain() *domain.Batch {
	return &domain.Batch{
		ID:        m.ID,
		Prefix:    m.Prefix,
		Quantity:  m.Quantity,
		Scheme:    domain.Scheme(m.Scheme),
		Policy:    domain.ErrorPolicy(m.Policy),
		Status:    domain.BatchStatus(m.Status),
		Persisted: m.Persisted,
		Failed:    m.Failed,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// BatchRepository はバッチ実行履歴へのデータアクセスを提供する。
type BatchRepository struct {
	db *gorm.DB
}

// NewBatchRepository は新しいBatchRepositoryを生成する。
func NewBatchRepository(db *gorm.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// Create は新しいバッチを保存する。プレフィックスは一意で、
// 同じプレフィックスのバッチが既にあればErrDuplicateBatchを返す。
func (r *BatchRepository) Create(ctx context.Context, batch *domain.Batch) error {
	model := &BatchModel{
		ID:       batch.ID,
		Prefix:   batch.Prefix,
		Quantity: batch.Quantity,
		Scheme:   string(batch.Scheme),
		Policy:   string(batch.Policy),
		Status:   string(batch.Status),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateBatch, batch.Prefix)
		}
		slog.ErrorContext(ctx, "failed to create batch",
			"operation", "create_batch",
			"prefix", batch.Prefix,
			"error", err,
		)
		return err
	}
	batch.ID = model.ID
	batch.CreatedAt = model.CreatedAt
	batch.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByID は指定されたIDのバッチを取得する。存在しない場合はnil。
func (r *BatchRepository) FindByID(ctx context.Context, id string) (*domain.Batch, error) {
	var model BatchModel
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find batch",
			"operation", "find_batch_by_id",
			"id", id,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// FindAll は全バッチを作成日時の新しい順に取得する。
func (r *BatchRepository) FindAll(ctx context.Context) ([]*domain.Batch, error) {
	var models []BatchModel
	if err := r.db.WithContext(ctx).Order("created_at DESC").Find(&models).Error; err != nil {
		slog.ErrorContext(ctx, "failed to find batches",
			"operation", "find_all_batches",
			"error", err,
		)
		return nil, err
	}

	batches := make([]*domain.Batch, len(models))
	for i := range models {
		batches[i] = models[i].toDomain()
	}
	return batches, nil
}

// UpdateResult はバッチの最終ステータスと件数を更新する。
func (r *BatchRepository) UpdateResult(ctx context.Context, batch *domain.Batch) error {
	err := r.db.WithContext(ctx).
		Model(&BatchModel{}).
		Where("id = ?", batch.ID).
		Updates(map[string]any{
			"status":    string(batch.Status),
			"persisted": batch.Persisted,
			"failed":    batch.Failed,
		}).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to update batch result",
			"operation", "update_batch_result",
			"id", batch.ID,
			"status", batch.Status,
			"error", err,
		)
		return err
	}
	return nil
}
