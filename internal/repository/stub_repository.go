// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"meal-stub-service/internal/domain"
)

// MealStubModel はgorm用のモデル定義。
type MealStubModel struct {
	ID            string     `gorm:"type:char(36);primaryKey"`
	BatchID       string     `gorm:"type:char(36);not null;index:idx_batch_id"`
	PlainID       string     `gorm:"type:varchar(32);not null;uniqueIndex:uk_plain_id"`
	Prefix        string     `gorm:"type:varchar(16);not null;uniqueIndex:uk_prefix_sequence"`
	Sequence      int        `gorm:"not null;uniqueIndex:uk_prefix_sequence"`
	Ciphertext    string     `gorm:"type:varchar(255);not null;uniqueIndex:uk_ciphertext"`
	EncryptionKey []byte     `gorm:"type:blob;not null"`
	KeyWrapping   string     `gorm:"type:varchar(16);not null;default:'none'"`
	Scheme        string     `gorm:"type:varchar(32);not null"`
	Status        string     `gorm:"type:varchar(16);not null;default:'active'"`
	RedeemedAt    *time.Time `gorm:"type:datetime"`
	CreatedAt     time.Time  `gorm:"type:datetime;not null;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"type:datetime;not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (MealStubModel) TableName() string {
	return "meal_stubs"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *MealStubModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

func (m *MealStubModel) toDomain() *domain.MealStub {
	return &domain.MealStub{
		ID:          m.ID,
		BatchID:     m.BatchID,
		PlainID:     m.PlainID,
		Prefix:      m.Prefix,
		Sequence:    m.Sequence,
		Ciphertext:  m.Ciphertext,
		Key:         m.EncryptionKey,
		KeyWrapping: domain.KeyWrapping(m.KeyWrapping),
		Scheme:      domain.Scheme(m.Scheme),
		Status:      domain.StubStatus(m.Status),
		RedeemedAt:  m.RedeemedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// StubRepository は食券の三つ組へのデータアクセスを提供する。
type StubRepository struct {
	db *gorm.DB
}

// NewStubRepository は新しいStubRepositoryを生成する。
func NewStubRepository(db *gorm.DB) *StubRepository {
	return &StubRepository{db: db}
}

// Create は三つ組を1件のINSERTで保存する。部分的な書き込みは発生しない。
func (r *StubRepository) Create(ctx context.Context, stub *domain.MealStub) error {
	status := stub.Status
	if status == "" {
		status = domain.StubStatusActive
	}
	wrapping := stub.KeyWrapping
	if wrapping == "" {
		wrapping = domain.KeyWrappingNone
	}

	model := &MealStubModel{
		ID:            stub.ID,
		BatchID:       stub.BatchID,
		PlainID:       stub.PlainID,
		Prefix:        stub.Prefix,
		Sequence:      stub.Sequence,
		Ciphertext:    stub.Ciphertext,
		EncryptionKey: stub.Key,
		KeyWrapping:   string(wrapping),
		Scheme:        string(stub.Scheme),
		Status:        string(status),
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateIdentifier
		}
		slog.ErrorContext(ctx, "failed to create stub",
			"operation", "create",
			"plain_id", stub.PlainID,
			"batch_id", stub.BatchID,
			"error", err,
		)
		return err
	}
	stub.ID = model.ID
	stub.Status = status
	stub.KeyWrapping = wrapping
	stub.CreatedAt = model.CreatedAt
	stub.UpdatedAt = model.UpdatedAt
	return nil
}

// FindByCiphertext は暗号文に完全一致する三つ組を取得する。存在しない場合はnil。
// 列の照合順序にかかわらず、大文字小文字だけが異なる暗号文は一致としない。
func (r *StubRepository) FindByCiphertext(ctx context.Context, ciphertext string) (*domain.MealStub, error) {
	var model MealStubModel
	err := r.db.WithContext(ctx).
		Where("ciphertext = ?", ciphertext).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find stub by ciphertext",
			"operation", "find_by_ciphertext",
			"error", err,
		)
		return nil, err
	}
	// MySQLの既定照合順序は大文字小文字を区別しないため、取得後に完全一致を確認する
	if model.Ciphertext != ciphertext {
		return nil, nil
	}
	return model.toDomain(), nil
}

// ExistsByPrefix は指定されたプレフィックスの食券が存在するか確認する。
func (r *StubRepository) ExistsByPrefix(ctx context.Context, prefix string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&MealStubModel{}).
		Where("prefix = ?", prefix).
		Count(&count).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to count stubs by prefix",
			"operation", "exists_by_prefix",
			"prefix", prefix,
			"error", err,
		)
		return false, err
	}
	return count > 0, nil
}

// FindAllByBatchID は指定されたバッチの食券を連番順に取得する。
func (r *StubRepository) FindAllByBatchID(ctx context.Context, batchID string) ([]*domain.MealStub, error) {
	var models []MealStubModel
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("sequence ASC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find stubs by batch_id",
			"operation", "find_all_by_batch_id",
			"batch_id", batchID,
			"error", err,
		)
		return nil, err
	}

	stubs := make([]*domain.MealStub, len(models))
	for i := range models {
		stubs[i] = models[i].toDomain()
	}
	return stubs, nil
}

// MarkRedeemed は未使用の食券を引き換え済みに更新する。
// 既に引き換え済みだった場合はfalseを返す。
func (r *StubRepository) MarkRedeemed(ctx context.Context, id string, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&MealStubModel{}).
		Where("id = ? AND status = ?", id, string(domain.StubStatusActive)).
		Updates(map[string]any{
			"status":      string(domain.StubStatusRedeemed),
			"redeemed_at": at,
		})
	if result.Error != nil {
		slog.ErrorContext(ctx, "failed to mark stub redeemed",
			"operation", "mark_redeemed",
			"id", id,
			"error", result.Error,
		)
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
