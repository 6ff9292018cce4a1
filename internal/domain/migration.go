package domain

import "time"

// MigrationStatus はスキーママイグレーションの適用状態を表す。
type MigrationStatus string

const (
	MigrationStatusPending MigrationStatus = "pending"
	MigrationStatusApplied MigrationStatus = "applied"
)

// Migration は migrations/ 配下のSQLファイル一つに対応する。
type Migration struct {
	Version   string     // 例: "001"
	Name      string     // 例: "create_meal_stubs"
	AppliedAt *time.Time // 未適用の場合はnil
	FilePath  string
	Status    MigrationStatus
}

// IsApplied は適用済みかどうかを返す。
func (m *Migration) IsApplied() bool {
	return m.Status == MigrationStatusApplied
}

// AppliedAtString は表示用の適用日時を返す。
func (m *Migration) AppliedAtString() string {
	if m.AppliedAt == nil {
		return "-"
	}
	return m.AppliedAt.Format("2006-01-02 15:04:05")
}
