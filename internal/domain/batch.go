package domain

import (
	"fmt"
	"time"
)

// ErrorPolicy は三つ組の生成に失敗したときのバッチ全体の振る舞いを表す。
type ErrorPolicy string

const (
	// ErrorPolicyContinue は失敗を収集して残りの処理を続ける。
	ErrorPolicyContinue ErrorPolicy = "continue"
	// ErrorPolicyAbort は最初の失敗でバッチを中断する。
	ErrorPolicyAbort ErrorPolicy = "abort"
)

// ParseErrorPolicy は文字列をErrorPolicyに変換する。
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch p := ErrorPolicy(s); p {
	case ErrorPolicyContinue, ErrorPolicyAbort:
		return p, nil
	}
	return "", fmt.Errorf("%w: unknown error policy %q", ErrInvalidArgument, s)
}

// BatchStatus はバッチのステータスを表す。
type BatchStatus string

const (
	BatchStatusRunning   BatchStatus = "running"
	BatchStatusCompleted BatchStatus = "completed"
	BatchStatusFailed    BatchStatus = "failed"
)

// Batch は一回の生成実行を表す。
type Batch struct {
	ID        string
	Prefix    string
	Quantity  int
	Scheme    Scheme
	Policy    ErrorPolicy
	Status    BatchStatus
	Persisted int
	Failed    int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TripleFailure は三つ組単位の失敗を表す。
type TripleFailure struct {
	PlainID string
	Err     error
}

// BatchReport はバッチ生成の結果を表す。
type BatchReport struct {
	Batch    *Batch
	Failures []TripleFailure
}
