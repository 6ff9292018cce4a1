// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import "time"

// KeySize は食券ごとに生成する暗号鍵のバイト長。
const KeySize = 32

// Scheme は暗号文の形式を表す。
type Scheme string

const (
	// SchemeAESCBC はIV(16バイト)+AES-256-CBC(PKCS#7)の従来形式。
	SchemeAESCBC Scheme = "aes-256-cbc"
	// SchemeAESGCM はnonce(12バイト)+AES-256-GCMの認証付き形式。
	SchemeAESGCM Scheme = "aes-256-gcm"
	// SchemeChaCha20Poly1305 はnonce(12バイト)+ChaCha20-Poly1305の認証付き形式。
	SchemeChaCha20Poly1305 Scheme = "chacha20-poly1305"
)

// StubStatus は食券のステータスを表す。
type StubStatus string

const (
	// StubStatusActive は未使用の食券を表す。
	StubStatusActive StubStatus = "active"
	// StubStatusRedeemed は引き換え済みの食券を表す。
	StubStatusRedeemed StubStatus = "redeemed"
)

// KeyWrapping は鍵の保存形式を表す。
type KeyWrapping string

const (
	// KeyWrappingNone は生の32バイトをそのまま保存する。
	KeyWrappingNone KeyWrapping = "none"
	// KeyWrappingKMS はCloud KMSで暗号化した鍵を保存する。
	KeyWrappingKMS KeyWrapping = "gcp-kms"
)

// MealStub は永続化の単位（平文ID・鍵・暗号文の三つ組）を表す。
type MealStub struct {
	ID          string
	BatchID     string
	PlainID     string
	Prefix      string
	Sequence    int
	Ciphertext  string
	Key         []byte // KeyWrappingに従って保存された鍵
	KeyWrapping KeyWrapping
	Scheme      Scheme
	Status      StubStatus
	RedeemedAt  *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StubCode はレンダリング層に渡すIDと暗号文の組。
type StubCode struct {
	PlainID    string
	Ciphertext string
}

// Verification はスキャンされた暗号文の検証結果を表す。
type Verification struct {
	PlainID  string
	BatchID  string
	Scheme   Scheme
	Status   StubStatus
	Redeemed bool
}
