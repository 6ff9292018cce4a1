// Package stubcipher は食券IDの暗号化と復号を提供する。
//
// 暗号文はすべて標準base64でエンコードされ、復号に必要な乱数値
// （IVまたはnonce）を先頭に含む自己完結した文字列になる。
package stubcipher

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"meal-stub-service/internal/domain"
)

// Cipher は食券IDの暗号化・復号のインターフェース。
type Cipher interface {
	Encrypt(plaintext string, key []byte) (string, error)
	Decrypt(blob string, key []byte) (string, error)
	Scheme() domain.Scheme
}

// ParamError は不正なパラメータを名指しするエラー。
type ParamError struct {
	Op    string
	Param string
	Msg   string
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("%s: invalid %s: %s", e.Op, e.Param, e.Msg)
}

// Unwrap は ErrInvalidArgument と ErrEncryption の両方に一致させる。
func (e *ParamError) Unwrap() []error {
	return []error{domain.ErrInvalidArgument, domain.ErrEncryption}
}

var encoding = base64.StdEncoding

// randReader はテストで差し替える。
var randReader io.Reader = rand.Reader

// GenerateKey は暗号学的に安全な乱数から32バイトの鍵を生成する。
func GenerateKey() ([]byte, error) {
	key := make([]byte, domain.KeySize)
	if _, err := io.ReadFull(randReader, key); err != nil {
		return nil, fmt.Errorf("%w: generating random key: %v", domain.ErrEncryption, err)
	}
	return key, nil
}

// ForScheme は指定された形式の Cipher を返す。
func ForScheme(scheme domain.Scheme) (Cipher, error) {
	switch scheme {
	case domain.SchemeAESCBC:
		return CBC{}, nil
	case domain.SchemeAESGCM:
		return GCM{}, nil
	case domain.SchemeChaCha20Poly1305:
		return ChaCha20Poly1305{}, nil
	}
	return nil, fmt.Errorf("%w: unknown cipher scheme %q", domain.ErrInvalidArgument, scheme)
}

func checkKey(op string, key []byte) error {
	if len(key) != domain.KeySize {
		return &ParamError{Op: op, Param: "key", Msg: fmt.Sprintf("must be %d bytes, got %d", domain.KeySize, len(key))}
	}
	return nil
}

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(randReader, b); err != nil {
		return nil, fmt.Errorf("%w: reading random bytes: %v", domain.ErrEncryption, err)
	}
	return b, nil
}

func decode(op, blob string) ([]byte, error) {
	data, err := encoding.DecodeString(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: invalid base64: %v", domain.ErrMalformedCiphertext, op, err)
	}
	return data, nil
}
