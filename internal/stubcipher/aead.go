package stubcipher

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"meal-stub-service/internal/domain"
)

// GCM は nonce(12バイト) || AES-256-GCM(plaintext) 形式の暗号器。
type GCM struct{}

// Scheme は形式名を返す。
func (GCM) Scheme() domain.Scheme { return domain.SchemeAESGCM }

// Encrypt は毎回新しいnonceでplaintextを暗号化する。
func (GCM) Encrypt(plaintext string, key []byte) (string, error) {
	aead, err := newGCM("gcm encrypt", key)
	if err != nil {
		return "", err
	}
	return seal("gcm encrypt", aead, plaintext)
}

// Decrypt は認証タグを検証してから平文を返す。
func (GCM) Decrypt(blob string, key []byte) (string, error) {
	aead, err := newGCM("gcm decrypt", key)
	if err != nil {
		return "", err
	}
	return open("gcm decrypt", aead, blob)
}

// ChaCha20Poly1305 は nonce(12バイト) || ChaCha20-Poly1305(plaintext) 形式の暗号器。
type ChaCha20Poly1305 struct{}

// Scheme は形式名を返す。
func (ChaCha20Poly1305) Scheme() domain.Scheme { return domain.SchemeChaCha20Poly1305 }

// Encrypt は毎回新しいnonceでplaintextを暗号化する。
func (ChaCha20Poly1305) Encrypt(plaintext string, key []byte) (string, error) {
	aead, err := newChaCha("chacha20-poly1305 encrypt", key)
	if err != nil {
		return "", err
	}
	return seal("chacha20-poly1305 encrypt", aead, plaintext)
}

// Decrypt は認証タグを検証してから平文を返す。
func (ChaCha20Poly1305) Decrypt(blob string, key []byte) (string, error) {
	aead, err := newChaCha("chacha20-poly1305 decrypt", key)
	if err != nil {
		return "", err
	}
	return open("chacha20-poly1305 decrypt", aead, blob)
}

func newGCM(op string, key []byte) (cipher.AEAD, error) {
	if err := checkKey(op, key); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrEncryption, op, err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrEncryption, op, err)
	}
	return aead, nil
}

func newChaCha(op string, key []byte) (cipher.AEAD, error) {
	if err := checkKey(op, key); err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrEncryption, op, err)
	}
	return aead, nil
}

func seal(op string, aead cipher.AEAD, plaintext string) (string, error) {
	nonce, err := randomBytes(aead.NonceSize())
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	out := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return encoding.EncodeToString(out), nil
}

func open(op string, aead cipher.AEAD, blob string) (string, error) {
	data, err := decode(op, blob)
	if err != nil {
		return "", err
	}
	ns := aead.NonceSize()
	if len(data) < ns+aead.Overhead() {
		return "", fmt.Errorf("%w: %s: decoded length %d is shorter than nonce plus tag", domain.ErrMalformedCiphertext, op, len(data))
	}
	plain, err := aead.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrWrongKey, op, err)
	}
	return string(plain), nil
}
