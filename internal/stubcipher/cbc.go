package stubcipher

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"unicode/utf8"

	"meal-stub-service/internal/domain"
)

// CBC は IV(16バイト) || AES-256-CBC(PKCS#7(plaintext)) 形式の暗号器。
// 認証を持たないため、既存の食券を検証する互換用途に限る。
type CBC struct{}

// Scheme は形式名を返す。
func (CBC) Scheme() domain.Scheme { return domain.SchemeAESCBC }

// Encrypt は毎回新しいIVでplaintextを暗号化する。
func (CBC) Encrypt(plaintext string, key []byte) (string, error) {
	const op = "cbc encrypt"
	if err := checkKey(op, key); err != nil {
		return "", err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrEncryption, op, err)
	}

	iv, err := randomBytes(aes.BlockSize)
	if err != nil {
		return "", err
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)

	return encoding.EncodeToString(out), nil
}

// Decrypt は先頭16バイトをIVとして復号し、パディングを取り除く。
func (CBC) Decrypt(blob string, key []byte) (string, error) {
	const op = "cbc decrypt"
	if err := checkKey(op, key); err != nil {
		return "", err
	}

	data, err := decode(op, blob)
	if err != nil {
		return "", err
	}
	if len(data) < 2*aes.BlockSize {
		return "", fmt.Errorf("%w: %s: decoded length %d is shorter than iv plus one block", domain.ErrMalformedCiphertext, op, len(data))
	}
	iv, payload := data[:aes.BlockSize], data[aes.BlockSize:]
	if len(payload)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: %s: payload length %d is not a multiple of %d", domain.ErrMalformedCiphertext, op, len(payload), aes.BlockSize)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", domain.ErrEncryption, op, err)
	}

	plain := make([]byte, len(payload))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, payload)

	unpadded, err := pkcs7Unpad(plain, aes.BlockSize)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if !utf8.Valid(unpadded) {
		return "", fmt.Errorf("%w: %s: plaintext is not valid utf-8", domain.ErrWrongKey, op)
	}
	return string(unpadded), nil
}

// pkcs7Pad はP(1..blockSize)バイトの値Pを付加する。
func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padded := make([]byte, len(data), len(data)+padding)
	copy(padded, data)
	return append(padded, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	length := len(data)
	if length == 0 || length%blockSize != 0 {
		return nil, fmt.Errorf("%w: data length %d", domain.ErrWrongKey, length)
	}

	padding := int(data[length-1])
	if padding < 1 || padding > blockSize {
		return nil, fmt.Errorf("%w: invalid padding size %d", domain.ErrWrongKey, padding)
	}
	for _, b := range data[length-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("%w: inconsistent padding bytes", domain.ErrWrongKey)
		}
	}
	return data[:length-padding], nil
}
