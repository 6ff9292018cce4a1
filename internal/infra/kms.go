package infra

import (
	"context"
	"fmt"

	kms "cloud.google.com/go/kms/apiv1"
	kmspb "cloud.google.com/go/kms/apiv1/kmspb"

	"meal-stub-service/internal/domain"
)

// KMSClient はCloud KMSで食券ごとの鍵を暗号化して保存するためのラッパー。
type KMSClient struct {
	client  *kms.KeyManagementClient
	keyName string
}

// NewKMSClient は指定されたキー名でKMSClientを生成する。
func NewKMSClient(ctx context.Context, keyName string) (*KMSClient, error) {
	if keyName == "" {
		return nil, fmt.Errorf("KMS key name is required")
	}

	client, err := kms.NewKeyManagementClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating KMS client: %w", err)
	}

	return &KMSClient{
		client:  client,
		keyName: keyName,
	}, nil
}

// Wrap は鍵をCloud KMSで暗号化する。
func (c *KMSClient) Wrap(ctx context.Context, key []byte) ([]byte, error) {
	resp, err := c.client.Encrypt(ctx, &kmspb.EncryptRequest{
		Name:      c.keyName,
		Plaintext: key,
	})
	if err != nil {
		return nil, fmt.Errorf("encrypting: %w", err)
	}
	return resp.Ciphertext, nil
}

// Unwrap はCloud KMSで暗号化された鍵を復号する。
func (c *KMSClient) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	resp, err := c.client.Decrypt(ctx, &kmspb.DecryptRequest{
		Name:       c.keyName,
		Ciphertext: wrapped,
	})
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	return resp.Plaintext, nil
}

// Kind は保存形式を返す。
func (c *KMSClient) Kind() domain.KeyWrapping {
	return domain.KeyWrappingKMS
}

// Close はKMSクライアントを閉じる。
func (c *KMSClient) Close() error {
	return c.client.Close()
}

// PlainKeyWrapper は鍵を生の32バイトのまま保存する。
type PlainKeyWrapper struct{}

// Wrap は鍵のコピーを返す。
func (PlainKeyWrapper) Wrap(_ context.Context, key []byte) ([]byte, error) {
	return append([]byte(nil), key...), nil
}

// Unwrap は保存された鍵のコピーを返す。
func (PlainKeyWrapper) Unwrap(_ context.Context, wrapped []byte) ([]byte, error) {
	return append([]byte(nil), wrapped...), nil
}

// Kind は保存形式を返す。
func (PlainKeyWrapper) Kind() domain.KeyWrapping {
	return domain.KeyWrappingNone
}
