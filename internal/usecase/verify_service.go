package usecase

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"meal-stub-service/internal/domain"
	"meal-stub-service/internal/stubcipher"
)

// VerifyService はスキャンされた暗号文の検証と引き換えを提供する。
type VerifyService struct {
	stubs   StubRepository
	wrapper KeyWrapper
	now     func() time.Time
	metrics *serviceMetrics
}

// NewVerifyService は新しいVerifyServiceを生成する。
func NewVerifyService(stubs StubRepository, wrapper KeyWrapper) *VerifyService {
	return &VerifyService{
		stubs:   stubs,
		wrapper: wrapper,
		now:     time.Now,
		metrics: newServiceMetrics(),
	}
}

// Lookup は暗号文に完全一致する三つ組を取得する。
func (s *VerifyService) Lookup(ctx context.Context, ciphertext string) (*domain.MealStub, error) {
	stub, err := s.stubs.FindByCiphertext(ctx, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("finding stub: %w", err)
	}
	if stub == nil {
		return nil, domain.ErrStubNotFound
	}
	return stub, nil
}

// Verify は暗号文を保存済みの鍵で復号し、保存済みのIDと一致することを確認する。
// 復号のエラー（ErrMalformedCiphertext, ErrWrongKey）はそのまま返す。
func (s *VerifyService) Verify(ctx context.Context, ciphertext string) (v *domain.Verification, err error) {
	ctx, span := tracer.Start(ctx, "VerifyService.Verify")
	defer func() {
		s.metrics.recordCheck(ctx, "verify", err)
		endSpan(span, err)
	}()

	stub, err := s.Lookup(ctx, ciphertext)
	if err != nil {
		return nil, err
	}
	if err := s.check(ctx, stub, ciphertext); err != nil {
		return nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("stub.plain_id", stub.PlainID))
	return toVerification(stub), nil
}

// Redeem は検証に成功した食券を引き換え済みにする。二度目の引き換えはErrStubAlreadyRedeemed。
func (s *VerifyService) Redeem(ctx context.Context, ciphertext string) (v *domain.Verification, err error) {
	ctx, span := tracer.Start(ctx, "VerifyService.Redeem")
	defer func() {
		s.metrics.recordCheck(ctx, "redeem", err)
		endSpan(span, err)
	}()

	stub, err := s.Lookup(ctx, ciphertext)
	if err != nil {
		return nil, err
	}
	if err := s.check(ctx, stub, ciphertext); err != nil {
		return nil, err
	}
	if stub.Status == domain.StubStatusRedeemed {
		return nil, domain.ErrStubAlreadyRedeemed
	}

	now := s.now()
	changed, err := s.stubs.MarkRedeemed(ctx, stub.ID, now)
	if err != nil {
		return nil, fmt.Errorf("marking redeemed: %w", err)
	}
	// 同時に引き換えられた場合は先に更新した側だけが成功する
	if !changed {
		return nil, domain.ErrStubAlreadyRedeemed
	}

	stub.Status = domain.StubStatusRedeemed
	stub.RedeemedAt = &now
	return toVerification(stub), nil
}

func (s *VerifyService) check(ctx context.Context, stub *domain.MealStub, ciphertext string) error {
	if stub.KeyWrapping != s.wrapper.Kind() {
		return fmt.Errorf("%w: stored as %s, configured %s", domain.ErrKeyWrappingMismatch, stub.KeyWrapping, s.wrapper.Kind())
	}
	key, err := s.wrapper.Unwrap(ctx, stub.Key)
	if err != nil {
		return fmt.Errorf("unwrapping key: %w", err)
	}
	c, err := stubcipher.ForScheme(stub.Scheme)
	if err != nil {
		return err
	}

	plainID, err := c.Decrypt(ciphertext, key)
	if err != nil {
		return err
	}
	if plainID != stub.PlainID {
		return domain.ErrIdentifierMismatch
	}
	return nil
}

func toVerification(stub *domain.MealStub) *domain.Verification {
	return &domain.Verification{
		PlainID:  stub.PlainID,
		BatchID:  stub.BatchID,
		Scheme:   stub.Scheme,
		Status:   stub.Status,
		Redeemed: stub.Status == domain.StubStatusRedeemed,
	}
}
