// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"meal-stub-service/internal/domain"
	"meal-stub-service/internal/idgen"
	"meal-stub-service/internal/stubcipher"
)

// DefaultWorkers はBatchRequest.Workersが未指定のときの並列数。
const DefaultWorkers = 4

// StubRepository は食券の三つ組を保存するリポジトリのインターフェース。
type StubRepository interface {
	Create(ctx context.Context, stub *domain.MealStub) error
	FindByCiphertext(ctx context.Context, ciphertext string) (*domain.MealStub, error)
	ExistsByPrefix(ctx context.Context, prefix string) (bool, error)
	FindAllByBatchID(ctx context.Context, batchID string) ([]*domain.MealStub, error)
	MarkRedeemed(ctx context.Context, id string, at time.Time) (bool, error)
}

// BatchRepository はバッチ実行履歴のリポジトリのインターフェース。
type BatchRepository interface {
	Create(ctx context.Context, batch *domain.Batch) error
	FindByID(ctx context.Context, id string) (*domain.Batch, error)
	FindAll(ctx context.Context) ([]*domain.Batch, error)
	UpdateResult(ctx context.Context, batch *domain.Batch) error
}

// KeyWrapper は保存前に鍵を包み、検証時に取り出すインターフェース。
type KeyWrapper interface {
	Wrap(ctx context.Context, key []byte) ([]byte, error)
	Unwrap(ctx context.Context, wrapped []byte) ([]byte, error)
	Kind() domain.KeyWrapping
}

// BatchRequest はバッチ生成の入力。ゼロ値の項目には既定値を使う。
type BatchRequest struct {
	Prefix   string
	Quantity int
	Scheme   domain.Scheme
	Policy   domain.ErrorPolicy
	Workers  int
}

func (r BatchRequest) withDefaults() BatchRequest {
	if r.Prefix == "" {
		r.Prefix = idgen.DefaultPrefix
	}
	if r.Scheme == "" {
		r.Scheme = domain.SchemeAESGCM
	}
	if r.Policy == "" {
		r.Policy = domain.ErrorPolicyContinue
	}
	if r.Workers < 1 {
		r.Workers = DefaultWorkers
	}
	return r
}

// BatchService は食券バッチの生成と参照を提供する。
type BatchService struct {
	stubs   StubRepository
	batches BatchRepository
	wrapper KeyWrapper
	metrics *serviceMetrics
}

// NewBatchService は新しいBatchServiceを生成する。
func NewBatchService(stubs StubRepository, batches BatchRepository, wrapper KeyWrapper) *BatchService {
	return &BatchService{
		stubs:   stubs,
		batches: batches,
		wrapper: wrapper,
		metrics: newServiceMetrics(),
	}
}

// GenerateBatch はIDを生成し、IDごとに鍵の生成・暗号化・保存を行う。
//
// ErrorPolicyContinue では失敗した三つ組をレポートに集めて処理を続ける。
// ErrorPolicyAbort では最初の失敗で残りの処理を取り消し、そのエラーを返す。
// 取り消しの判定は三つ組の間でのみ行うため、保存済みの三つ組は常に完全な状態で残る。
func (s *BatchService) GenerateBatch(ctx context.Context, req BatchRequest) (report *domain.BatchReport, err error) {
	req = req.withDefaults()

	ctx, span := tracer.Start(ctx, "BatchService.GenerateBatch", trace.WithAttributes(
		attribute.String("stub.prefix", req.Prefix),
		attribute.Int("stub.quantity", req.Quantity),
		attribute.String("stub.scheme", string(req.Scheme)),
	))
	defer func() { endSpan(span, err) }()

	ids, err := idgen.Generate(req.Prefix, req.Quantity)
	if err != nil {
		return nil, err
	}
	policy, err := domain.ParseErrorPolicy(string(req.Policy))
	if err != nil {
		return nil, err
	}
	c, err := stubcipher.ForScheme(req.Scheme)
	if err != nil {
		return nil, err
	}

	// 同じプレフィックスで再実行すると連番が衝突する。
	// ここは早期判定で、同時実行の排他はbatches.prefixの一意制約が担う。
	exists, err := s.stubs.ExistsByPrefix(ctx, req.Prefix)
	if err != nil {
		return nil, fmt.Errorf("checking existing batch: %w", err)
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateBatch, req.Prefix)
	}

	batch := &domain.Batch{
		Prefix:   req.Prefix,
		Quantity: req.Quantity,
		Scheme:   c.Scheme(),
		Policy:   policy,
		Status:   domain.BatchStatusRunning,
	}
	if err := s.batches.Create(ctx, batch); err != nil {
		if errors.Is(err, domain.ErrDuplicateBatch) {
			return nil, err
		}
		return nil, fmt.Errorf("creating batch: %w", err)
	}

	started := time.Now()
	slog.InfoContext(ctx, "batch generation started",
		"operation", "generate_batch",
		"batch_id", batch.ID,
		"prefix", batch.Prefix,
		"quantity", batch.Quantity,
		"scheme", batch.Scheme,
		"policy", batch.Policy,
		"workers", req.Workers,
	)

	var (
		mu        sync.Mutex
		persisted int
		failures  []domain.TripleFailure
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(req.Workers)
	for id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			// 開始した三つ組は取り消しの影響を受けずに完了させる
			err := s.persistTriple(context.WithoutCancel(gctx), batch.ID, c, id)
			s.metrics.recordTriple(ctx, batch.Scheme, err)

			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				persisted++
				return nil
			}
			failures = append(failures, domain.TripleFailure{PlainID: id, Err: err})
			slog.WarnContext(ctx, "failed to persist stub",
				"operation", "generate_batch",
				"batch_id", batch.ID,
				"plain_id", id,
				"error", err,
			)
			if policy == domain.ErrorPolicyAbort {
				return fmt.Errorf("generating %s: %w", id, err)
			}
			return nil
		})
	}
	runErr := g.Wait()
	if runErr == nil && ctx.Err() != nil {
		runErr = ctx.Err()
	}

	sort.Slice(failures, func(i, j int) bool {
		return failures[i].PlainID < failures[j].PlainID
	})

	batch.Persisted = persisted
	batch.Failed = len(failures)
	batch.Status = domain.BatchStatusCompleted
	if runErr != nil {
		batch.Status = domain.BatchStatusFailed
	}
	if err := s.batches.UpdateResult(context.WithoutCancel(ctx), batch); err != nil {
		return nil, fmt.Errorf("updating batch result: %w", err)
	}

	report = &domain.BatchReport{Batch: batch, Failures: failures}
	s.metrics.recordBatch(ctx, batch, time.Since(started))
	span.SetAttributes(
		attribute.String("stub.batch_id", batch.ID),
		attribute.Int("stub.persisted", batch.Persisted),
		attribute.Int("stub.failed", batch.Failed),
	)

	slog.InfoContext(ctx, "batch generation finished",
		"operation", "generate_batch",
		"batch_id", batch.ID,
		"status", batch.Status,
		"persisted", batch.Persisted,
		"failed", batch.Failed,
	)

	if runErr != nil {
		return report, fmt.Errorf("batch %s aborted: %w", batch.ID, runErr)
	}
	return report, nil
}

// persistTriple は1件の三つ組を生成して保存する。
func (s *BatchService) persistTriple(ctx context.Context, batchID string, c stubcipher.Cipher, plainID string) error {
	prefix, seq, err := idgen.Parse(plainID)
	if err != nil {
		return err
	}

	key, err := stubcipher.GenerateKey()
	if err != nil {
		return err
	}
	ciphertext, err := c.Encrypt(plainID, key)
	if err != nil {
		return fmt.Errorf("encrypting: %w", err)
	}
	stored, err := s.wrapper.Wrap(ctx, key)
	if err != nil {
		return fmt.Errorf("wrapping key: %w", err)
	}

	stub := &domain.MealStub{
		BatchID:     batchID,
		PlainID:     plainID,
		Prefix:      prefix,
		Sequence:    seq,
		Ciphertext:  ciphertext,
		Key:         stored,
		KeyWrapping: s.wrapper.Kind(),
		Scheme:      c.Scheme(),
		Status:      domain.StubStatusActive,
	}
	if err := s.stubs.Create(ctx, stub); err != nil {
		return fmt.Errorf("saving stub: %w", err)
	}
	return nil
}

// ListBatches はバッチ一覧を新しい順に取得する。
func (s *BatchService) ListBatches(ctx context.Context) ([]*domain.Batch, error) {
	batches, err := s.batches.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("finding batches: %w", err)
	}
	return batches, nil
}

// GetBatch は指定されたバッチを取得する。
func (s *BatchService) GetBatch(ctx context.Context, batchID string) (*domain.Batch, error) {
	batch, err := s.batches.FindByID(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("finding batch: %w", err)
	}
	if batch == nil {
		return nil, domain.ErrBatchNotFound
	}
	return batch, nil
}

// ExportStubs はレンダリング用にバッチ内のIDと暗号文を連番順に返す。
func (s *BatchService) ExportStubs(ctx context.Context, batchID string) ([]domain.StubCode, error) {
	if _, err := s.GetBatch(ctx, batchID); err != nil {
		return nil, err
	}

	stubs, err := s.stubs.FindAllByBatchID(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("finding stubs: %w", err)
	}

	codes := make([]domain.StubCode, len(stubs))
	for i, stub := range stubs {
		codes[i] = domain.StubCode{
			PlainID:    stub.PlainID,
			Ciphertext: stub.Ciphertext,
		}
	}
	return codes, nil
}
