package usecase

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"meal-stub-service/internal/domain"
)

// mockStubRepository はテスト用のモックリポジトリ。
type mockStubRepository struct {
	mu        sync.Mutex
	stubs     map[string]*domain.MealStub // ciphertext -> stub
	failOn    map[string]error            // plain_id -> error
	existsErr error
	findErr   error
	markErr   error
	creates   int
}

func newMockStubRepository() *mockStubRepository {
	return &mockStubRepository{
		stubs:  make(map[string]*domain.MealStub),
		failOn: make(map[string]error),
	}
}

func (m *mockStubRepository) Create(ctx context.Context, stub *domain.MealStub) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if err, ok := m.failOn[stub.PlainID]; ok {
		return err
	}
	for _, s := range m.stubs {
		if s.PlainID == stub.PlainID {
			return domain.ErrDuplicateIdentifier
		}
	}
	stub.ID = "stub-" + stub.PlainID
	stub.CreatedAt = time.Now()
	copied := *stub
	m.stubs[stub.Ciphertext] = &copied
	return nil
}

func (m *mockStubRepository) FindByCiphertext(ctx context.Context, ciphertext string) (*domain.MealStub, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		return nil, m.findErr
	}
	stub, ok := m.stubs[ciphertext]
	if !ok {
		return nil, nil
	}
	copied := *stub
	return &copied, nil
}

func (m *mockStubRepository) ExistsByPrefix(ctx context.Context, prefix string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.existsErr != nil {
		return false, m.existsErr
	}
	for _, s := range m.stubs {
		if s.Prefix == prefix {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStubRepository) FindAllByBatchID(ctx context.Context, batchID string) ([]*domain.MealStub, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*domain.MealStub
	for _, s := range m.stubs {
		if s.BatchID == batchID {
			copied := *s
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Sequence < result[j].Sequence })
	return result, nil
}

func (m *mockStubRepository) MarkRedeemed(ctx context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markErr != nil {
		return false, m.markErr
	}
	for _, s := range m.stubs {
		if s.ID == id && s.Status == domain.StubStatusActive {
			s.Status = domain.StubStatusRedeemed
			s.RedeemedAt = &at
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStubRepository) byPlainID(plainID string) *domain.MealStub {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.stubs {
		if s.PlainID == plainID {
			return s
		}
	}
	return nil
}

// mockBatchRepository はテスト用のモックリポジトリ。
type mockBatchRepository struct {
	batches   map[string]*domain.Batch
	createErr error
	findErr   error
	updates   int
}

func newMockBatchRepository() *mockBatchRepository {
	return &mockBatchRepository{batches: make(map[string]*domain.Batch)}
}

func (m *mockBatchRepository) Create(ctx context.Context, batch *domain.Batch) error {
	if m.createErr != nil {
		return m.createErr
	}
	batch.ID = "batch-" + batch.Prefix
	if _, ok := m.batches[batch.ID]; ok {
		return domain.ErrDuplicateBatch
	}
	copied := *batch
	m.batches[batch.ID] = &copied
	return nil
}

func (m *mockBatchRepository) FindByID(ctx context.Context, id string) (*domain.Batch, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	batch, ok := m.batches[id]
	if !ok {
		return nil, nil
	}
	copied := *batch
	return &copied, nil
}

func (m *mockBatchRepository) FindAll(ctx context.Context) ([]*domain.Batch, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	var result []*domain.Batch
	for _, b := range m.batches {
		copied := *b
		result = append(result, &copied)
	}
	return result, nil
}

func (m *mockBatchRepository) UpdateResult(ctx context.Context, batch *domain.Batch) error {
	m.updates++
	copied := *batch
	m.batches[batch.ID] = &copied
	return nil
}

// mockKeyWrapper は鍵に印を付けて包むテスト用のラッパー。
type mockKeyWrapper struct {
	kind      domain.KeyWrapping
	wrapErr   error
	unwrapErr error
}

var wrapMarker = []byte("wrapped:")

func (m *mockKeyWrapper) Wrap(ctx context.Context, key []byte) ([]byte, error) {
	if m.wrapErr != nil {
		return nil, m.wrapErr
	}
	return append(append([]byte(nil), wrapMarker...), key...), nil
}

func (m *mockKeyWrapper) Unwrap(ctx context.Context, wrapped []byte) ([]byte, error) {
	if m.unwrapErr != nil {
		return nil, m.unwrapErr
	}
	if len(wrapped) < len(wrapMarker) {
		return nil, errors.New("not wrapped")
	}
	return wrapped[len(wrapMarker):], nil
}

func (m *mockKeyWrapper) Kind() domain.KeyWrapping {
	if m.kind == "" {
		return domain.KeyWrappingKMS
	}
	return m.kind
}
