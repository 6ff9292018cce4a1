// Package handler はHTTPハンドラを提供する。
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"meal-stub-service/internal/domain"
	"meal-stub-service/internal/middleware"
	"meal-stub-service/internal/usecase"
	"meal-stub-service/pkg/httputil"
)

// Defaults はリクエストで省略された項目に使う値。
type Defaults struct {
	Prefix  string
	Scheme  domain.Scheme
	Policy  domain.ErrorPolicy
	Workers int
}

// StubHandler は食券APIのHTTPハンドラを提供する。
type StubHandler struct {
	batches  *usecase.BatchService
	verifier *usecase.VerifyService
	defaults Defaults
}

// NewStubHandler は新しいStubHandlerを生成する。
func NewStubHandler(batches *usecase.BatchService, verifier *usecase.VerifyService, defaults Defaults) *StubHandler {
	return &StubHandler{
		batches:  batches,
		verifier: verifier,
		defaults: defaults,
	}
}

// CreateBatchRequest はバッチ生成リクエストの形式。
type CreateBatchRequest struct {
	Prefix   string `json:"prefix"`
	Quantity int    `json:"quantity"`
	Scheme   string `json:"scheme"`
	Policy   string `json:"policy"`
}

// CiphertextRequest は検証・引き換えリクエストの形式。
type CiphertextRequest struct {
	Ciphertext string `json:"ciphertext"`
}

// FailureResponse は失敗した三つ組のレスポンス形式。
type FailureResponse struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// BatchResponse はバッチのレスポンス形式。
type BatchResponse struct {
	ID        string            `json:"batch_id"`
	Prefix    string            `json:"prefix"`
	Quantity  int               `json:"quantity"`
	Scheme    string            `json:"scheme"`
	Policy    string            `json:"policy"`
	Status    string            `json:"status"`
	Persisted int               `json:"persisted"`
	Failed    int               `json:"failed"`
	CreatedAt string            `json:"created_at"`
	Failures  []FailureResponse `json:"failures,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// BatchListResponse はバッチ一覧のレスポンス形式。
type BatchListResponse struct {
	Batches []BatchResponse `json:"batches"`
}

// StubCodeResponse はレンダリング用のIDと暗号文の組。
type StubCodeResponse struct {
	ID         string `json:"id"`
	Ciphertext string `json:"ciphertext"`
}

// StubListResponse はバッチ内の食券一覧のレスポンス形式。
type StubListResponse struct {
	BatchID string             `json:"batch_id"`
	Stubs   []StubCodeResponse `json:"stubs"`
}

// VerificationResponse は検証結果のレスポンス形式。
type VerificationResponse struct {
	ID       string `json:"id"`
	BatchID  string `json:"batch_id"`
	Scheme   string `json:"scheme"`
	Status   string `json:"status"`
	Redeemed bool   `json:"redeemed"`
}

func toBatchResponse(b *domain.Batch) BatchResponse {
	return BatchResponse{
		ID:        b.ID,
		Prefix:    b.Prefix,
		Quantity:  b.Quantity,
		Scheme:    string(b.Scheme),
		Policy:    string(b.Policy),
		Status:    string(b.Status),
		Persisted: b.Persisted,
		Failed:    b.Failed,
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
	}
}

func toVerificationResponse(v *domain.Verification) VerificationResponse {
	return VerificationResponse{
		ID:       v.PlainID,
		BatchID:  v.BatchID,
		Scheme:   string(v.Scheme),
		Status:   string(v.Status),
		Redeemed: v.Redeemed,
	}
}

// errorStatus はドメインエラーをHTTPステータスとエラーコードに変換する。
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "INVALID_ARGUMENT"
	case errors.Is(err, domain.ErrRangeExceeded):
		return http.StatusBadRequest, "RANGE_EXCEEDED"
	case errors.Is(err, domain.ErrBatchNotFound):
		return http.StatusNotFound, "BATCH_NOT_FOUND"
	case errors.Is(err, domain.ErrStubNotFound):
		return http.StatusNotFound, "STUB_NOT_FOUND"
	case errors.Is(err, domain.ErrMalformedCiphertext):
		return http.StatusUnprocessableEntity, "MALFORMED_CIPHERTEXT"
	case errors.Is(err, domain.ErrWrongKey):
		return http.StatusUnprocessableEntity, "WRONG_KEY"
	case errors.Is(err, domain.ErrDuplicateBatch):
		return http.StatusConflict, "DUPLICATE_BATCH"
	case errors.Is(err, domain.ErrIdentifierMismatch):
		return http.StatusConflict, "IDENTIFIER_MISMATCH"
	case errors.Is(err, domain.ErrStubAlreadyRedeemed):
		return http.StatusConflict, "ALREADY_REDEEMED"
	case errors.Is(err, domain.ErrKeyWrappingMismatch):
		return http.StatusInternalServerError, "KEY_WRAPPING_MISMATCH"
	}
	return http.StatusInternalServerError, "INTERNAL_ERROR"
}

func writeError(w http.ResponseWriter, err error) {
	status, code := errorStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	httputil.Error(w, status, code, message)
}

// CreateBatch は新しいバッチを生成する。
func (h *StubHandler) CreateBatch(w http.ResponseWriter, r *http.Request) {
	var req CreateBatchRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	batchReq := usecase.BatchRequest{
		Prefix:   req.Prefix,
		Quantity: req.Quantity,
		Scheme:   domain.Scheme(req.Scheme),
		Policy:   domain.ErrorPolicy(req.Policy),
		Workers:  h.defaults.Workers,
	}
	if batchReq.Prefix == "" {
		batchReq.Prefix = h.defaults.Prefix
	}
	if batchReq.Scheme == "" {
		batchReq.Scheme = h.defaults.Scheme
	}
	if batchReq.Policy == "" {
		batchReq.Policy = h.defaults.Policy
	}

	report, err := h.batches.GenerateBatch(r.Context(), batchReq)
	if err != nil && report == nil {
		middleware.WriteAuditLog(r.Context(), "CREATE_BATCH", batchReq.Prefix, middleware.ResultFailed, err)
		writeError(w, err)
		return
	}

	resp := toBatchResponse(report.Batch)
	for _, f := range report.Failures {
		resp.Failures = append(resp.Failures, FailureResponse{ID: f.PlainID, Error: f.Err.Error()})
	}

	// 中断したバッチも保存済みの件数が分かるようにレポートを返す
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "CREATE_BATCH", report.Batch.ID, middleware.ResultFailed, err)
		resp.Error = err.Error()
		httputil.JSON(w, http.StatusInternalServerError, resp)
		return
	}

	middleware.WriteAuditLog(r.Context(), "CREATE_BATCH", report.Batch.ID, middleware.ResultSuccess, nil)
	httputil.JSON(w, http.StatusCreated, resp)
}

// ListBatches はバッチ一覧を取得する。
func (h *StubHandler) ListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.batches.ListBatches(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	resp := BatchListResponse{Batches: make([]BatchResponse, len(batches))}
	for i, b := range batches {
		resp.Batches[i] = toBatchResponse(b)
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// GetBatch は指定されたバッチを取得する。
func (h *StubHandler) GetBatch(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batch_id")

	batch, err := h.batches.GetBatch(r.Context(), batchID)
	if err != nil {
		writeError(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, toBatchResponse(batch))
}

// ListStubs はバッチ内のIDと暗号文を連番順に返す。
func (h *StubHandler) ListStubs(w http.ResponseWriter, r *http.Request) {
	batchID := chi.URLParam(r, "batch_id")

	codes, err := h.batches.ExportStubs(r.Context(), batchID)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "EXPORT_STUBS", batchID, middleware.ResultFailed, err)
		writeError(w, err)
		return
	}

	resp := StubListResponse{BatchID: batchID, Stubs: make([]StubCodeResponse, len(codes))}
	for i, c := range codes {
		resp.Stubs[i] = StubCodeResponse{ID: c.PlainID, Ciphertext: c.Ciphertext}
	}
	middleware.WriteAuditLog(r.Context(), "EXPORT_STUBS", batchID, middleware.ResultSuccess, nil)
	httputil.JSON(w, http.StatusOK, resp)
}

// VerifyStub はスキャンされた暗号文を検証する。
func (h *StubHandler) VerifyStub(w http.ResponseWriter, r *http.Request) {
	h.handleCiphertext(w, r, "VERIFY_STUB", h.verifier.Verify)
}

// RedeemStub はスキャンされた暗号文を検証して引き換え済みにする。
func (h *StubHandler) RedeemStub(w http.ResponseWriter, r *http.Request) {
	h.handleCiphertext(w, r, "REDEEM_STUB", h.verifier.Redeem)
}

func (h *StubHandler) handleCiphertext(
	w http.ResponseWriter,
	r *http.Request,
	operation string,
	fn func(ctx context.Context, ciphertext string) (*domain.Verification, error),
) {
	var req CiphertextRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}
	if req.Ciphertext == "" {
		httputil.Error(w, http.StatusBadRequest, "INVALID_ARGUMENT", "ciphertext is required")
		return
	}

	v, err := fn(r.Context(), req.Ciphertext)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), operation, "", middleware.ResultFailed, err)
		writeError(w, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), operation, v.PlainID, middleware.ResultSuccess, nil)
	httputil.JSON(w, http.StatusOK, toVerificationResponse(v))
}
