package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"meal-stub-service/internal/domain"
	"meal-stub-service/internal/handler"
)

// setupEnv はコマンドが一時ディレクトリのSQLiteを使うように環境変数を設定する。
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(dir, "stubs.sqlite"))
	t.Setenv("MIGRATIONS_DIR", filepath.Join("..", "..", "migrations"))
	t.Setenv("KMS_KEY_NAME", "")
	t.Setenv("STUBCTL_API_URL", "")
	t.Setenv("LOG_LEVEL", "ERROR")
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersion(t *testing.T) {
	setupEnv(t)
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, version) {
		t.Errorf("want version %s in output, got %q", version, out)
	}
}

func TestGenerateExportVerifyRedeem(t *testing.T) {
	dir := setupEnv(t)

	if _, err := execute(t, "migrate", "up"); err != nil {
		t.Fatalf("migrate up failed: %v", err)
	}
	out, err := execute(t, "migrate", "status")
	if err != nil {
		t.Fatalf("migrate status failed: %v", err)
	}
	if strings.Contains(out, "pending") {
		t.Errorf("want all migrations applied, got:\n%s", out)
	}

	csvPath := filepath.Join(dir, "stubs.csv")
	out, err = execute(t, "--output", "json", "generate", "--prefix", "MT", "--quantity", "5", "--scheme", "aes-256-cbc", "--out", csvPath)
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	var report handler.BatchResponse
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("failed to parse generate output: %v\n%s", err, out)
	}
	if report.Persisted != 5 || report.Status != string(domain.BatchStatusCompleted) {
		t.Fatalf("unexpected report: %+v", report)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		t.Fatalf("failed to open csv: %v", err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("failed to read csv: %v", err)
	}
	if len(records) != 6 {
		t.Fatalf("want header + 5 rows, got %d", len(records))
	}
	if records[0][0] != "id" || records[0][1] != "ciphertext" {
		t.Errorf("unexpected header: %v", records[0])
	}
	if records[3][0] != "MT_00003" {
		t.Errorf("want MT_00003 on row 3, got %s", records[3][0])
	}

	// 標準出力へのエクスポートも同じ内容になる
	out, err = execute(t, "export", "--batch", report.ID)
	if err != nil {
		t.Fatalf("export failed: %v", err)
	}
	if !strings.Contains(out, records[3][1]) {
		t.Error("want exported CSV to contain the same ciphertext")
	}

	out, err = execute(t, "verify", records[3][1])
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !strings.Contains(out, "MT_00003") {
		t.Errorf("want MT_00003 in output, got %q", out)
	}

	if _, err := execute(t, "redeem", records[3][1]); err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	_, err = execute(t, "redeem", records[3][1])
	if !errors.Is(err, domain.ErrStubAlreadyRedeemed) {
		t.Errorf("want ErrStubAlreadyRedeemed, got %v", err)
	}

	_, err = execute(t, "verify", "bm90LWEtc3R1Yg==")
	if !errors.Is(err, domain.ErrStubNotFound) {
		t.Errorf("want ErrStubNotFound, got %v", err)
	}

	out, err = execute(t, "batches")
	if err != nil {
		t.Fatalf("batches failed: %v", err)
	}
	if !strings.Contains(out, report.ID) {
		t.Errorf("want batch %s in list, got:\n%s", report.ID, out)
	}

	_, err = execute(t, "generate", "--prefix", "MT", "--quantity", "1")
	if !errors.Is(err, domain.ErrDuplicateBatch) {
		t.Errorf("want ErrDuplicateBatch, got %v", err)
	}
}

func TestGenerate_InvalidQuantity(t *testing.T) {
	setupEnv(t)
	if _, err := execute(t, "migrate", "up"); err != nil {
		t.Fatalf("migrate up failed: %v", err)
	}

	_, err := execute(t, "generate", "--quantity", "100000")
	if !errors.Is(err, domain.ErrRangeExceeded) {
		t.Errorf("want ErrRangeExceeded, got %v", err)
	}
}

func TestVerify_Remote(t *testing.T) {
	setupEnv(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req handler.CiphertextRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.URL.Path == "/v1/stubs/verify" && req.Ciphertext == "good":
			json.NewEncoder(w).Encode(handler.VerificationResponse{ID: "MP_00042", BatchID: "b-1", Status: "active"})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"code": "STUB_NOT_FOUND", "message": "stub not found"})
		}
	}))
	defer srv.Close()

	out, err := execute(t, "--api-url", srv.URL, "verify", "good")
	if err != nil {
		t.Fatalf("remote verify failed: %v", err)
	}
	if !strings.Contains(out, "MP_00042") {
		t.Errorf("want MP_00042 in output, got %q", out)
	}

	_, err = execute(t, "--api-url", srv.URL, "verify", "bad")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound || apiErr.Code != "STUB_NOT_FOUND" {
		t.Errorf("unexpected API error: %+v", apiErr)
	}
}

func TestWriteStubCSV(t *testing.T) {
	var buf bytes.Buffer
	err := writeStubCSV(&buf, []domain.StubCode{
		{PlainID: "MP_00001", Ciphertext: "a+b/c="},
		{PlainID: "MP_00002", Ciphertext: "d+e/f="},
	})
	if err != nil {
		t.Fatalf("writeStubCSV failed: %v", err)
	}
	want := "id,ciphertext\nMP_00001,a+b/c=\nMP_00002,d+e/f=\n"
	if buf.String() != want {
		t.Errorf("want %q, got %q", want, buf.String())
	}
}

func TestMigrateUp_EmbeddedSchema(t *testing.T) {
	setupEnv(t)
	t.Setenv("MIGRATIONS_DIR", "")

	if _, err := execute(t, "migrate", "up"); err != nil {
		t.Fatalf("migrate up failed: %v", err)
	}
	out, err := execute(t, "migrate", "status")
	if err != nil {
		t.Fatalf("migrate status failed: %v", err)
	}
	if strings.Contains(out, string(domain.MigrationStatusPending)) {
		t.Errorf("want no pending migrations, got:\n%s", out)
	}
	if _, err := execute(t, "generate", "--prefix", "EM", "--quantity", "3"); err != nil {
		t.Fatalf("generate after embedded migrate failed: %v", err)
	}
}
