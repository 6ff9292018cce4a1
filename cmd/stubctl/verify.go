package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"meal-stub-service/internal/domain"
	"meal-stub-service/internal/handler"
)

// verifyCmd は暗号文の検証コマンド。
func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <ciphertext>",
		Short: "Verify a scanned ciphertext",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCiphertextCommand(cmd, args[0], "/v1/stubs/verify", func(ctx context.Context, a *app, ct string) (*domain.Verification, error) {
				return a.verifier.Verify(ctx, ct)
			})
		},
	}
}

// redeemCmd は暗号文の引き換えコマンド。
func redeemCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "redeem <ciphertext>",
		Short: "Verify a scanned ciphertext and mark the stub as redeemed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCiphertextCommand(cmd, args[0], "/v1/stubs/redeem", func(ctx context.Context, a *app, ct string) (*domain.Verification, error) {
				return a.verifier.Redeem(ctx, ct)
			})
		},
	}
}

// runCiphertextCommand は --api-url があればAPI経由、なければDBに直接接続して処理する。
func runCiphertextCommand(
	cmd *cobra.Command,
	ciphertext string,
	path string,
	local func(ctx context.Context, a *app, ciphertext string) (*domain.Verification, error),
) error {
	ctx := cmd.Context()
	ciphertext = strings.TrimSpace(ciphertext)

	var resp *handler.VerificationResponse
	if apiURL != "" {
		r, err := postCiphertext(ctx, httpClient, apiURL+path, ciphertext)
		if err != nil {
			return err
		}
		resp = r
	} else {
		err := withApp(ctx, cfg, func(a *app) error {
			v, err := local(ctx, a, ciphertext)
			if err != nil {
				return err
			}
			resp = &handler.VerificationResponse{
				ID:       v.PlainID,
				BatchID:  v.BatchID,
				Scheme:   string(v.Scheme),
				Status:   string(v.Status),
				Redeemed: v.Redeemed,
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	if output == "json" {
		return printJSON(cmd.OutOrStdout(), resp)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "VALID %s (batch %s, %s)\n", resp.ID, resp.BatchID, resp.Status)
	return nil
}

// postCiphertext は暗号文をAPIに送信して検証結果を受け取る。
func postCiphertext(ctx context.Context, client *http.Client, url, ciphertext string) (*handler.VerificationResponse, error) {
	payload, err := json.Marshal(handler.CiphertextRequest{Ciphertext: ciphertext})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, body)
	}

	var result handler.VerificationResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	return &result, nil
}

// APIError はサーバーが返したエラー。
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func handleErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	apiErr := &APIError{Status: statusCode}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&errResp); err == nil && errResp.Message != "" {
		apiErr.Code = errResp.Code
		apiErr.Message = errResp.Message
	}
	return apiErr
}
