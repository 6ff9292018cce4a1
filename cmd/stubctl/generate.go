package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"meal-stub-service/internal/domain"
	"meal-stub-service/internal/handler"
	"meal-stub-service/internal/usecase"
)

// generateCmd はバッチ生成コマンド。
func generateCmd() *cobra.Command {
	var (
		prefix   string
		quantity int
		scheme   string
		policy   string
		workers  int
		outPath  string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a batch of meal stubs",
		Long:  "Generate identifiers, encrypt each with its own key and persist the triples",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if prefix == "" {
				prefix = cfg.IDPrefix
			}
			if scheme == "" {
				scheme = cfg.CipherScheme
			}
			if policy == "" {
				policy = cfg.ErrorPolicy
			}
			if workers == 0 {
				workers = cfg.BatchWorkers
			}

			return withApp(ctx, cfg, func(a *app) error {
				report, genErr := a.batches.GenerateBatch(ctx, usecase.BatchRequest{
					Prefix:   prefix,
					Quantity: quantity,
					Scheme:   domain.Scheme(scheme),
					Policy:   domain.ErrorPolicy(policy),
					Workers:  workers,
				})
				if report == nil {
					return genErr
				}

				if err := printReport(cmd, report); err != nil {
					return err
				}
				if genErr != nil {
					return genErr
				}

				if outPath != "" {
					return exportToFile(ctx, a, report.Batch.ID, outPath)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&prefix, "prefix", "", "Identifier prefix (default ID_PREFIX)")
	cmd.Flags().IntVar(&quantity, "quantity", 0, "Number of stubs to generate (required)")
	cmd.Flags().StringVar(&scheme, "scheme", "", "Cipher scheme: aes-256-gcm, aes-256-cbc, chacha20-poly1305 (default CIPHER_SCHEME)")
	cmd.Flags().StringVar(&policy, "policy", "", "Error policy: continue, abort (default ERROR_POLICY)")
	cmd.Flags().IntVar(&workers, "workers", 0, "Number of concurrent workers (default BATCH_WORKERS)")
	cmd.Flags().StringVar(&outPath, "out", "", "Write id,ciphertext CSV to this file after generation")
	cmd.MarkFlagRequired("quantity")
	return cmd
}

func printReport(cmd *cobra.Command, report *domain.BatchReport) error {
	w := cmd.OutOrStdout()
	if output == "json" {
		resp := handler.BatchResponse{
			ID:        report.Batch.ID,
			Prefix:    report.Batch.Prefix,
			Quantity:  report.Batch.Quantity,
			Scheme:    string(report.Batch.Scheme),
			Policy:    string(report.Batch.Policy),
			Status:    string(report.Batch.Status),
			Persisted: report.Batch.Persisted,
			Failed:    report.Batch.Failed,
		}
		for _, f := range report.Failures {
			resp.Failures = append(resp.Failures, handler.FailureResponse{ID: f.PlainID, Error: f.Err.Error()})
		}
		return printJSON(w, resp)
	}

	fmt.Fprintf(w, "Batch %s (%s): %d/%d stubs persisted with %s\n",
		report.Batch.ID, report.Batch.Status, report.Batch.Persisted, report.Batch.Quantity, report.Batch.Scheme)
	for _, f := range report.Failures {
		fmt.Fprintf(w, "  failed %s: %v\n", f.PlainID, f.Err)
	}
	return nil
}

func exportToFile(ctx context.Context, a *app, batchID, path string) error {
	codes, err := a.batches.ExportStubs(ctx, batchID)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := writeStubCSV(f, codes); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
