package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"meal-stub-service/internal/domain"
	"meal-stub-service/internal/handler"
)

// exportCmd はレンダリング用のCSVを出力するコマンド。
func exportCmd() *cobra.Command {
	var (
		batchID string
		outPath string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export id,ciphertext pairs of a batch as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, cfg, func(a *app) error {
				if outPath != "" {
					return exportToFile(ctx, a, batchID, outPath)
				}
				codes, err := a.batches.ExportStubs(ctx, batchID)
				if err != nil {
					return err
				}
				return writeStubCSV(cmd.OutOrStdout(), codes)
			})
		},
	}
	cmd.Flags().StringVar(&batchID, "batch", "", "Batch ID (required)")
	cmd.Flags().StringVar(&outPath, "out", "", "Output file (default stdout)")
	cmd.MarkFlagRequired("batch")
	return cmd
}

// writeStubCSV はヘッダー付きの id,ciphertext CSVを書き出す。
func writeStubCSV(w io.Writer, codes []domain.StubCode) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "ciphertext"}); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, c := range codes {
		if err := cw.Write([]string{c.PlainID, c.Ciphertext}); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// batchesCmd はバッチ一覧を表示するコマンド。
func batchesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batches",
		Short: "List generated batches",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withApp(ctx, cfg, func(a *app) error {
				batches, err := a.batches.ListBatches(ctx)
				if err != nil {
					return err
				}

				if output == "json" {
					resp := handler.BatchListResponse{Batches: make([]handler.BatchResponse, len(batches))}
					for i, b := range batches {
						resp.Batches[i] = handler.BatchResponse{
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
					return printJSON(cmd.OutOrStdout(), resp)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
				fmt.Fprintln(w, "BATCH ID\tPREFIX\tSCHEME\tSTATUS\tPERSISTED\tFAILED\tCREATED AT")
				for _, b := range batches {
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%d\t%s\n",
						b.ID, b.Prefix, b.Scheme, b.Status, b.Persisted, b.Quantity, b.Failed,
						b.CreatedAt.Format("2006-01-02 15:04:05"))
				}
				return w.Flush()
			})
		},
	}
}
