package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/FrenchMajesty/brand-identifier/pkg/batch"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newBatchCmd(a *app) *cobra.Command {
	var (
		concurrency int
		perSecond   float64
	)

	cmd := &cobra.Command{
		Use:   "batch [file|-]",
		Short: "Identify brands for a file of descriptions, one per line",
		Long: `Classifies every non-blank line of the file (or stdin with "-") and
prints tab-separated text, label and error columns in input order.
Descriptions are sent straight to the brand API without delay hints.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, args[0], concurrency, perSecond)
		},
	}

	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "Parallel requests (default from config)")
	cmd.Flags().Float64Var(&perSecond, "rate", 0, "Maximum requests per second (default from config, 0 for no cap)")
	return cmd
}

func (a *app) runBatch(cmd *cobra.Command, source string, concurrency int, perSecond float64) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	var r io.Reader = cmd.InOrStdin()
	if source != "-" {
		f, err := os.Open(source)
		if err != nil {
			return fmt.Errorf("failed to open descriptions: %w", err)
		}
		defer f.Close()
		r = f
	}

	texts, err := batch.ReadLines(r)
	if err != nil {
		return err
	}
	if concurrency <= 0 {
		concurrency = a.cfg.BatchConcurrency
	}
	if perSecond <= 0 {
		perSecond = a.cfg.BatchRateLimit
	}

	a.logger.Info("starting batch",
		zap.Int("descriptions", len(texts)),
		zap.Int("concurrency", concurrency),
		zap.Float64("rate_limit", perSecond))

	start := time.Now()
	items, runErr := batch.Run(ctx, a.newClient(), texts, concurrency, batch.WithRateLimit(perSecond))

	if err := writeTSV(cmd.OutOrStdout(), items); err != nil {
		return err
	}

	succeeded, failed := batch.Summary(items)
	a.logger.Info("batch complete",
		zap.Int("succeeded", succeeded),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(start)))

	if runErr != nil {
		return fmt.Errorf("batch interrupted: %w", runErr)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d descriptions failed", failed, len(items))
	}
	return nil
}

func writeTSV(w io.Writer, items []batch.Item) error {
	tw := csv.NewWriter(w)
	tw.Comma = '\t'

	if err := tw.Write([]string{"text", "label", "error"}); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	for _, it := range items {
		var label, errText string
		if it.Result != nil {
			label = it.Result.Label
		}
		if it.Err != nil {
			errText = it.Err.Error()
		}
		if err := tw.Write([]string{it.Text, label, errText}); err != nil {
			return fmt.Errorf("failed to write results: %w", err)
		}
	}

	tw.Flush()
	if err := tw.Error(); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	return nil
}
