// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/word2pdf/internal/convert"
	"github.com/pdiddy/word2pdf/internal/ledger"
	"github.com/pdiddy/word2pdf/internal/scan"
	"github.com/pdiddy/word2pdf/internal/watch"
	"github.com/pdiddy/word2pdf/pkg/types"
)

var watchCmd = &cobra.Command{
	Use:   "watch <input-dir>",
	Short: "Convert Word documents whenever they change",
	Long: `Watch converts the folder once, then keeps watching it and converts each
Word document again shortly after it is saved. New sub-folders are picked
up automatically. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringP("output-dir", "o", "", `output root (default "<input-dir>_pdf" next to the input)`)
	watchCmd.Flags().BoolP("force", "f", false, "reconvert up-to-date documents in the initial pass")
	watchCmd.Flags().Bool("no-initial", false, "skip the initial conversion pass")
	watchCmd.Flags().Duration("debounce", 0, "quiet period before a changed document is converted (default 2s)")

	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	cfg := loadConfig(cmd)
	noInitial, _ := cmd.Flags().GetBool("no-initial")
	if d, _ := cmd.Flags().GetDuration("debounce"); d > 0 {
		cfg.Watch.Debounce = d
	}

	input, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	output := outputRoot(input, cfg.Conversion.OutputDir)

	conv, err := newConverter(ctx, cfg.Conversion.Backend, cfg, logger)
	if err != nil {
		return err
	}

	run := types.Run{ID: uuid.NewString(), InputDir: input, OutputDir: output, Backend: conv.Name(), StartedAt: time.Now()}
	led := openLedger(ctx, cfg, run)
	if led != nil {
		defer led.Close()
	}

	opts := convert.Options{
		Workers:     cfg.Conversion.Workers,
		Timeout:     cfg.Conversion.Timeout,
		SettleDelay: cfg.Conversion.SettleDelay,
		Force:       cfg.Conversion.Force,
		RunID:       run.ID,
	}
	runner := newRunner(conv, out, cfg, opts, led)

	var (
		mu     sync.Mutex
		totals convert.BatchResult
	)
	tally := func(r convert.BatchResult) {
		mu.Lock()
		defer mu.Unlock()
		totals.Converted += r.Converted
		totals.Skipped += r.Skipped
		totals.Failed += r.Failed
	}

	if !noInitial {
		docs, err := scan.Plan(ctx, input, output, scan.Options{Extensions: cfg.Scan.Extensions, Logger: logger})
		switch {
		case errors.Is(err, scan.ErrNoDocuments):
			fmt.Fprintf(out, "No Word documents found in %s yet\n", input)
		case err != nil:
			return err
		default:
			fmt.Fprintf(out, "Found %d Word documents in %s\n", len(docs), input)
			result, err := runner.ConvertBatch(ctx, docs)
			tally(result)
			if err != nil {
				return finishWatch(ctx, led, run.ID, totals, err)
			}
		}
	}

	// A settled change always reconverts, whatever the timestamps say.
	changeOpts := opts
	changeOpts.Force = true
	changeRunner := newRunner(conv, out, cfg, changeOpts, led)

	w, err := watch.New(input, output, watch.Options{
		Extensions: cfg.Scan.Extensions,
		Debounce:   cfg.Watch.Debounce,
	}, func(ctx context.Context, doc types.Document) {
		rec := changeRunner.ConvertDocument(ctx, doc)
		var r convert.BatchResult
		switch rec.Status {
		case types.StatusConverted:
			r.Converted = 1
		case types.StatusFailed:
			r.Failed = 1
		}
		tally(r)
	}, logger)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return err
	}
	fmt.Fprintf(out, "Watching %s for changes (output: %s). Press Ctrl+C to stop.\n", input, output)

	<-ctx.Done()
	w.Stop()
	st := w.Stats()
	logger.Info("watch stopped", zap.Int("events", st.Events), zap.Int("handled", st.Handled), zap.Int("errors", st.Errors))

	mu.Lock()
	final := totals
	mu.Unlock()
	fmt.Fprintf(out, "\nStopped watching. Converted: %d, Skipped: %d, Failed: %d\n", final.Converted, final.Skipped, final.Failed)
	return finishWatch(ctx, led, run.ID, final, nil)
}

func finishWatch(ctx context.Context, led *ledger.Ledger, runID string, totals convert.BatchResult, err error) error {
	if led != nil {
		if ferr := led.FinishRun(context.WithoutCancel(ctx), runID, totals.Converted, totals.Skipped, totals.Failed); ferr != nil {
			logger.Warn("closing ledger run", zap.Error(ferr))
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
