// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/word2pdf/internal/convert"
	"github.com/pdiddy/word2pdf/internal/ledger"
	"github.com/pdiddy/word2pdf/internal/scan"
	"github.com/pdiddy/word2pdf/internal/tui"
	"github.com/pdiddy/word2pdf/internal/verify"
	"github.com/pdiddy/word2pdf/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert [input-dir]",
	Short: "Convert every Word document under a folder to PDF",
	Long: `Convert finds every .docx and .doc file under input-dir and writes a PDF for
each into the output folder, keeping the relative folder structure. PDFs
that are already up to date are skipped unless --force is given. A failed
document is reported and the batch continues.

Without input-dir, --tui opens a folder picker.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConvert,
}

// newConverter selects the conversion backend; tests replace it.
var newConverter = convert.New

func init() {
	convertCmd.Flags().StringP("output-dir", "o", "", `output root (default "<input-dir>_pdf" next to the input)`)
	convertCmd.Flags().BoolP("force", "f", false, "reconvert documents whose PDF is up to date")
	convertCmd.Flags().Bool("dry-run", false, "list what would be converted without converting")
	convertCmd.Flags().Bool("tui", false, "show an interactive progress view (and a folder picker without input-dir)")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	cfg := loadConfig(cmd)
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	useTUI, _ := cmd.Flags().GetBool("tui")

	input, err := inputDir(args, useTUI, out)
	if err != nil {
		return err
	}
	output := outputRoot(input, cfg.Conversion.OutputDir)

	docs, err := scan.Plan(ctx, input, output, scan.Options{Extensions: cfg.Scan.Extensions, Logger: logger})
	if errors.Is(err, scan.ErrNoDocuments) {
		fmt.Fprintf(out, "No Word documents found in %s\n", input)
		return nil
	}
	if err != nil {
		return err
	}

	conv, err := newConverter(ctx, cfg.Conversion.Backend, cfg, logger)
	if err != nil {
		return err
	}

	run := types.Run{
		ID:        uuid.NewString(),
		InputDir:  input,
		OutputDir: output,
		Backend:   conv.Name(),
		StartedAt: time.Now(),
	}
	logger.Info("conversion run", zap.String("run", run.ID), zap.String("input", input),
		zap.String("output", output), zap.String("backend", conv.Name()), zap.Int("documents", len(docs)))

	var led *ledger.Ledger
	if !dryRun {
		led = openLedger(ctx, cfg, run)
		if led != nil {
			defer led.Close()
		}
	}

	opts := convert.Options{
		Workers:     cfg.Conversion.Workers,
		Timeout:     cfg.Conversion.Timeout,
		SettleDelay: cfg.Conversion.SettleDelay,
		Force:       cfg.Conversion.Force,
		DryRun:      dryRun,
		RunID:       run.ID,
	}

	var result convert.BatchResult
	if useTUI {
		err = tui.RunProgress(ctx, "word2pdf", os.Stdin, out, func(ctx context.Context, send func(tea.Msg)) error {
			send(tui.StartedMsg{Total: len(docs), Input: input, Output: output, Backend: conv.Name()})
			runner := newRunner(conv, io.Discard, cfg, opts, led).WithObserver(func(e convert.Event) {
				send(progressMsg(e))
			})
			var berr error
			result, berr = runner.ConvertBatch(ctx, docs)
			send(tui.FinishedMsg{Converted: result.Converted, Skipped: result.Skipped, Failed: result.Failed, Output: output})
			return berr
		})
	} else {
		fmt.Fprintf(out, "Found %d Word documents in %s\n", len(docs), input)
		runner := newRunner(conv, out, cfg, opts, led).WithObserver(func(e convert.Event) {
			fmt.Fprintf(out, "processing %d/%d: %s\n", e.Done, e.Total, e.Document.Name())
		})
		result, err = runner.ConvertBatch(ctx, docs)
	}

	if led != nil {
		// The run row is closed even when the batch was interrupted.
		if ferr := led.FinishRun(context.WithoutCancel(ctx), run.ID, result.Converted, result.Skipped, result.Failed); ferr != nil {
			logger.Warn("closing ledger run", zap.Error(ferr))
		}
	}
	if err != nil {
		return err
	}

	if !useTUI {
		printCompletion(out, result, output, dryRun)
	}
	if result.HasFailures() {
		return fmt.Errorf("%d document(s) failed conversion", result.Failed)
	}
	return nil
}

// inputDir returns the absolute input folder from args or, in TUI mode, from
// the folder picker.
func inputDir(args []string, useTUI bool, out io.Writer) (string, error) {
	if len(args) == 1 {
		return filepath.Abs(args[0])
	}
	if !useTUI {
		return "", errors.New("provide an input directory, or use --tui to pick one")
	}
	dir, err := tui.PickDirectory(".", os.Stdin, out)
	if err != nil {
		return "", err
	}
	return dir, nil
}

// outputRoot resolves the output folder for input.
func outputRoot(input, configured string) string {
	if configured == "" {
		return scan.DefaultOutputDir(input)
	}
	if abs, err := filepath.Abs(configured); err == nil {
		return abs
	}
	return configured
}

// openLedger opens the history database and registers run. A ledger that
// cannot be opened disables history for this run instead of failing it.
func openLedger(ctx context.Context, cfg types.Config, run types.Run) *ledger.Ledger {
	if cfg.Ledger.Disabled {
		return nil
	}
	led, err := ledger.Open(cfg.Ledger)
	if err != nil {
		logger.Warn("conversion history disabled", zap.Error(err))
		return nil
	}
	if err := led.BeginRun(ctx, run); err != nil {
		logger.Warn("conversion history disabled", zap.Error(err))
		led.Close()
		return nil
	}
	return led
}

// newRunner wires a Runner with verification and history per cfg.
func newRunner(conv convert.Converter, out io.Writer, cfg types.Config, opts convert.Options, led *ledger.Ledger) *convert.Runner {
	r := convert.NewRunner(conv, out, logger, opts)
	if cfg.Conversion.Verify {
		r.WithVerifier(verify.New(cfg.Conversion.MaxPDFSize, cfg.Conversion.Strict))
	}
	if led != nil {
		r.WithLedger(led)
	}
	return r
}

func progressMsg(e convert.Event) tui.ProgressMsg {
	return tui.ProgressMsg{
		Done:   e.Done,
		Total:  e.Total,
		File:   e.Document.RelPath,
		Status: string(e.Record.Status),
		Err:    e.Record.Error,
	}
}

func printCompletion(out io.Writer, result convert.BatchResult, output string, dryRun bool) {
	if dryRun {
		fmt.Fprintf(out, "\nDry run: %d to convert, %d up to date\n", result.Planned, result.Skipped)
		return
	}
	fmt.Fprintf(out, "\nConversion complete!\nConverted: %d\nSkipped: %d\nFailed: %d\nOutput folder: %s\n",
		result.Converted, result.Skipped, result.Failed, output)
}
