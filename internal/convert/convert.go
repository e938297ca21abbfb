// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package convert turns Word documents into PDFs by driving an external
// office engine, and runs batches of documents with per-file failure
// isolation, incremental skipping, and progress reporting.
package convert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/word2pdf/pkg/types"
)

var (
	// ErrBackendUnavailable means the office engine behind a backend is not
	// installed, not running, or not supported on this platform.
	ErrBackendUnavailable = errors.New("conversion backend unavailable")

	// ErrUnknownBackend is returned for backend names outside types.Backends.
	ErrUnknownBackend = errors.New("unknown conversion backend")
)

// Converter renders one Word document to PDF. Implementations drive an
// external office engine and must leave dst either absent or complete.
type Converter interface {
	// Name identifies the backend (e.g. "soffice").
	Name() string

	// Convert writes the PDF rendering of src to dst. The directory of dst
	// exists when Convert is called.
	Convert(ctx context.Context, src, dst string) error
}

// exclusive is implemented by converters that cannot run concurrently,
// such as COM automation of a desktop application.
type exclusive interface {
	Exclusive() bool
}

// Verifier checks a produced PDF and returns its page count.
type Verifier interface {
	Verify(path string) (int, error)
}

// Ledger remembers earlier conversions so unchanged documents can be skipped.
type Ledger interface {
	Current(ctx context.Context, source string, modTime time.Time, size int64) (bool, error)
	Record(ctx context.Context, rec types.ConversionRecord) error
}

// Event reports the completion of one document within a batch.
type Event struct {
	// Done counts finished documents including this one.
	Done  int
	Total int

	Document types.Document
	Record   types.ConversionRecord
}

// Observer receives progress events. It is called from worker goroutines,
// one event at a time, in completion order.
type Observer func(Event)

// Options tune a Runner.
type Options struct {
	// Workers bounds concurrent conversions (default 1).
	Workers int

	// Timeout bounds each document conversion; zero disables it.
	Timeout time.Duration

	// SettleDelay is slept after every successful conversion.
	SettleDelay time.Duration

	// Force reconverts documents whose PDF is already up to date.
	Force bool

	// DryRun reports what would be converted without touching any file.
	DryRun bool

	// RunID is stamped on every record.
	RunID string
}

// BatchResult holds the outcome of a batch conversion run.
type BatchResult struct {
	Converted int
	Skipped   int
	Failed    int
	// Planned counts documents a dry run would convert.
	Planned int

	// Records holds one record per processed document, in input order.
	Records []types.ConversionRecord
}

// Total returns the total number of documents processed.
func (r BatchResult) Total() int {
	return r.Converted + r.Skipped + r.Failed + r.Planned
}

// HasFailures reports whether any document failed conversion.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Failures returns the records of failed documents.
func (r BatchResult) Failures() []types.ConversionRecord {
	var out []types.ConversionRecord
	for _, rec := range r.Records {
		if rec.Status == types.StatusFailed {
			out = append(out, rec)
		}
	}
	return out
}

func (r *BatchResult) add(rec types.ConversionRecord) {
	switch rec.Status {
	case types.StatusConverted:
		r.Converted++
	case types.StatusSkipped:
		r.Skipped++
	case types.StatusFailed:
		r.Failed++
	case types.StatusPending:
		r.Planned++
	}
}

// Runner converts documents with a Converter, printing one status line per
// document to its writer.
type Runner struct {
	converter Converter
	verifier  Verifier
	ledger    Ledger
	observer  Observer
	logger    *zap.Logger
	opts      Options

	outMu sync.Mutex
	out   io.Writer
}

// NewRunner creates a Runner. A nil writer discards status lines and a nil
// logger disables diagnostics.
func NewRunner(c Converter, out io.Writer, logger *zap.Logger, opts Options) *Runner {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Runner{
		converter: c,
		out:       out,
		logger:    logger.With(zap.String("backend", c.Name())),
		opts:      opts,
	}
}

// WithVerifier enables output verification.
func (r *Runner) WithVerifier(v Verifier) *Runner {
	r.verifier = v
	return r
}

// WithLedger enables ledger-based skipping and history recording.
func (r *Runner) WithLedger(l Ledger) *Runner {
	r.ledger = l
	return r
}

// WithObserver registers a progress observer.
func (r *Runner) WithObserver(o Observer) *Runner {
	r.observer = o
	return r
}

// Workers returns the effective concurrency, which is 1 for exclusive
// converters regardless of Options.Workers.
func (r *Runner) Workers() int {
	if ex, ok := r.converter.(exclusive); ok && ex.Exclusive() {
		return 1
	}
	return r.opts.Workers
}

// ConvertDocument converts a single document. Failures are captured in the
// returned record rather than returned as errors so a batch can continue.
func (r *Runner) ConvertDocument(ctx context.Context, doc types.Document) types.ConversionRecord {
	rec := types.ConversionRecord{
		RunID:         r.opts.RunID,
		SourcePath:    doc.SourcePath,
		RelPath:       doc.RelPath,
		PDFPath:       doc.PDFPath,
		Backend:       r.converter.Name(),
		SourceModTime: doc.ModTime,
		SourceSize:    doc.Size,
	}

	if !r.opts.Force {
		if reason, ok := r.upToDate(ctx, doc); ok {
			rec.Status = types.StatusSkipped
			rec.Reason = reason
			r.printf("skipped:   %s (%s)\n", doc.RelPath, reason)
			r.logger.Debug("document skipped", zap.String("source", doc.SourcePath), zap.String("reason", reason))
			r.record(ctx, &rec)
			return rec
		}
	}

	if r.opts.DryRun {
		rec.Status = types.StatusPending
		rec.Reason = "dry run"
		r.printf("would convert: %s -> %s\n", doc.RelPath, doc.PDFPath)
		return rec
	}

	start := time.Now()
	pages, err := r.convert(ctx, doc)
	rec.Duration = time.Since(start)

	if err != nil {
		rec.Status = types.StatusFailed
		rec.Error = err.Error()
		r.printf("failed:    %s (%v)\n", doc.RelPath, err)
		r.logger.Warn("document conversion failed",
			zap.String("source", doc.SourcePath), zap.Duration("duration", rec.Duration), zap.Error(err))
		r.record(ctx, &rec)
		return rec
	}

	rec.Status = types.StatusConverted
	rec.Pages = pages
	r.printf("converted: %s\n", doc.RelPath)
	r.logger.Info("document converted",
		zap.String("source", doc.SourcePath), zap.String("pdf", doc.PDFPath),
		zap.Int("pages", pages), zap.Duration("duration", rec.Duration))
	r.record(ctx, &rec)

	if r.opts.SettleDelay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(r.opts.SettleDelay):
		}
	}
	return rec
}

// ConvertBatch converts docs with bounded concurrency and prints a summary.
// Per-document failures are counted, not returned; the error is non-nil
// only when ctx is cancelled, in which case the partial result is returned.
func (r *Runner) ConvertBatch(ctx context.Context, docs []types.Document) (BatchResult, error) {
	var (
		result  BatchResult
		mu      sync.Mutex
		done    int
		records = make([]types.ConversionRecord, len(docs))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Workers())

	r.logger.Info("batch started", zap.Int("documents", len(docs)), zap.Int("workers", r.Workers()))

	for i, doc := range docs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rec := r.ConvertDocument(gctx, doc)

			mu.Lock()
			defer mu.Unlock()
			records[i] = rec
			result.add(rec)
			done++
			if r.observer != nil {
				r.observer(Event{Done: done, Total: len(docs), Document: doc, Record: rec})
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, rec := range records {
		if rec.Status != "" {
			result.Records = append(result.Records, rec)
		}
	}

	r.printf("\nBatch summary: %d converted, %d skipped, %d failed (total: %d)\n",
		result.Converted, result.Skipped, result.Failed, result.Total())
	r.logger.Info("batch finished",
		zap.Int("converted", result.Converted), zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

func (r *Runner) convert(ctx context.Context, doc types.Document) (int, error) {
	if err := os.MkdirAll(filepath.Dir(doc.PDFPath), 0o755); err != nil {
		return 0, fmt.Errorf("creating output directory: %w", err)
	}

	cctx := ctx
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	if err := r.converter.Convert(cctx, doc.SourcePath, doc.PDFPath); err != nil {
		if errors.Is(cctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return 0, fmt.Errorf("timed out after %v: %w", r.opts.Timeout, err)
		}
		return 0, err
	}

	if r.verifier == nil {
		return 0, nil
	}
	pages, err := r.verifier.Verify(doc.PDFPath)
	if err != nil {
		// Invalid output must not survive to be skipped as up to date later.
		os.Remove(doc.PDFPath)
		return 0, fmt.Errorf("verifying output: %w", err)
	}
	return pages, nil
}

// upToDate reports whether the PDF for doc can be reused: it exists and
// either the ledger saw this exact source converted, or the PDF is not
// older than the source.
func (r *Runner) upToDate(ctx context.Context, doc types.Document) (string, bool) {
	info, err := os.Stat(doc.PDFPath)
	if err != nil || info.IsDir() {
		return "", false
	}

	if r.ledger != nil {
		ok, err := r.ledger.Current(ctx, doc.SourcePath, doc.ModTime, doc.Size)
		if err != nil {
			r.logger.Warn("ledger lookup failed", zap.String("source", doc.SourcePath), zap.Error(err))
		} else if ok {
			return "unchanged since last conversion", true
		}
	}

	if !info.ModTime().Before(doc.ModTime) {
		return "up to date", true
	}
	return "", false
}

func (r *Runner) record(ctx context.Context, rec *types.ConversionRecord) {
	rec.FinishedAt = time.Now()
	if r.ledger == nil {
		return
	}
	// Interrupted runs still keep their history.
	if err := r.ledger.Record(context.WithoutCancel(ctx), *rec); err != nil {
		r.logger.Warn("recording conversion failed", zap.String("source", rec.SourcePath), zap.Error(err))
	}
}

func (r *Runner) printf(format string, args ...any) {
	r.outMu.Lock()
	defer r.outMu.Unlock()
	fmt.Fprintf(r.out, format, args...)
}
