// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/word2pdf/internal/scan"
	"github.com/pdiddy/word2pdf/pkg/types"
)

// fakeConverter implements Converter for testing. It writes canned PDF bytes
// to dst or returns an error, depending on configuration.
type fakeConverter struct {
	name      string
	err       error
	output    string
	delay     time.Duration
	exclusive bool

	calls   atomic.Int32
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (f *fakeConverter) Name() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

func (f *fakeConverter) Exclusive() bool { return f.exclusive }

func (f *fakeConverter) Convert(ctx context.Context, src, dst string) error {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return f.err
	}
	out := f.output
	if out == "" {
		out = "%PDF-1.4 fake"
	}
	return os.WriteFile(dst, []byte(out), 0o644)
}

type fakeVerifier struct {
	pages int
	err   error
}

func (f *fakeVerifier) Verify(string) (int, error) { return f.pages, f.err }

type fakeLedger struct {
	mu      sync.Mutex
	current bool
	records []types.ConversionRecord
}

func (f *fakeLedger) Current(context.Context, string, time.Time, int64) (bool, error) {
	return f.current, nil
}

func (f *fakeLedger) Record(_ context.Context, rec types.ConversionRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

// setupDoc creates a source document under a temp input tree and returns
// the planned Document.
func setupDoc(t *testing.T, rel string) types.Document {
	t.Helper()
	root := t.TempDir()
	in := filepath.Join(root, "in")
	src := filepath.Join(in, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("docx"), 0o644))
	info, err := os.Stat(src)
	require.NoError(t, err)
	return types.Document{
		SourcePath: src,
		RelPath:    rel,
		PDFPath:    filepath.Join(root, "in_pdf", strings.TrimSuffix(rel, filepath.Ext(rel))+".pdf"),
		Size:       info.Size(),
		ModTime:    info.ModTime(),
	}
}

func TestConvertDocument(t *testing.T) {
	tests := []struct {
		name       string
		converter  *fakeConverter
		preCreate  bool // create the PDF, newer than the source
		force      bool
		wantStatus types.ConversionStatus
		wantLog    string
		wantCalls  int32
	}{
		{
			name:       "successful conversion",
			converter:  &fakeConverter{},
			wantStatus: types.StatusConverted,
			wantLog:    "converted: sub/report.docx",
			wantCalls:  1,
		},
		{
			name:       "skip up to date pdf",
			converter:  &fakeConverter{},
			preCreate:  true,
			wantStatus: types.StatusSkipped,
			wantLog:    "skipped:   sub/report.docx (up to date)",
		},
		{
			name:       "force reconverts",
			converter:  &fakeConverter{},
			preCreate:  true,
			force:      true,
			wantStatus: types.StatusConverted,
			wantLog:    "converted:",
			wantCalls:  1,
		},
		{
			name:       "conversion failure",
			converter:  &fakeConverter{err: errors.New("engine crashed")},
			wantStatus: types.StatusFailed,
			wantLog:    "failed:    sub/report.docx (engine crashed)",
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := setupDoc(t, filepath.Join("sub", "report.docx"))
			if tt.preCreate {
				require.NoError(t, os.MkdirAll(filepath.Dir(doc.PDFPath), 0o755))
				require.NoError(t, os.WriteFile(doc.PDFPath, []byte("old"), 0o644))
				future := doc.ModTime.Add(time.Hour)
				require.NoError(t, os.Chtimes(doc.PDFPath, future, future))
			}

			var buf bytes.Buffer
			r := NewRunner(tt.converter, &buf, nil, Options{Force: tt.force, RunID: "run-1"})
			rec := r.ConvertDocument(context.Background(), doc)

			assert.Equal(t, tt.wantStatus, rec.Status)
			assert.Equal(t, "run-1", rec.RunID)
			assert.Equal(t, "fake", rec.Backend)
			assert.Contains(t, buf.String(), tt.wantLog)
			assert.Equal(t, tt.wantCalls, tt.converter.calls.Load())
			assert.False(t, rec.FinishedAt.IsZero())

			if tt.wantStatus == types.StatusConverted {
				assert.FileExists(t, doc.PDFPath)
			}
			if tt.wantStatus == types.StatusFailed {
				assert.Contains(t, rec.Error, "engine crashed")
			}
		})
	}
}

func TestConvertDocument_StalePDFReconverted(t *testing.T) {
	doc := setupDoc(t, "a.docx")
	require.NoError(t, os.MkdirAll(filepath.Dir(doc.PDFPath), 0o755))
	require.NoError(t, os.WriteFile(doc.PDFPath, []byte("old"), 0o644))
	past := doc.ModTime.Add(-time.Hour)
	require.NoError(t, os.Chtimes(doc.PDFPath, past, past))

	conv := &fakeConverter{output: "new"}
	rec := NewRunner(conv, nil, nil, Options{}).ConvertDocument(context.Background(), doc)

	assert.Equal(t, types.StatusConverted, rec.Status)
	data, err := os.ReadFile(doc.PDFPath)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestConvertDocument_LedgerSkip(t *testing.T) {
	doc := setupDoc(t, "a.docx")
	require.NoError(t, os.MkdirAll(filepath.Dir(doc.PDFPath), 0o755))
	require.NoError(t, os.WriteFile(doc.PDFPath, []byte("old"), 0o644))
	// Older than the source: only the ledger can justify the skip.
	past := doc.ModTime.Add(-time.Hour)
	require.NoError(t, os.Chtimes(doc.PDFPath, past, past))

	led := &fakeLedger{current: true}
	conv := &fakeConverter{}
	var buf bytes.Buffer
	rec := NewRunner(conv, &buf, nil, Options{}).WithLedger(led).ConvertDocument(context.Background(), doc)

	assert.Equal(t, types.StatusSkipped, rec.Status)
	assert.Equal(t, "unchanged since last conversion", rec.Reason)
	assert.Zero(t, conv.calls.Load())
	require.Len(t, led.records, 1)
	assert.Equal(t, types.StatusSkipped, led.records[0].Status)
}

func TestConvertDocument_LedgerIgnoredWithoutPDF(t *testing.T) {
	doc := setupDoc(t, "a.docx")
	led := &fakeLedger{current: true}
	conv := &fakeConverter{}

	rec := NewRunner(conv, nil, nil, Options{}).WithLedger(led).ConvertDocument(context.Background(), doc)

	assert.Equal(t, types.StatusConverted, rec.Status)
	assert.EqualValues(t, 1, conv.calls.Load())
}

func TestConvertDocument_DryRun(t *testing.T) {
	doc := setupDoc(t, "a.docx")
	conv := &fakeConverter{}
	led := &fakeLedger{}
	var buf bytes.Buffer

	rec := NewRunner(conv, &buf, nil, Options{DryRun: true}).WithLedger(led).ConvertDocument(context.Background(), doc)

	assert.Equal(t, types.StatusPending, rec.Status)
	assert.Zero(t, conv.calls.Load())
	assert.NoFileExists(t, doc.PDFPath)
	assert.NoDirExists(t, filepath.Dir(doc.PDFPath))
	assert.Empty(t, led.records)
	assert.Contains(t, buf.String(), "would convert: a.docx")
}

func TestConvertDocument_Verify(t *testing.T) {
	t.Run("pages recorded", func(t *testing.T) {
		doc := setupDoc(t, "a.docx")
		r := NewRunner(&fakeConverter{}, nil, nil, Options{}).WithVerifier(&fakeVerifier{pages: 3})
		rec := r.ConvertDocument(context.Background(), doc)
		assert.Equal(t, types.StatusConverted, rec.Status)
		assert.Equal(t, 3, rec.Pages)
	})

	t.Run("invalid output removed", func(t *testing.T) {
		doc := setupDoc(t, "a.docx")
		r := NewRunner(&fakeConverter{}, nil, nil, Options{}).WithVerifier(&fakeVerifier{err: errors.New("no pages")})
		rec := r.ConvertDocument(context.Background(), doc)
		assert.Equal(t, types.StatusFailed, rec.Status)
		assert.Contains(t, rec.Error, "verifying output")
		assert.NoFileExists(t, doc.PDFPath)
	})
}

func TestConvertDocument_Timeout(t *testing.T) {
	doc := setupDoc(t, "a.docx")
	conv := &fakeConverter{delay: time.Second}
	r := NewRunner(conv, nil, nil, Options{Timeout: 20 * time.Millisecond})

	rec := r.ConvertDocument(context.Background(), doc)

	assert.Equal(t, types.StatusFailed, rec.Status)
	assert.Contains(t, rec.Error, "timed out")
	assert.NoFileExists(t, doc.PDFPath)
}

func TestConvertDocument_RecordsToLedger(t *testing.T) {
	doc := setupDoc(t, "a.docx")
	led := &fakeLedger{}
	r := NewRunner(&fakeConverter{}, nil, nil, Options{RunID: "r"}).WithLedger(led)

	r.ConvertDocument(context.Background(), doc)

	require.Len(t, led.records, 1)
	got := led.records[0]
	assert.Equal(t, types.StatusConverted, got.Status)
	assert.Equal(t, "r", got.RunID)
	assert.Equal(t, doc.SourcePath, got.SourcePath)
	assert.Equal(t, doc.Size, got.SourceSize)
}

// setupBatch creates n documents sharing one input tree.
func setupBatch(t *testing.T, names ...string) []types.Document {
	t.Helper()
	root := t.TempDir()
	var docs []types.Document
	for _, name := range names {
		src := filepath.Join(root, "in", name)
		require.NoError(t, os.MkdirAll(filepath.Dir(src), 0o755))
		require.NoError(t, os.WriteFile(src, []byte("docx"), 0o644))
		info, err := os.Stat(src)
		require.NoError(t, err)
		docs = append(docs, types.Document{
			SourcePath: src,
			RelPath:    name,
			PDFPath:    filepath.Join(root, "out", strings.TrimSuffix(name, filepath.Ext(name))+".pdf"),
			Size:       info.Size(),
			ModTime:    info.ModTime(),
		})
	}
	return docs
}

// failingFor fails documents whose base name is listed.
type failingFor struct {
	fakeConverter
	fail map[string]bool
}

func (f *failingFor) Convert(ctx context.Context, src, dst string) error {
	if f.fail[filepath.Base(src)] {
		f.calls.Add(1)
		return errors.New("cannot open")
	}
	return f.fakeConverter.Convert(ctx, src, dst)
}

func TestConvertBatch(t *testing.T) {
	docs := setupBatch(t, "a.docx", "b.doc", filepath.Join("x", "c.docx"))
	// Pre-create an up-to-date PDF for a.docx.
	require.NoError(t, os.MkdirAll(filepath.Dir(docs[0].PDFPath), 0o755))
	require.NoError(t, os.WriteFile(docs[0].PDFPath, []byte("pdf"), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(docs[0].PDFPath, future, future))

	conv := &failingFor{fail: map[string]bool{"b.doc": true}}
	var buf bytes.Buffer
	result, err := NewRunner(conv, &buf, nil, Options{Workers: 2}).ConvertBatch(context.Background(), docs)

	require.NoError(t, err)
	assert.Equal(t, 1, result.Converted)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 3, result.Total())
	assert.True(t, result.HasFailures())
	require.Len(t, result.Failures(), 1)
	assert.Equal(t, "b.doc", result.Failures()[0].RelPath)

	require.Len(t, result.Records, 3)
	for i, rec := range result.Records {
		assert.Equal(t, docs[i].SourcePath, rec.SourcePath, "records keep input order")
	}

	assert.Contains(t, buf.String(), "Batch summary: 1 converted, 1 skipped, 1 failed (total: 3)")
	assert.FileExists(t, filepath.Join(filepath.Dir(docs[0].PDFPath), "x", "c.pdf"))
}

func TestConvertBatch_SameStemDifferentExtensions(t *testing.T) {
	in := t.TempDir()
	out := filepath.Join(t.TempDir(), "out")
	require.NoError(t, os.WriteFile(filepath.Join(in, "report.doc"), []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "report.docx"), []byte("new"), 0o644))

	docs, err := scan.Plan(context.Background(), in, out, scan.Options{})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	var buf bytes.Buffer
	result, err := NewRunner(&fakeConverter{}, &buf, nil, Options{Workers: 2}).ConvertBatch(context.Background(), docs)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Converted, buf.String())
	assert.Equal(t, 0, result.Skipped)
	assert.NotContains(t, buf.String(), "up to date")
	assert.FileExists(t, filepath.Join(out, "report.doc.pdf"))
	assert.FileExists(t, filepath.Join(out, "report.docx.pdf"))
	assert.NoFileExists(t, filepath.Join(out, "report.pdf"))
}

func TestConvertBatch_Observer(t *testing.T) {
	docs := setupBatch(t, "a.docx", "b.docx", "c.docx", "d.docx")
	var (
		mu     sync.Mutex
		events []Event
	)
	r := NewRunner(&fakeConverter{}, nil, nil, Options{Workers: 3}).WithObserver(func(e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})

	_, err := r.ConvertBatch(context.Background(), docs)
	require.NoError(t, err)

	require.Len(t, events, 4)
	for i, e := range events {
		assert.Equal(t, i+1, e.Done)
		assert.Equal(t, 4, e.Total)
		assert.Equal(t, types.StatusConverted, e.Record.Status)
	}
}

func TestConvertBatch_Workers(t *testing.T) {
	tests := []struct {
		name      string
		workers   int
		exclusive bool
		wantMax   int32
	}{
		{name: "default is sequential", workers: 0, wantMax: 1},
		{name: "exclusive forces one", workers: 4, exclusive: true, wantMax: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := setupBatch(t, "a.docx", "b.docx", "c.docx")
			conv := &fakeConverter{delay: 10 * time.Millisecond, exclusive: tt.exclusive}
			r := NewRunner(conv, nil, nil, Options{Workers: tt.workers})

			_, err := r.ConvertBatch(context.Background(), docs)
			require.NoError(t, err)
			assert.Equal(t, int(tt.wantMax), r.Workers())
			assert.LessOrEqual(t, conv.maxSeen.Load(), tt.wantMax)
		})
	}
}

func TestConvertBatch_Cancelled(t *testing.T) {
	docs := setupBatch(t, "a.docx", "b.docx")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	conv := &fakeConverter{}
	result, err := NewRunner(conv, nil, nil, Options{}).ConvertBatch(ctx, docs)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, result.Converted)
	assert.Zero(t, conv.calls.Load())
}

func TestConvertBatch_SettleDelay(t *testing.T) {
	docs := setupBatch(t, "a.docx", "b.docx")
	start := time.Now()
	_, err := NewRunner(&fakeConverter{}, nil, nil, Options{SettleDelay: 30 * time.Millisecond}).
		ConvertBatch(context.Background(), docs)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestBatchResult(t *testing.T) {
	var r BatchResult
	assert.Equal(t, 0, r.Total())
	assert.False(t, r.HasFailures())

	r.add(types.ConversionRecord{Status: types.StatusPending})
	r.add(types.ConversionRecord{Status: types.StatusFailed})
	assert.Equal(t, 1, r.Planned)
	assert.Equal(t, 2, r.Total())
	assert.True(t, r.HasFailures())
}
