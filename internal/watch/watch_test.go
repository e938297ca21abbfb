package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/pdiddy/word2pdf/pkg/types"
)

func startWatcher(t *testing.T, input, output string) (*Watcher, <-chan types.Document) {
	t.Helper()
	docs := make(chan types.Document, 16)
	w, err := New(input, output, Options{Debounce: 50 * time.Millisecond, Tick: 10 * time.Millisecond},
		func(_ context.Context, doc types.Document) { docs <- doc }, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	return w, docs
}

func waitDoc(t *testing.T, docs <-chan types.Document) types.Document {
	t.Helper()
	select {
	case d := <-docs:
		return d
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for document")
		return types.Document{}
	}
}

func assertQuiet(t *testing.T, docs <-chan types.Document) {
	t.Helper()
	select {
	case d := <-docs:
		t.Fatalf("unexpected document %s", d.RelPath)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	defer goleak.VerifyNone(t)

	in := t.TempDir()
	w, docs := startWatcher(t, in, "")
	defer w.Stop()

	src := filepath.Join(in, "notes.docx")
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(src, []byte{byte(i)}, 0o644))
	}

	doc := waitDoc(t, docs)
	assert.Equal(t, src, doc.SourcePath)
	assert.Equal(t, "notes.docx", doc.RelPath)
	assert.Equal(t, filepath.Join(filepath.Dir(in), filepath.Base(in)+"_pdf", "notes.pdf"), doc.PDFPath)
	assertQuiet(t, docs)

	w.Stop()
	st := w.Stats()
	assert.Equal(t, 1, st.Handled)
	assert.Equal(t, src, st.LastPath)
}

func TestWatcher_IgnoresOutputAndNonDocuments(t *testing.T) {
	defer goleak.VerifyNone(t)

	in := t.TempDir()
	out := filepath.Join(in, "pdf")
	require.NoError(t, os.MkdirAll(out, 0o755))
	w, docs := startWatcher(t, in, out)
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(out, "inside-output.docx"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "~$lock.docx"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "readme.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(in, "real.DOC"), []byte("x"), 0o644))

	doc := waitDoc(t, docs)
	assert.Equal(t, "real.DOC", doc.RelPath)
	assertQuiet(t, docs)
}

func TestWatcher_NewDirectory(t *testing.T) {
	defer goleak.VerifyNone(t)

	in := t.TempDir()
	w, docs := startWatcher(t, in, "")
	defer w.Stop()

	sub := filepath.Join(in, "2024", "q1")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "plan.docx"), []byte("x"), 0o644))

	doc := waitDoc(t, docs)
	assert.Equal(t, filepath.Join("2024", "q1", "plan.docx"), doc.RelPath)
}

func TestWatcher_StopIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	in := t.TempDir()
	w, _ := startWatcher(t, in, "")
	w.Stop()
	w.Stop()
}

func TestNew_Errors(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "a.docx")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))
	noop := func(context.Context, types.Document) {}

	tests := []struct {
		name    string
		input   string
		handler Handler
		wantErr string
	}{
		{name: "missing input", input: filepath.Join(dir, "nope"), handler: noop, wantErr: "input directory"},
		{name: "input is a file", input: file, handler: noop, wantErr: "not a directory"},
		{name: "nil handler", input: dir, wantErr: "handler is nil"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.input, "", Options{}, tt.handler, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNew_Defaults(t *testing.T) {
	w, err := New(t.TempDir(), "", Options{}, func(context.Context, types.Document) {}, nil)
	require.NoError(t, err)
	defer w.Stop()

	assert.Equal(t, DefaultDebounce, w.debounce)
	assert.Equal(t, 250*time.Millisecond, w.tick)
	assert.Equal(t, []string{".docx", ".doc"}, w.exts)
}

func TestWatcher_ConcurrentStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	in := t.TempDir()
	w, err := New(in, "", Options{Debounce: 50 * time.Millisecond, Tick: 10 * time.Millisecond},
		func(context.Context, types.Document) {}, zap.NewNop())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = w.Start(context.Background())
		}()
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}

	// A second event loop would be left running and fail goleak.
	w.Stop()
}

func TestWatcher_CollidingStemsKeepExtension(t *testing.T) {
	defer goleak.VerifyNone(t)

	in := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(in, "report.doc"), []byte("old"), 0o644))
	w, docs := startWatcher(t, in, "")
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(in, "report.docx"), []byte("new"), 0o644))

	doc := waitDoc(t, docs)
	assert.Equal(t, "report.docx", doc.RelPath)
	assert.Equal(t, "report.docx.pdf", filepath.Base(doc.PDFPath))
}
