// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build windows

package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	ole "github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	"github.com/pdiddy/word2pdf/pkg/types"
)

const (
	wordProgID         = "Word.Application"
	wdFormatPDF        = 17
	wdDoNotSaveChanges = 0
	wdAlertsNone       = 0
)

// WordConverter drives Microsoft Word through COM automation. Every
// conversion starts and quits its own Word instance.
type WordConverter struct{}

// NewWordConverter checks that Word is registered on this machine.
func NewWordConverter() (*WordConverter, error) {
	if _, err := ole.CLSIDFromProgID(wordProgID); err != nil {
		return nil, fmt.Errorf("%w: %s not registered: %v", ErrBackendUnavailable, wordProgID, err)
	}
	return &WordConverter{}, nil
}

func (w *WordConverter) Name() string { return string(types.BackendWord) }

// Exclusive reports that Word must not run concurrently with itself.
func (w *WordConverter) Exclusive() bool { return true }

// Convert opens src invisibly, saves it as PDF and quits Word. COM calls
// cannot be interrupted, so ctx is only checked before Word starts.
func (w *WordConverter) Convert(ctx context.Context, src, dst string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED); err != nil {
		var oleErr *ole.OleError
		// S_FALSE: already initialised on this thread.
		if !errors.As(err, &oleErr) || oleErr.Code() != 1 {
			return fmt.Errorf("initialising COM: %w", err)
		}
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject(wordProgID)
	if err != nil {
		return fmt.Errorf("%w: starting Word: %v", ErrBackendUnavailable, err)
	}
	defer unknown.Release()

	word, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return fmt.Errorf("querying Word dispatch: %w", err)
	}
	defer word.Release()
	defer func() {
		if _, qerr := oleutil.CallMethod(word, "Quit"); qerr != nil && err == nil {
			err = fmt.Errorf("quitting Word: %w", qerr)
		}
	}()

	if _, err := oleutil.PutProperty(word, "Visible", false); err != nil {
		return fmt.Errorf("hiding Word: %w", err)
	}
	if _, err := oleutil.PutProperty(word, "DisplayAlerts", wdAlertsNone); err != nil {
		return fmt.Errorf("disabling alerts: %w", err)
	}

	docs, err := oleutil.GetProperty(word, "Documents")
	if err != nil {
		return fmt.Errorf("getting Documents: %w", err)
	}
	defer docs.Clear()

	absSrc, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	// Open(FileName, ConfirmConversions, ReadOnly)
	opened, err := oleutil.CallMethod(docs.ToIDispatch(), "Open", absSrc, false, true)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filepath.Base(src), err)
	}
	defer opened.Clear()
	doc := opened.ToIDispatch()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".word2pdf-*.pdf")
	if err != nil {
		oleutil.CallMethod(doc, "Close", wdDoNotSaveChanges)
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	os.Remove(tmpPath)
	defer os.Remove(tmpPath)

	if _, err := oleutil.CallMethod(doc, "SaveAs", tmpPath, wdFormatPDF); err != nil {
		oleutil.CallMethod(doc, "Close", wdDoNotSaveChanges)
		return fmt.Errorf("saving %s as PDF: %w", filepath.Base(src), err)
	}
	if _, err := oleutil.CallMethod(doc, "Close", wdDoNotSaveChanges); err != nil {
		return fmt.Errorf("closing %s: %w", filepath.Base(src), err)
	}

	return placePDF(tmpPath, dst)
}
