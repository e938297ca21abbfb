//go:build !windows

package convert

import (
	"context"
	"fmt"
	"runtime"

	"github.com/pdiddy/word2pdf/pkg/types"
)

// WordConverter is unavailable outside Windows.
type WordConverter struct{}

// NewWordConverter always fails on this platform.
func NewWordConverter() (*WordConverter, error) {
	return nil, fmt.Errorf("%w: Word automation requires Windows (running on %s)", ErrBackendUnavailable, runtime.GOOS)
}

func (w *WordConverter) Name() string { return string(types.BackendWord) }

func (w *WordConverter) Exclusive() bool { return true }

func (w *WordConverter) Convert(ctx context.Context, src, dst string) error {
	return fmt.Errorf("%w: Word automation requires Windows", ErrBackendUnavailable)
}
