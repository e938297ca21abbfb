// Package verify checks that a converted PDF is usable: present, non-empty,
// within the size limit, readable, and with at least one page.
package verify

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DefaultMaxSize is the largest PDF accepted when no limit is configured.
const DefaultMaxSize = 512 * 1024 * 1024

// ErrNoPages is returned for PDFs that parse but contain no pages.
var ErrNoPages = errors.New("PDF has no pages")

// Verifier validates converted PDFs.
type Verifier struct {
	maxSize int64
	strict  bool
}

// New creates a Verifier. A maxSize of zero or less uses DefaultMaxSize.
// Strict mode additionally runs pdfcpu's relaxed structural validation.
func New(maxSize int64, strict bool) *Verifier {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Verifier{maxSize: maxSize, strict: strict}
}

// Verify validates the PDF at path and returns its page count.
func (v *Verifier) Verify(path string) (int, error) {
	if err := v.checkFile(path); err != nil {
		return 0, err
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("invalid PDF file %s: %w", path, err)
	}
	defer f.Close()

	pages := r.NumPage()
	if pages < 1 {
		return 0, fmt.Errorf("%s: %w", path, ErrNoPages)
	}

	if v.strict {
		conf := model.NewDefaultConfiguration()
		conf.ValidationMode = model.ValidationRelaxed
		if err := api.ValidateFile(path, conf); err != nil {
			return 0, fmt.Errorf("PDF validation failed for %s: %w", path, err)
		}
	}

	return pages, nil
}

func (v *Verifier) checkFile(path string) error {
	if path == "" {
		return errors.New("path cannot be empty")
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("file does not exist: %s", path)
	}
	if err != nil {
		return fmt.Errorf("cannot access file: %w", err)
	}

	if info.IsDir() {
		return fmt.Errorf("path is a directory, not a file: %s", path)
	}
	if !strings.HasSuffix(strings.ToLower(path), ".pdf") {
		return fmt.Errorf("file is not a PDF: %s", path)
	}
	if info.Size() == 0 {
		return fmt.Errorf("file is empty: %s", path)
	}
	if info.Size() > v.maxSize {
		return fmt.Errorf("file too large: %d bytes (max: %d bytes)", info.Size(), v.maxSize)
	}
	return nil
}
