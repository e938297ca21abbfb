// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	goruntime "runtime"
	"strings"

	"github.com/pdiddy/word2pdf/pkg/types"
)

// SofficeConverter converts documents with a locally installed LibreOffice
// running headless. Each conversion uses its own throwaway user profile so
// several can run at once.
type SofficeConverter struct {
	bin  string
	exec executor
}

// sofficeCandidates lists binaries tried when no path is configured.
func sofficeCandidates() []string {
	c := []string{"soffice", "libreoffice"}
	switch goruntime.GOOS {
	case "windows":
		c = append(c,
			`C:\Program Files\LibreOffice\program\soffice.exe`,
			`C:\Program Files (x86)\LibreOffice\program\soffice.exe`)
	case "darwin":
		c = append(c, "/Applications/LibreOffice.app/Contents/MacOS/soffice")
	}
	return c
}

// NewSofficeConverter locates the soffice binary, honouring cfg.SofficePath.
func NewSofficeConverter(cfg types.OfficeConfig) (*SofficeConverter, error) {
	return newSofficeConverter(cfg, defaultExec)
}

func newSofficeConverter(cfg types.OfficeConfig, exec executor) (*SofficeConverter, error) {
	candidates := sofficeCandidates()
	if cfg.SofficePath != "" {
		candidates = []string{cfg.SofficePath}
	}
	for _, c := range candidates {
		if p, err := exec.LookPath(c); err == nil {
			return &SofficeConverter{bin: p, exec: exec}, nil
		}
	}
	return nil, fmt.Errorf("%w: LibreOffice (soffice) not found, tried %s",
		ErrBackendUnavailable, strings.Join(candidates, ", "))
}

func (s *SofficeConverter) Name() string { return string(types.BackendSoffice) }

// Convert runs soffice --convert-to pdf into a scratch directory next to dst
// and moves the result into place.
func (s *SofficeConverter) Convert(ctx context.Context, src, dst string) error {
	work, err := workDir(dst)
	if err != nil {
		return err
	}
	defer os.RemoveAll(work)

	outDir := filepath.Join(work, "out")
	args := []string{
		"--headless", "--norestore", "--nolockcheck", "--nologo", "--nodefault",
		"-env:UserInstallation=" + fileURL(filepath.Join(work, "profile")),
		"--convert-to", "pdf",
		"--outdir", outDir,
		src,
	}

	out, err := s.exec.Run(ctx, s.bin, args...)
	if err != nil {
		return fmt.Errorf("soffice converting %s: %w: %s", filepath.Base(src), err, tail(out))
	}
	if err := placePDF(filepath.Join(outDir, pdfName(src)), dst); err != nil {
		// soffice exits 0 on many load failures; its output says why.
		return fmt.Errorf("soffice converting %s: %w: %s", filepath.Base(src), err, tail(out))
	}
	return nil
}

// fileURL renders an absolute path as a file:// URL, which is the form
// LibreOffice expects for -env:UserInstallation.
func fileURL(path string) string {
	p := filepath.ToSlash(path)
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Scheme: "file", Path: p}).String()
}
