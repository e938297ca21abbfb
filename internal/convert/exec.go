// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	// Run executes name with args and returns combined stdout and stderr.
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

var defaultExec executor = &osExecutor{}

// workDir creates a scratch directory next to dst so the finished PDF can be
// renamed into place on the same filesystem.
func workDir(dst string) (string, error) {
	dir, err := os.MkdirTemp(filepath.Dir(dst), ".word2pdf-*")
	if err != nil {
		return "", fmt.Errorf("creating work directory: %w", err)
	}
	return dir, nil
}

// placePDF moves a produced PDF to dst, replacing any previous file.
func placePDF(produced, dst string) error {
	info, err := os.Stat(produced)
	if err != nil {
		return fmt.Errorf("no PDF produced: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("empty PDF produced at %s", produced)
	}
	if err := os.Rename(produced, dst); err != nil {
		return fmt.Errorf("moving PDF into place: %w", err)
	}
	return nil
}

// pdfName returns the file name office engines give the PDF of src.
func pdfName(src string) string {
	base := filepath.Base(src)
	return strings.TrimSuffix(base, filepath.Ext(base)) + ".pdf"
}

// tail returns the last line of tool output, for error messages.
func tail(out []byte) string {
	s := strings.TrimSpace(string(out))
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	const limit = 300
	if len(s) > limit {
		s = s[len(s)-limit:]
	}
	return s
}
