// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/word2pdf/internal/httputil"
	"github.com/pdiddy/word2pdf/pkg/types"
)

const (
	gotenbergConvertPath = "/forms/libreoffice/convert"
	gotenbergHealthPath  = "/health"

	defaultGotenbergTimeout = 2 * time.Minute
	defaultUserAgent        = "word2pdf/0.1"
)

// GotenbergConverter converts documents by posting them to a Gotenberg
// service, which renders them with its bundled LibreOffice.
type GotenbergConverter struct {
	client *http.Client
	cfg    types.GotenbergConfig
}

// NewGotenbergConverter creates a converter for cfg.URL.
func NewGotenbergConverter(cfg types.GotenbergConfig) (*GotenbergConverter, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("%w: gotenberg URL not configured", ErrBackendUnavailable)
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultGotenbergTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	return &GotenbergConverter{
		client: &http.Client{Timeout: cfg.Timeout},
		cfg:    cfg,
	}, nil
}

func (g *GotenbergConverter) Name() string { return string(types.BackendGotenberg) }

// Ping checks the service health endpoint.
func (g *GotenbergConverter) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.URL+gotenbergHealthPath, nil)
	if err != nil {
		return err
	}
	g.decorate(req)
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: gotenberg at %s: %v", ErrBackendUnavailable, g.cfg.URL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: gotenberg health returned %s", ErrBackendUnavailable, resp.Status)
	}
	return nil
}

// Convert uploads src and writes the returned PDF to dst.
func (g *GotenbergConverter) Convert(ctx context.Context, src, dst string) error {
	body, contentType, err := multipartFile(src)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.URL+gotenbergConvertPath, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	g.decorate(req)

	resp, err := httputil.DoWithRetry(ctx, g.client, req, g.cfg.MaxRetries)
	if err != nil {
		return fmt.Errorf("posting %s to gotenberg: %w", filepath.Base(src), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("gotenberg returned %s for %s: %s", resp.Status, filepath.Base(src), strings.TrimSpace(string(msg)))
	}

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".word2pdf-*.pdf")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return fmt.Errorf("reading gotenberg response: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", tmpPath, err)
	}
	return placePDF(tmpPath, dst)
}

func (g *GotenbergConverter) decorate(req *http.Request) {
	req.Header.Set("User-Agent", g.cfg.UserAgent)
	if g.cfg.Username != "" {
		req.SetBasicAuth(g.cfg.Username, g.cfg.Password)
	}
}

// multipartFile builds a multipart body with src in the "files" field.
func multipartFile(src string) ([]byte, string, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, "", fmt.Errorf("opening %s: %w", src, err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("files", filepath.Base(src))
	if err != nil {
		return nil, "", fmt.Errorf("building form: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, "", fmt.Errorf("reading %s: %w", src, err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("building form: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
