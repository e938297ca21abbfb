// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/word2pdf/pkg/types"
)

const exportLimit = 100000

// Export holds the runs and conversion records written by ExportYAML and
// ExportJSON.
type Export struct {
	Runs        []types.Run              `json:"runs" yaml:"runs"`
	Conversions []types.ConversionRecord `json:"conversions" yaml:"conversions"`
}

// ExportYAML writes the history matching opts to path as YAML.
func (l *Ledger) ExportYAML(ctx context.Context, opts HistoryOptions, path string) error {
	exp, err := l.export(ctx, opts)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(exp)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	return writeExport(path, data)
}

// ExportJSON writes the history matching opts to path as indented JSON.
func (l *Ledger) ExportJSON(ctx context.Context, opts HistoryOptions, path string) error {
	exp, err := l.export(ctx, opts)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	return writeExport(path, data)
}

func (l *Ledger) export(ctx context.Context, opts HistoryOptions) (Export, error) {
	if opts.Limit <= 0 {
		opts.Limit = exportLimit
	}
	records, err := l.History(ctx, opts)
	if err != nil {
		return Export{}, fmt.Errorf("querying for export: %w", err)
	}

	runs, err := l.Runs(ctx, exportLimit)
	if err != nil {
		return Export{}, fmt.Errorf("querying runs for export: %w", err)
	}
	if opts.RunID != "" {
		filtered := runs[:0]
		for _, r := range runs {
			if r.ID == opts.RunID {
				filtered = append(filtered, r)
			}
		}
		runs = filtered
	}

	return Export{Runs: runs, Conversions: records}, nil
}

func writeExport(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating export directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing export %s: %w", path, err)
	}
	return nil
}
