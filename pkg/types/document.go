// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for word2pdf: the planned
// documents, conversion records, and configuration.
package types

import (
	"path/filepath"
	"time"
)

// ConversionStatus is the outcome of converting one document.
type ConversionStatus string

const (
	StatusPending   ConversionStatus = "pending"
	StatusConverted ConversionStatus = "converted"
	StatusSkipped   ConversionStatus = "skipped"
	StatusFailed    ConversionStatus = "failed"
)

// Document is a Word file found under the input directory together with the
// PDF path it maps to in the mirrored output tree.
type Document struct {
	// SourcePath is the absolute path of the Word file.
	SourcePath string `json:"source_path" yaml:"source_path"`

	// RelPath is SourcePath relative to the input directory.
	RelPath string `json:"rel_path" yaml:"rel_path"`

	// PDFPath is the absolute path of the PDF to produce.
	PDFPath string `json:"pdf_path" yaml:"pdf_path"`

	// Size is the source file size in bytes.
	Size int64 `json:"size" yaml:"size"`

	// ModTime is the source file modification time.
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
}

// Name returns the document's file name.
func (d Document) Name() string {
	return filepath.Base(d.SourcePath)
}

// ConversionRecord is the result of one conversion attempt.
type ConversionRecord struct {
	// RunID links the record to the batch run that produced it.
	RunID string `json:"run_id,omitempty" yaml:"run_id,omitempty"`

	SourcePath string `json:"source_path" yaml:"source_path"`
	RelPath    string `json:"rel_path" yaml:"rel_path"`
	PDFPath    string `json:"pdf_path" yaml:"pdf_path"`

	Status ConversionStatus `json:"status" yaml:"status"`

	// Backend names the converter that handled the document.
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty"`

	// Pages is the page count of the produced PDF, when verified.
	Pages int `json:"pages,omitempty" yaml:"pages,omitempty"`

	// Error holds the failure message. Empty unless Status is failed.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// Reason explains a skip (e.g. "up to date").
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	SourceModTime time.Time     `json:"source_mod_time" yaml:"source_mod_time"`
	SourceSize    int64         `json:"source_size" yaml:"source_size"`
	Duration      time.Duration `json:"duration" yaml:"duration"`
	FinishedAt    time.Time     `json:"finished_at" yaml:"finished_at"`
}

// Run summarises one batch conversion run.
type Run struct {
	ID         string    `json:"id" yaml:"id"`
	InputDir   string    `json:"input_dir" yaml:"input_dir"`
	OutputDir  string    `json:"output_dir" yaml:"output_dir"`
	Backend    string    `json:"backend" yaml:"backend"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
	Converted  int       `json:"converted" yaml:"converted"`
	Skipped    int       `json:"skipped" yaml:"skipped"`
	Failed     int       `json:"failed" yaml:"failed"`
}
