// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package scan discovers Word documents under an input directory and maps
// each one to its PDF path in a mirrored output tree.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/pdiddy/word2pdf/pkg/types"
)

const (
	// outputSuffix is appended to the input directory name to form the
	// default output root.
	outputSuffix = "_pdf"
	// lockPrefix marks the owner files Word leaves next to open documents.
	lockPrefix = "~$"
)

// DefaultExtensions are the Word file extensions matched when none are configured.
var DefaultExtensions = []string{".docx", ".doc"}

// ErrNoDocuments is returned by Plan when the input tree holds no Word documents.
var ErrNoDocuments = errors.New("no Word documents found")

// Options tunes document discovery.
type Options struct {
	// Extensions overrides DefaultExtensions. Leading dots are optional.
	Extensions []string
	// Logger receives warnings about unreadable entries. Nil discards them.
	Logger *zap.Logger
}

// DefaultOutputDir returns the sibling directory "<name>_pdf" next to input.
func DefaultOutputDir(input string) string {
	clean := filepath.Clean(input)
	if abs, err := filepath.Abs(clean); err == nil {
		clean = abs
	}
	return filepath.Join(filepath.Dir(clean), filepath.Base(clean)+outputSuffix)
}

// Plan walks input recursively and returns one Document per Word file, in
// lexical path order. The output root is never descended into, so a PDF tree
// nested under the input is not rescanned. Unreadable entries below the root
// are logged and skipped. Documents whose PDF paths would collide keep their
// source extension in the PDF name (see disambiguate). Plan returns
// ErrNoDocuments when nothing matches.
func Plan(ctx context.Context, input, output string, opts Options) ([]types.Document, error) {
	root, out, err := resolveRoots(input, output)
	if err != nil {
		return nil, err
	}
	exts := NormalizeExtensions(opts.Extensions)
	logger := opts.logger()

	var docs []types.Document
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			if path == root {
				return fmt.Errorf("accessing %s: %w", path, err)
			}
			logger.Warn("skipping unreadable path", zap.String("path", path), zap.Error(err))
			if d == nil || d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path != root && path == out {
				return filepath.SkipDir
			}
			return nil
		}

		if !Matches(d.Name(), exts) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logger.Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
			return nil
		}
		doc, err := newDocument(root, out, path, info)
		if err != nil {
			return err
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, root)
	}
	for _, rel := range disambiguate(docs, out) {
		logger.Info("pdf name keeps source extension", zap.String("document", rel))
	}
	return docs, nil
}

// DocumentFor builds the Document for a single file under input. It does not
// check the extension; callers filter with Matches first. The PDF path is
// chosen the same way Plan chooses it, so a file sharing its stem with a
// sibling document keeps its source extension.
func DocumentFor(input, output, path string, opts Options) (types.Document, error) {
	root, out, err := resolveRoots(input, output)
	if err != nil {
		return types.Document{}, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return types.Document{}, fmt.Errorf("resolving %s: %w", path, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return types.Document{}, fmt.Errorf("reading file info for %s: %w", abs, err)
	}
	if info.IsDir() {
		return types.Document{}, fmt.Errorf("%s is a directory", abs)
	}
	doc, err := newDocument(root, out, abs, info)
	if err != nil {
		return types.Document{}, err
	}

	siblings, err := siblingDocuments(root, out, abs, NormalizeExtensions(opts.Extensions))
	if err != nil {
		opts.logger().Warn("listing siblings", zap.String("path", abs), zap.Error(err))
		return doc, nil
	}
	docs := append(siblings, doc)
	disambiguate(docs, out)
	return docs[len(docs)-1], nil
}

// siblingDocuments returns the other matching documents in the directory of
// path. Collisions can only occur within one directory because the output
// tree mirrors the input tree.
func siblingDocuments(root, out, path string, exts []string) ([]types.Document, error) {
	dir := filepath.Dir(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var docs []types.Document
	for _, e := range entries {
		full := filepath.Join(dir, e.Name())
		if e.IsDir() || full == path || !Matches(e.Name(), exts) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		doc, err := newDocument(root, out, full, info)
		if err != nil {
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// disambiguate rewrites the PDF path of every document whose default PDF path
// collides with another one, so "report.doc" and "report.docx" become
// "report.doc.pdf" and "report.docx.pdf". Paths compare case-insensitively
// because Windows and macOS filesystems do. It repeats until no collision is
// left and returns the relative paths it renamed, sorted.
func disambiguate(docs []types.Document, out string) []string {
	renamed := map[string]bool{}
	for {
		groups := map[string][]int{}
		for i, d := range docs {
			key := strings.ToLower(d.PDFPath)
			groups[key] = append(groups[key], i)
		}
		changed := false
		for _, idx := range groups {
			if len(idx) < 2 {
				continue
			}
			for _, i := range idx {
				if renamed[docs[i].RelPath] {
					continue
				}
				docs[i].PDFPath = filepath.Join(out, docs[i].RelPath+".pdf")
				renamed[docs[i].RelPath] = true
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	rels := make([]string, 0, len(renamed))
	for rel := range renamed {
		rels = append(rels, rel)
	}
	slices.Sort(rels)
	return rels
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Matches reports whether name is a Word document with one of exts, which
// must already be normalized.
// Word lock files ("~$name.docx") never match.
func Matches(name string, exts []string) bool {
	if strings.HasPrefix(name, lockPrefix) {
		return false
	}
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// PDFPath maps a path relative to the input root onto the output root,
// replacing the extension with ".pdf".
func PDFPath(output, relPath string) string {
	base := strings.TrimSuffix(relPath, filepath.Ext(relPath))
	return filepath.Join(output, base+".pdf")
}

func newDocument(root, out, path string, info fs.FileInfo) (types.Document, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return types.Document{}, fmt.Errorf("relative path of %s: %w", path, err)
	}
	if strings.HasPrefix(rel, "..") {
		return types.Document{}, fmt.Errorf("%s is outside %s", path, root)
	}
	return types.Document{
		SourcePath: path,
		RelPath:    rel,
		PDFPath:    PDFPath(out, rel),
		Size:       info.Size(),
		ModTime:    info.ModTime(),
	}, nil
}

// resolveRoots returns absolute input and output roots, validating that the
// input is a directory and defaulting the output.
func resolveRoots(input, output string) (string, string, error) {
	if input == "" {
		return "", "", errors.New("input directory is empty")
	}
	root, err := filepath.Abs(input)
	if err != nil {
		return "", "", fmt.Errorf("resolving %s: %w", input, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", "", fmt.Errorf("input directory %s: %w", root, err)
	}
	if !info.IsDir() {
		return "", "", fmt.Errorf("input %s is not a directory", root)
	}

	if output == "" {
		return root, DefaultOutputDir(root), nil
	}
	out, err := filepath.Abs(output)
	if err != nil {
		return "", "", fmt.Errorf("resolving %s: %w", output, err)
	}
	if out == root {
		return "", "", fmt.Errorf("output directory must differ from input %s", root)
	}
	return root, out, nil
}

// NormalizeExtensions lowercases exts and ensures a leading dot, falling back
// to DefaultExtensions when none remain.
func NormalizeExtensions(exts []string) []string {
	if len(exts) == 0 {
		return DefaultExtensions
	}
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	if len(out) == 0 {
		return DefaultExtensions
	}
	return out
}
