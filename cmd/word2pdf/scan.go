package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/word2pdf/internal/scan"
	"github.com/pdiddy/word2pdf/pkg/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan <input-dir>",
	Short: "List the Word documents a conversion would process",
	Long: `Scan walks input-dir like convert does and lists every Word document with
the PDF it maps to. Documents whose PDF is already up to date are marked.
Nothing is converted.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringP("output-dir", "o", "", `output root (default "<input-dir>_pdf" next to the input)`)
	scanCmd.Flags().Bool("json", false, "output the plan as JSON")

	rootCmd.AddCommand(scanCmd)
}

// scanEntry is one planned document in scan output.
type scanEntry struct {
	types.Document
	UpToDate bool `json:"up_to_date"`
}

func runScan(cmd *cobra.Command, args []string) error {
	cfg := loadConfig(cmd)
	out := cmd.OutOrStdout()
	jsonOutput, _ := cmd.Flags().GetBool("json")

	input, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}
	output := outputRoot(input, cfg.Conversion.OutputDir)

	docs, err := scan.Plan(cmd.Context(), input, output, scan.Options{Extensions: cfg.Scan.Extensions, Logger: logger})
	if err != nil && !errors.Is(err, scan.ErrNoDocuments) {
		return err
	}

	entries := make([]scanEntry, 0, len(docs))
	for _, d := range docs {
		entries = append(entries, scanEntry{Document: d, UpToDate: pdfCurrent(d)})
	}
	return formatScanOutput(out, input, output, entries, jsonOutput)
}

// pdfCurrent reports whether the PDF exists and is not older than the source.
func pdfCurrent(d types.Document) bool {
	info, err := os.Stat(d.PDFPath)
	return err == nil && !info.IsDir() && !info.ModTime().Before(d.ModTime)
}

func formatScanOutput(out io.Writer, input, output string, entries []scanEntry, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		fmt.Fprintf(out, "No Word documents found in %s\n", input)
		return nil
	}

	pending := 0
	for _, e := range entries {
		mark := " "
		if e.UpToDate {
			mark = "="
		} else {
			pending++
		}
		rel, err := filepath.Rel(output, e.PDFPath)
		if err != nil {
			rel = e.PDFPath
		}
		fmt.Fprintf(out, "%s %s -> %s\n", mark, e.RelPath, rel)
	}
	fmt.Fprintf(out, "\nFound %d Word documents (%d to convert, %d up to date)\nOutput folder: %s\n",
		len(entries), pending, len(entries)-pending, output)
	return nil
}
