// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/word2pdf/internal/ledger"
	"github.com/pdiddy/word2pdf/pkg/types"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show past conversion runs and their documents",
	Long: `History reads the conversion ledger. Without flags it lists recent runs;
with --run it lists the documents of one run, and --status filters them
(converted, skipped, failed).`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var historyExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export conversion history to YAML or JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryExport,
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	runID, _ := cmd.Flags().GetString("run")
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	led, err := ledger.Open(loadConfig(cmd).Ledger)
	if err != nil {
		return err
	}
	defer led.Close()

	if runID == "" && status == "" {
		runs, err := led.Runs(ctx, limit)
		if err != nil {
			return err
		}
		return formatRuns(out, runs, jsonOutput)
	}

	records, err := led.History(ctx, ledger.HistoryOptions{
		RunID:  runID,
		Status: types.ConversionStatus(status),
		Limit:  limit,
	})
	if err != nil {
		return err
	}
	return formatRecords(out, records, jsonOutput)
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")
	runID, _ := cmd.Flags().GetString("run")
	status, _ := cmd.Flags().GetString("status")
	path := args[0]
	if format == "" {
		format = "yaml"
		if strings.HasSuffix(strings.ToLower(path), ".json") {
			format = "json"
		}
	}

	led, err := ledger.Open(loadConfig(cmd).Ledger)
	if err != nil {
		return err
	}
	defer led.Close()

	opts := ledger.HistoryOptions{RunID: runID, Status: types.ConversionStatus(status)}
	switch format {
	case "yaml":
		err = led.ExportYAML(cmd.Context(), opts, path)
	case "json":
		err = led.ExportJSON(cmd.Context(), opts, path)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
	return nil
}

func formatRuns(out io.Writer, runs []types.Run, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No conversion runs recorded.")
		return nil
	}

	fmt.Fprintf(out, "%-36s  %-19s  %-9s  %5s  %5s  %5s  %s\n",
		"Run", "Started", "Backend", "Conv", "Skip", "Fail", "Input")
	fmt.Fprintln(out, strings.Repeat("-", 110))
	for _, r := range runs {
		fmt.Fprintf(out, "%-36s  %-19s  %-9s  %5d  %5d  %5d  %s\n",
			r.ID, r.StartedAt.Local().Format(time.DateTime), r.Backend,
			r.Converted, r.Skipped, r.Failed, r.InputDir)
	}
	fmt.Fprintf(out, "\n%d runs\n", len(runs))
	return nil
}

func formatRecords(out io.Writer, records []types.ConversionRecord, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	if len(records) == 0 {
		fmt.Fprintln(out, "No records found.")
		return nil
	}

	fmt.Fprintf(out, "%-9s  %-40s  %5s  %8s  %s\n", "Status", "Document", "Pages", "Time", "Detail")
	fmt.Fprintln(out, strings.Repeat("-", 100))
	for _, r := range records {
		doc := r.RelPath
		if len(doc) > 40 {
			doc = "..." + doc[len(doc)-37:]
		}
		detail := r.Error
		if detail == "" {
			detail = r.Reason
		}
		fmt.Fprintf(out, "%-9s  %-40s  %5d  %8s  %s\n",
			r.Status, doc, r.Pages, r.Duration.Round(10*time.Millisecond), detail)
	}
	fmt.Fprintf(out, "\n%d records\n", len(records))
	return nil
}

func init() {
	historyCmd.Flags().String("run", "", "list the documents of this run ID")
	historyCmd.Flags().String("status", "", "filter documents by status: converted, skipped, failed")
	historyCmd.Flags().Int("limit", 0, "maximum rows (0 = default 50)")
	historyCmd.Flags().Bool("json", false, "output as JSON")

	historyExportCmd.Flags().String("format", "", "export format: yaml or json (default from file extension)")
	historyExportCmd.Flags().String("run", "", "export only this run")
	historyExportCmd.Flags().String("status", "", "export only documents with this status")

	historyCmd.AddCommand(historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}
