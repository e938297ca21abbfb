// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pdiddy/word2pdf/internal/convert"
)

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "Show which conversion engines are available",
	Long: `Backends checks every conversion engine in auto-detection order (word,
soffice, gotenberg, container) and reports whether it can be used here.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig(cmd)
		jsonOutput, _ := cmd.Flags().GetBool("json")
		return formatBackends(cmd.OutOrStdout(), convert.Probe(cmd.Context(), cfg), jsonOutput)
	},
}

func init() {
	backendsCmd.Flags().Bool("json", false, "output as JSON")
	rootCmd.AddCommand(backendsCmd)
}

func formatBackends(out io.Writer, statuses []convert.BackendStatus, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(statuses)
	}
	for _, st := range statuses {
		state := "unavailable"
		if st.Available {
			state = "available"
		}
		line := fmt.Sprintf("%-10s  %-11s", st.Backend, state)
		if st.Detail != "" {
			line += "  " + st.Detail
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
