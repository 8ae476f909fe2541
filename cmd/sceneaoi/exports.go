package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"sceneaoi/internal/export"
)

var (
	exportsLimit int
	exportsJSON  bool
)

var exportsCmd = &cobra.Command{
	Use:   "exports",
	Short: "List recorded exports, newest first",
	Args:  cobra.NoArgs,
	RunE:  runExports,
}

func init() {
	exportsCmd.Flags().IntVarP(&exportsLimit, "limit", "n", 20, "maximum number of records, 0 for all")
	exportsCmd.Flags().BoolVar(&exportsJSON, "json", false, "print JSON instead of a table")
	rootCmd.AddCommand(exportsCmd)
}

func runExports(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	ledger, err := export.OpenLedger(ctx, cfg.ExportDBPath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	recs, err := ledger.List(ctx, exportsLimit)
	if err != nil {
		return err
	}
	if exportsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(recs)
	}
	if len(recs) == 0 {
		fmt.Println("no exports recorded")
		return nil
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		Headers("ID", "CREATED", "FEATURES", "AOI", "ORIGIN", "PATH")
	for _, r := range recs {
		origin := "-"
		if r.Origin != nil {
			origin = r.Origin.String()
		}
		t.Row(
			short(r.ID, 8),
			r.CreatedAt.Local().Format(time.DateTime),
			strconv.Itoa(r.FeatureCount),
			short(r.AOI, 32),
			origin,
			r.Path,
		)
	}
	fmt.Println(t.Render())
	return nil
}

func short(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
