package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sceneaoi/internal/config"
	"sceneaoi/internal/export"
	"sceneaoi/internal/geom"
	"sceneaoi/internal/logx"
	"sceneaoi/internal/tui"
	"sceneaoi/internal/workflow"
)

var cfg = config.Load()

var rootCmd = &cobra.Command{
	Use:   "sceneaoi [scene-dir]",
	Short: "Select an area of interest over a local scene and export it",
	Long: `sceneaoi opens a scene directory (GeoJSON layers plus an optional
elevation.csv grid) in the terminal. Draw a rectangular area of interest,
place a model origin, inspect the features and ground under it, and export
the result as a GeoJSON bundle recorded in a local ledger.`,
	Version:      "0.1.0",
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runTUI,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfg.ScenePath, "scene", cfg.ScenePath, "scene directory")
	f.IntVar(&cfg.SceneWKID, "wkid", cfg.SceneWKID, "spatial reference of the scene coordinates")
	f.DurationVar(&cfg.QueryLatency, "latency", cfg.QueryLatency, "artificial latency added to every layer and ground request")
	f.StringVar(&cfg.ExportDir, "export-dir", cfg.ExportDir, "directory receiving export bundles")
	f.StringVar(&cfg.ExportDBPath, "db", cfg.ExportDBPath, "export ledger database")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	f.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "log file of interactive sessions")
	f.BoolVar(&cfg.Watch, "watch", cfg.Watch, "reload the scene when its files change")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// session is a workflow wired to its export ledger.
type session struct {
	wf     *workflow.Workflow
	ledger *export.Ledger
}

func (s *session) Close() {
	s.wf.Close()
	if s.ledger != nil {
		s.ledger.Close()
	}
}

func openSession(ctx context.Context, log *slog.Logger) (*session, error) {
	ledger, err := export.OpenLedger(ctx, cfg.ExportDBPath)
	if err != nil {
		return nil, err
	}
	wf := workflow.New(export.NewExporter(cfg.ExportDir, ledger, log), cfg.QueryLatency, log)
	s := &session{wf: wf, ledger: ledger}
	if _, err := wf.LoadScene(cfg.ScenePath, geom.SpatialReference(cfg.SceneWKID)); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func runTUI(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		cfg.ScenePath = args[0]
	}
	log, closer, err := logx.NewFile(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	s, err := openSession(ctx, log)
	cancel()
	if err != nil {
		return err
	}
	defer s.Close()

	log.Info("interactive session started", "scene", cfg.ScenePath, "wkid", cfg.SceneWKID)
	return tui.Run(s.wf, geom.SpatialReference(cfg.SceneWKID), log, cfg.Watch)
}
