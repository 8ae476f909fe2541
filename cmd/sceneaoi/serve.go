package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"sceneaoi/internal/logx"
	"sceneaoi/internal/server"
	"sceneaoi/internal/workflow"
)

const watchDebounce = 300 * time.Millisecond

var serveCmd = &cobra.Command{
	Use:   "serve [scene-dir]",
	Short: "Drive the AOI workflow over HTTP",
	Long:  "Serve the selection state machine, lookups and exports as a JSON API.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&cfg.Port, "port", cfg.Port, "listen port")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if len(args) == 1 {
		cfg.ScenePath = args[0]
	}
	log, err := logx.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, log)
	if err != nil {
		return err
	}
	defer s.Close()

	srv := server.New(s.wf, s.ledger, log, cfg.Environment == "development")
	if cfg.Watch {
		err := s.wf.Watch(watchDebounce, func() {
			srv.Locked(func(wf *workflow.Workflow) {
				if err := wf.Reload(); err != nil {
					log.Error("scene reload failed", "err", err)
				}
			})
		})
		if err != nil {
			log.Warn("scene watch disabled", "err", err)
		}
	}

	errc := make(chan error, 1)
	go func() {
		addr := net.JoinHostPort("", cfg.Port)
		log.Info("listening", "addr", addr, "env", cfg.Environment)
		errc <- srv.Listen(addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdown := make(chan error, 1)
	go func() { shutdown <- srv.Shutdown() }()
	select {
	case err := <-shutdown:
		return err
	case <-time.After(5 * time.Second):
		return context.DeadlineExceeded
	}
}
