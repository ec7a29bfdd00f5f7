package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/javierhonduco/sweeper/config"
	"github.com/javierhonduco/sweeper/database"
	"github.com/javierhonduco/sweeper/event"
	"github.com/javierhonduco/sweeper/logging"
	"github.com/javierhonduco/sweeper/platform"
	"github.com/javierhonduco/sweeper/sweeper"
	"github.com/javierhonduco/sweeper/web"
)

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   "sweeper",
		Short: "Deletes files once their expiry extended attribute elapses",
		Long: `sweeper watches setxattr/lsetxattr via kernel tracepoints. Any process
that sets user.expire_at to a Unix timestamp on an absolute path schedules
that file for deletion; sweeper persists the schedule and deletes the file
once the timestamp has passed.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath)
		},
	}
	root.Flags().StringVarP(&configPath, "config", "c", "", "path to TOML config file")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	// Capture first: without it the daemon is useless and must not start.
	reader, cleanup, err := platform.InitBPF()
	if err != nil {
		return fmt.Errorf("initializing capture: %w", err)
	}
	defer cleanup()

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening schedule store: %w", err)
	}
	defer db.Close()

	sw := sweeper.New(db, reader, event.NewDecoder(cfg.AttributeName), log, sweeper.Options{
		PollTimeout:   cfg.PollTimeout(),
		FlushInterval: cfg.FlushInterval(),
		ScanInterval:  cfg.ScanInterval(),
		QueueSize:     cfg.QueueSize,
	})

	go func() {
		srv := web.NewServer(db, log)
		if err := srv.ListenAndServe(cfg.ListenAddr); err != nil {
			log.Error("status server stopped", "error", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Info("shutting down", "signal", s)
		sw.Stop()
	}()

	log.Info("watching for expiry attributes",
		"attribute", cfg.AttributeName,
		"database", cfg.DatabasePath,
		"status_addr", cfg.ListenAddr)

	if err := sw.Run(); err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}
	log.Info("shutdown complete")
	return nil
}
