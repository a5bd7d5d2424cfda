package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/topicbench/offtopic/internal/api"
	"github.com/topicbench/offtopic/internal/config"
	"github.com/topicbench/offtopic/internal/dataset"
	"github.com/topicbench/offtopic/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the dataset and start the annotation UI",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("offtopic starting", "port", cfg.Port, "split", cfg.DatasetSplit)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Dataset: cache-first, fetched from the datasets server on a miss.
	client := dataset.NewClient(cfg.DatasetBaseURL, cfg.DatasetID, cfg.CacheDir, slog.Default())
	records, err := client.LoadSplit(ctx, cfg.DatasetSplit)
	if err != nil {
		slog.Error("failed to load dataset split", "split", cfg.DatasetSplit, "error", err)
		os.Exit(1)
	}
	index := dataset.NewIndex(records)
	slog.Info("dataset loaded", "rows", index.Len(), "domains", len(index.Domains()))

	// Save store
	st := store.New(cfg.SaveDir)
	slog.Info("save store ready", "dir", st.Dir())

	// HTTP UI
	srv := api.NewServer(cfg.Port, cfg.DatasetSplit, index, st, slog.Default())
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("offtopic ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	slog.Info("offtopic stopped")
}
