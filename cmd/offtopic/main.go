package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "offtopic",
	Short: "Distractor annotation toolchain for topic-control dialogs",
	Long: `offtopic hosts the distractor annotation UI and the merge/export
pipelines around it.

The serve command loads the topic-control dataset and starts the
annotation UI; the remaining commands turn saved annotation sessions
into the flat CSV deliverables.`,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
