// Command turnover is the command line client for the turnover server. It
// captures photos from disk through the same level gate as the browser
// flow and drives uploads, comparisons and inspection sessions.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL      string
	requestTimeout time.Duration
	noColor        bool
	jsonOutput     bool
	verbose        bool
)

var rootCmd = &cobra.Command{
	Use:           "turnover",
	Short:         "Guest checkout inspections from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	defaultURL := os.Getenv("TURNOVER_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&serverURL, "server", defaultURL, "turnover server URL (env TURNOVER_URL)")
	flags.DurationVar(&requestTimeout, "timeout", 5*time.Minute, "per request timeout")
	flags.BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")
	flags.BoolVar(&jsonOutput, "json", false, "print raw JSON responses")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log capture details to stderr")

	rootCmd.AddCommand(healthCmd, uploadCmd, compareCmd, inspectCmd, sessionCmd, baselinesCmd)
}

// cliLogger logs to stderr. Only warnings are shown unless --verbose is set.
func cliLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+err.Error()))
		os.Exit(1)
	}
}
