// Package cli implements the a11yscan command tree. By default commands run
// the orchestrator in-process against the configured store, so runs started
// by one invocation can be inspected and fixed by later ones. With --server
// they drive a remote API server instead.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/a11yscan/internal/app"
	"github.com/raysh454/a11yscan/internal/config"
	"github.com/raysh454/a11yscan/internal/logging"
)

var version = "dev"

var (
	configFlag      string
	outputFlag      string
	dbFlag          string
	logLevelFlag    string
	clientFlag      string
	serverFlag      string
	concurrencyFlag int
	pageTimeoutFlag time.Duration
)

// appConfig holds the loaded configuration, available after PersistentPreRunE.
var appConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "a11yscan",
	Short: "a11yscan: automated accessibility auditing",
	Long: `a11yscan crawls a website, audits every page against WCAG rules,
scores the result and applies automatic fixes where the remedy is known.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFlag)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		config.ApplyFlags(cfg, cmd)

		outputFlag = cfg.OutputFormat
		appConfig = cfg
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file (default ~/.a11yscan.yaml)")
	rootCmd.PersistentFlags().StringVarP(&outputFlag, "output", "o", "table", "output format: table, json, markdown, html")
	rootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "SQLite database holding scan runs")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "warn", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&clientFlag, "client", "nethttp", "page fetcher: nethttp or chromedp")
	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "API server URL; runs scans remotely instead of in-process")
	rootCmd.PersistentFlags().IntVarP(&concurrencyFlag, "concurrency", "c", 4, "max concurrent page fetches per scan")
	rootCmd.PersistentFlags().DurationVar(&pageTimeoutFlag, "page-timeout", 15*time.Second, "timeout for a single page fetch")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(ignoreCmd)
	rootCmd.AddCommand(contrastCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// commandLogger logs to the command's stderr so logs never mix with report
// output.
func commandLogger(cmd *cobra.Command) logging.Logger {
	return logging.NewWriterLogger(cmd.ErrOrStderr(), "a11yscan", logging.ParseLevel(appConfig.LogLevel))
}

// newApplication builds the application from the loaded config.
func newApplication(cmd *cobra.Command) (*app.Application, error) {
	cfg, err := appConfig.AppConfig()
	if err != nil {
		return nil, err
	}
	return app.NewApplication(cfg, commandLogger(cmd))
}

func closeApplication(a *app.Application) {
	_ = a.Shutdown(context.Background())
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
