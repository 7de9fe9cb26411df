package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/DeusData/contractcheck/internal/httplink"
	"github.com/DeusData/contractcheck/internal/store"
	"github.com/DeusData/contractcheck/internal/tools"
)

var version = "dev"

// errFindings makes --strict runs exit non-zero without printing an error.
var errFindings = errors.New("contract issues found")

type rootOptions struct {
	verbose    bool
	dbPath     string
	configPath string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !errors.Is(err, errFindings) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "contractcheck",
		Short:         "Find API contract inconsistencies across services",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			setupLogging(cmd.ErrOrStderr(), opts.verbose)
		},
	}
	root.SetVersionTemplate("contractcheck {{.Version}}\n")

	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&opts.dbPath, "db", "", "Path to the facts database (default ~/.cache/contractcheck/facts.db)")
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Linker config file (.yaml or .toml); default is .contractcheck.* in the facts dir")

	tools.Version = version

	root.AddCommand(
		newAnalyzeCmd(opts),
		newIngestCmd(opts),
		newReposCmd(opts),
		newServeCmd(opts),
		newWatchCmd(opts),
	)
	return root
}

// setupLogging sends slog output to w, never stdout: stdout carries results
// and the MCP stdio transport.
func setupLogging(w io.Writer, verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})))
}

// linkerConfig resolves the linker configuration: an explicit --config file
// wins, otherwise the config next to the facts.
func (o *rootOptions) linkerConfig(factsDir string) (*httplink.LinkerConfig, error) {
	if o.configPath != "" {
		cfg, err := httplink.LoadConfigFile(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg.ApplyEnv()
		return cfg, nil
	}
	if factsDir == "" {
		factsDir = "."
	}
	return httplink.LoadConfig(factsDir), nil
}

func (o *rootOptions) openStore() (*store.Store, error) {
	st, err := store.Open(o.dbPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return st, nil
}
