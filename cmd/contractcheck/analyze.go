package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/DeusData/contractcheck/internal/analysis"
	"github.com/DeusData/contractcheck/internal/facts"
	"github.com/DeusData/contractcheck/internal/issue"
	"github.com/DeusData/contractcheck/internal/traces"
)

type analyzeOptions struct {
	fromStore bool
	repos     []string
	output    string
	strict    bool
	kinds     []string
	compact   bool
	traces    []string
}

func newAnalyzeCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze [facts-dir]",
		Short: "Check API contracts and print the result as JSON",
		Long: `Loads every *.facts.json / *.facts.yaml file under facts-dir (or the
ingested store with --store), resolves router mounts, links calls to endpoints
and reports missing endpoints, orphaned endpoints, method mismatches and
dependency version conflicts.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) > 0 {
				dir = args[0]
			}
			if dir == "" && !opts.fromStore {
				dir = "."
			}
			res, err := runAnalysis(cmd.Context(), root, opts, dir)
			if err != nil {
				return err
			}
			if err := writeResult(cmd.OutOrStdout(), opts, res); err != nil {
				return err
			}
			if opts.strict && res.HasFindings() {
				return errFindings
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&opts.fromStore, "store", false, "Analyze the ingested store instead of a facts directory")
	cmd.Flags().StringSliceVar(&opts.repos, "repo", nil, "With --store, only analyze these repos")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write the JSON result to this file instead of stdout")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Exit 1 when any issue, conflict or failure is found")
	cmd.Flags().StringSliceVar(&opts.kinds, "kind", nil, "Only report these issue kinds (e.g. missing_endpoint)")
	cmd.Flags().BoolVar(&opts.compact, "compact", false, "Write compact JSON")
	cmd.Flags().StringSliceVar(&opts.traces, "traces", nil, "OTLP JSON trace exports whose observed endpoints and calls are added to the facts")
	return cmd
}

func runAnalysis(ctx context.Context, root *rootOptions, opts *analyzeOptions, dir string) (*analysis.Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var kinds []issue.Kind
	for _, name := range opts.kinds {
		k, ok := issue.ParseKind(name)
		if !ok {
			return nil, fmt.Errorf("unknown issue kind %q", name)
		}
		kinds = append(kinds, k)
	}

	cfg, err := root.linkerConfig(dir)
	if err != nil {
		return nil, err
	}

	var snap *facts.Snapshot
	if opts.fromStore {
		st, err := root.openStore()
		if err != nil {
			return nil, err
		}
		defer st.Close()
		if snap, err = st.LoadSnapshot(opts.repos...); err != nil {
			return nil, err
		}
	} else {
		if snap, err = facts.LoadDir(ctx, dir, nil); err != nil {
			return nil, err
		}
	}

	if len(opts.traces) > 0 {
		repos := append([]facts.RepoFacts(nil), snap.Repos...)
		for _, path := range opts.traces {
			observed, _, err := traces.Load(path)
			if err != nil {
				return nil, err
			}
			repos = append(repos, observed...)
		}
		snap = facts.NewSnapshot(repos...)
	}

	res := analysis.Run(snap, analysis.Options{Linker: cfg, Logger: slog.Default()})
	res.FilterKinds(kinds...)
	return res, nil
}

func writeResult(stdout io.Writer, opts *analyzeOptions, res *analysis.Result) error {
	var data []byte
	var err error
	if opts.compact {
		data, err = json.Marshal(res)
	} else {
		data, err = json.MarshalIndent(res, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	data = append(data, '\n')

	if opts.output == "" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(opts.output, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", opts.output, err)
	}
	slog.Info("analyze.written", "path", opts.output, "issues", len(res.Issues))
	return nil
}
