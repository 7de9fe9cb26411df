package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/DeusData/contractcheck/internal/httplink"
	"github.com/DeusData/contractcheck/internal/watcher"
)

func newWatchCmd(root *rootOptions) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "watch [facts-dir]",
		Short: "Re-run the analysis whenever facts or config change",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			run := func(ctx context.Context) error {
				res, err := runAnalysis(ctx, root, opts, dir)
				if err != nil {
					return err
				}
				slog.Info("watch.analyzed",
					"issues", len(res.Issues),
					"conflicts", len(res.DependencyConflicts),
					"failures", len(res.Failures))
				return writeResult(cmd.OutOrStdout(), opts, res)
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			if err := run(ctx); err != nil {
				slog.Warn("watch.run", "err", err)
			}
			w := watcher.New(dir, run, &watcher.Options{Extra: httplink.ConfigFiles()})
			return w.Run(ctx)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Write each JSON result to this file instead of stdout")
	cmd.Flags().StringSliceVar(&opts.kinds, "kind", nil, "Only report these issue kinds")
	cmd.Flags().BoolVar(&opts.compact, "compact", false, "Write compact JSON")
	cmd.Flags().StringSliceVar(&opts.traces, "traces", nil, "OTLP JSON trace exports added to every run")
	return cmd
}
