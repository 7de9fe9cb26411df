package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newIngestCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <path>...",
		Short: "Load facts files or directories into the store",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := root.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "REPO\tFACTS\tSTATUS")
			for _, path := range args {
				results, err := st.Ingest(cmd.Context(), path)
				if err != nil {
					return err
				}
				for _, r := range results {
					status := "unchanged"
					if r.Changed {
						status = "updated"
					}
					fmt.Fprintf(tw, "%s\t%d\t%s\n", r.Repo, r.Facts, status)
				}
			}
			return tw.Flush()
		},
	}
}

func newReposCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repos",
		Short: "List ingested repos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := root.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			repos, err := st.ListRepos()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "REPO\tFACTS\tDEPENDENCIES\tINGESTED\tSOURCE")
			for _, r := range repos {
				fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n", r.Name, r.FactCount, r.DependencyCount, r.IngestedAt, r.Source)
			}
			return tw.Flush()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "rm <repo>...",
		Short: "Delete ingested repos",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := root.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			for _, name := range args {
				deleted, err := st.DeleteRepo(name)
				if err != nil {
					return err
				}
				if !deleted {
					return fmt.Errorf("repo not found: %s", name)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "deleted", name)
			}
			return nil
		},
	})
	return cmd
}
