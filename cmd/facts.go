package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/tora-tool/orareconcile/cmd/internal/cmdutil"
	"github.com/tora-tool/orareconcile/facts"
)

func factsCommand() *cobra.Command {
	var subsets []string
	cmd := &cobra.Command{
		Use:   "facts",
		Short: "Gather read-only catalog facts as JSON.",
		Long: `Facts gathers catalog facts from the database, grouped into subsets
(database, instance, option, parameter, pdb, rac, redolog, tablespace,
userenv, user; "all" and "min" are aliases), and prints them as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			expanded, err := facts.ExpandSubsets(subsets)
			if err != nil {
				return err
			}
			ctx := context.Background()

			logger, err := cmdutil.Logger()
			if err != nil {
				return err
			}
			conn, err := cmdutil.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			gathered, err := facts.Gather(ctx, conn, expanded)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(gathered)
		},
	}
	cmd.Flags().StringSliceVar(&subsets, "gather-subset", []string{"all"},
		"fact subsets to gather")
	return cmd
}
