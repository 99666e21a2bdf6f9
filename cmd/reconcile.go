package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/tora-tool/orareconcile/cmd/internal/cmdutil"
	"github.com/tora-tool/orareconcile/config"
	"github.com/tora-tool/orareconcile/oraconn"
	"github.com/tora-tool/orareconcile/reconcile"
	"github.com/tora-tool/orareconcile/reconcile/directory"
	"github.com/tora-tool/orareconcile/reconcile/grant"
	"github.com/tora-tool/orareconcile/reconcile/pdb"
	"github.com/tora-tool/orareconcile/reconcile/role"
	"github.com/tora-tool/orareconcile/reconcile/tablespace"
	"github.com/tora-tool/orareconcile/reconcile/user"
)

func reconcileCommand() *cobra.Command {
	var (
		file           string
		check          bool
		ackDestructive bool
		jsonOut        bool
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile database objects against a desired-state file.",
		Long: `Reconcile reads a desired-state YAML file and converges each listed
resource, in file order. With --check the plan is reported and nothing
is executed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			logger, err := cmdutil.Logger()
			if err != nil {
				return err
			}

			doc, err := config.ParseFile(file)
			if err != nil {
				return err
			}

			conn, err := cmdutil.Connect(ctx, logger)
			if err != nil {
				return err
			}
			defer func() { _ = conn.Close() }()

			userHandler := user.New()
			userHandler.Probe = func(username, password string) (bool, error) {
				return oraconn.ProbePassword(ctx, cmdutil.ConnConfig(), username, password)
			}
			registry, err := reconcile.NewRegistry(
				grant.New(),
				tablespace.New(),
				userHandler,
				role.New(),
				directory.New(),
				pdb.New(),
			)
			if err != nil {
				return err
			}

			reporter := reconcile.CombinedReporter{}
			reporter.Reporters = append(reporter.Reporters, reconcile.LogReporter{Logger: logger})
			if jsonOut {
				reporter.Reporters = append(reporter.Reporters, reconcile.JSONReporter{Out: os.Stdout})
			}
			defer reporter.Close()

			mode := reconcile.ModeApply
			if check {
				mode = reconcile.ModeCheck
			}
			for i := range doc.Resources {
				res := &doc.Resources[i]
				h, err := registry.Lookup(reconcile.Kind(res.Kind))
				if err != nil {
					return err
				}
				result, err := reconcile.Pass(ctx, conn, h, res, mode, ackDestructive)
				reporter.Report(result)
				if err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "desired-state YAML file")
	cmd.Flags().BoolVar(&check, "check", false, "report the plan without executing it")
	cmd.Flags().BoolVar(&ackDestructive, "ack-destructive", false,
		"permit plans that drop and recreate resources, risking data loss")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "additionally report each pass as JSON on stdout")
	if err := cmd.MarkFlagRequired("file"); err != nil {
		panic(err)
	}
	return cmd
}
