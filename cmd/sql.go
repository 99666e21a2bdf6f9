package cmd

import (
	"context"
	"encoding/json"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/tora-tool/orareconcile/cmd/internal/cmdutil"
	"github.com/tora-tool/orareconcile/sqlexec"
)

func sqlCommand() *cobra.Command {
	var (
		sqlText string
		script  string
		check   bool
	)
	cmd := &cobra.Command{
		Use:   "sql",
		Short: "Execute free-form SQL, a script, or a script file.",
		Long: `Sql executes a single statement (--sql) or a multi-statement script
(--script, or --script @path to read a file). Select statements print
their rows; everything else prints the executed statements. With
--check nothing is executed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (sqlText == "") == (script == "") {
				return errors.Newf("exactly one of --sql and --script must be set")
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

			ex := sqlexec.New(conn, check)
			var res *sqlexec.Result
			if sqlText != "" {
				res, err = ex.RunSQL(ctx, sqlText)
			} else {
				res, err = ex.RunScript(ctx, script)
			}
			if res != nil {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(res); encErr != nil {
					return encErr
				}
			}
			return err
		},
	}
	cmd.Flags().StringVar(&sqlText, "sql", "", "single SQL statement to execute")
	cmd.Flags().StringVar(&script, "script", "", "multi-statement script, or @path to a script file")
	cmd.Flags().BoolVar(&check, "check", false, "report the statements without executing them")
	return cmd
}
