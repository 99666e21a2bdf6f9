package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tora-tool/orareconcile/cmd/internal/cmdutil"
)

var rootCmd = &cobra.Command{
	Use:   "orareconcile",
	Short: "Declarative reconciliation for Oracle database objects",
	Long: `orareconcile brings grants, tablespaces, users, roles, directories and
pluggable databases into conformance with an operator-supplied desired
state, and can report the exact DDL/DCL it would execute without
applying it.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cmdutil.RegisterLoggerFlags(rootCmd)
	cmdutil.RegisterConnFlags(rootCmd)
	rootCmd.AddCommand(reconcileCommand())
	rootCmd.AddCommand(sqlCommand())
	rootCmd.AddCommand(factsCommand())
}
