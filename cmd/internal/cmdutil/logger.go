package cmdutil

import (
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var logLevel = zerolog.InfoLevel.String()

// RegisterLoggerFlags wires the shared logging flag onto the root command.
func RegisterLoggerFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&logLevel,
		"level",
		logLevel,
		"log level (trace, debug, info, warn, error)",
	)
}

// Logger builds the console logger every subcommand reports through,
// at the level selected by --level.
func Logger() (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		return zerolog.Nop(), errors.Wrapf(err, "unknown log level %q", logLevel)
	}
	return zerolog.New(zerolog.NewConsoleWriter()).Level(lvl), nil
}
