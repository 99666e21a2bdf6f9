package cmdutil

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tora-tool/orareconcile/oraconn"
	"github.com/tora-tool/orareconcile/retry"
)

var connConfig = oraconn.Config{
	Hostname: "localhost",
	Port:     1521,
}

func RegisterConnFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(
		&connConfig.Hostname,
		"hostname",
		connConfig.Hostname,
		"host name or IP address of the database server",
	)
	cmd.PersistentFlags().IntVar(
		&connConfig.Port,
		"port",
		connConfig.Port,
		"listening port on the database server",
	)
	cmd.PersistentFlags().StringVar(
		&connConfig.ServiceName,
		"service-name",
		"",
		"service name of the database to connect to",
	)
	cmd.PersistentFlags().StringVar(
		&connConfig.Username,
		"username",
		"",
		"user to connect as; empty selects external (wallet) authentication",
	)
	cmd.PersistentFlags().StringVar(
		&connConfig.Password,
		"password",
		"",
		"password for --username",
	)
	cmd.PersistentFlags().BoolVar(
		&connConfig.AsSysDBA,
		"sysdba",
		false,
		"connect with sysdba administration privileges",
	)

	if err := cmd.MarkPersistentFlagRequired("service-name"); err != nil {
		panic(err)
	}
}

// ConnConfig exposes the flag-bound connection settings, e.g. for
// password probing side connections.
func ConnConfig() oraconn.Config {
	return connConfig
}

// Connect opens the session described by the connection flags, retrying
// transient connectivity failures with backoff. Authentication and
// privilege errors fail immediately.
func Connect(ctx context.Context, logger zerolog.Logger) (*oraconn.Conn, error) {
	var conn *oraconn.Conn
	err := retry.Do(ctx, retry.DefaultSettings(), func(ctx context.Context) error {
		var err error
		conn, err = oraconn.Connect(ctx, connConfig)
		if err == nil {
			return nil
		}
		if !oraconn.IsConnectivity(err) {
			return retry.Fatal(err)
		}
		logger.Warn().Err(err).Msg("connection failed; retrying")
		return err
	})
	return conn, err
}
