// Package oraconn manages connections to an Oracle database and classifies
// the errors the server reports.
package oraconn

import (
	"context"
	"database/sql"

	"github.com/cockroachdb/errors"
	go_ora "github.com/sijms/go-ora/v2"
)

// Session is the surface the reconciliation engine needs from a live
// database connection: read-only catalog queries and autocommitted
// statement execution. *sql.DB satisfies it, as do test doubles.
type Session interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Config holds the settings needed to open a session.
type Config struct {
	Hostname    string
	Port        int
	ServiceName string
	Username    string
	Password    string
	AsSysDBA    bool
}

func (c Config) Validate() error {
	if c.Hostname == "" {
		return errors.Newf("hostname must be set")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Newf("port must be in (0, 65535], got %d", c.Port)
	}
	if c.ServiceName == "" {
		return errors.Newf("service name must be set")
	}
	return nil
}

// URL renders the go-ora connection string. An empty username selects
// wallet-style external authentication, matching the server default.
func (c Config) URL() string {
	opts := map[string]string{}
	if c.AsSysDBA {
		opts["dba privilege"] = "sysdba"
	}
	return go_ora.BuildUrl(c.Hostname, c.Port, c.ServiceName, c.Username, c.Password, opts)
}

// Conn wraps one database handle. It is acquired at the start of a
// reconciliation pass and released when the pass ends.
type Conn struct {
	*sql.DB
	cfg Config
}

var _ Session = (*Conn)(nil)

// Connect opens and verifies a session against the configured database.
func Connect(ctx context.Context, cfg Config) (*Conn, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open("oracle", cfg.URL())
	if err != nil {
		return nil, errors.Wrapf(err, "error opening connection to %s:%d/%s", cfg.Hostname, cfg.Port, cfg.ServiceName)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "error connecting to %s:%d/%s", cfg.Hostname, cfg.Port, cfg.ServiceName)
	}
	return &Conn{DB: db, cfg: cfg}, nil
}

func (c *Conn) Config() Config {
	return c.cfg
}

// ProbePassword reports whether the given credentials are rejected with a
// logon-denied error, i.e. the stored password differs. Other connection
// failures propagate unchanged.
func ProbePassword(ctx context.Context, cfg Config, username, password string) (bool, error) {
	probe := cfg
	probe.Username = username
	probe.Password = password
	probe.AsSysDBA = false
	conn, err := Connect(ctx, probe)
	if err != nil {
		if Code(err) == codeLogonDenied {
			return true, nil
		}
		return false, err
	}
	_ = conn.Close()
	return false, nil
}
