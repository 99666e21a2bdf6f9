package oraconn

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func TestCode(t *testing.T) {
	for _, tc := range []struct {
		desc     string
		err      error
		expected int
	}{
		{desc: "nil error", err: nil, expected: 0},
		{desc: "no code", err: errors.New("driver: bad connection"), expected: 0},
		{desc: "logon denied", err: errors.New("ORA-01017: invalid username/password; logon denied"), expected: 1017},
		{desc: "wrapped", err: errors.Wrap(errors.New("ORA-00942: table or view does not exist"), "reading dba_users"), expected: 942},
		{desc: "tns", err: errors.New("ORA-12541: TNS:no listener"), expected: 12541},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			require.Equal(t, tc.expected, Code(tc.err))
		})
	}
}

func TestClassify(t *testing.T) {
	connErr := errors.New("ORA-03113: end-of-file on communication channel")
	privErr := errors.New("ORA-01031: insufficient privileges")
	stmtErr := errors.New("ORA-00959: tablespace 'TS1' does not exist")

	require.True(t, IsConnectivity(connErr))
	require.False(t, IsConnectivity(privErr))
	require.False(t, IsConnectivity(stmtErr))

	require.True(t, IsInsufficientPrivilege(privErr))
	require.True(t, IsInsufficientPrivilege(errors.New("ORA-00942: table or view does not exist")))
	require.False(t, IsInsufficientPrivilege(stmtErr))
	require.False(t, IsInsufficientPrivilege(nil))
}

func TestConfigValidate(t *testing.T) {
	valid := Config{Hostname: "db1", Port: 1521, ServiceName: "orcl"}
	require.NoError(t, valid.Validate())

	for _, tc := range []struct {
		desc string
		mut  func(*Config)
	}{
		{desc: "missing hostname", mut: func(c *Config) { c.Hostname = "" }},
		{desc: "zero port", mut: func(c *Config) { c.Port = 0 }},
		{desc: "port out of range", mut: func(c *Config) { c.Port = 70000 }},
		{desc: "missing service", mut: func(c *Config) { c.ServiceName = "" }},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			cfg := valid
			tc.mut(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
