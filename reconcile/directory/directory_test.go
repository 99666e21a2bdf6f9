package directory

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/tora-tool/orareconcile/config"
	"github.com/tora-tool/orareconcile/reconcile"
)

func desiredState(t *testing.T, policy reconcile.Policy, spec config.DirectorySpec) reconcile.State {
	t.Helper()
	st, err := New().Normalize(&config.Resource{
		Kind: "directory", State: string(policy), Directory: &spec,
	})
	require.NoError(t, err)
	return st
}

func planTexts(t *testing.T, desired, current reconcile.State, policy reconcile.Policy) []string {
	t.Helper()
	h := New()
	ops, err := h.Delta(desired, current, policy)
	require.NoError(t, err)
	plan, err := reconcile.BuildPlan(h, ops)
	require.NoError(t, err)
	return plan.SQLTexts()
}

func TestCreateDirectory(t *testing.T) {
	desired := desiredState(t, reconcile.PolicyPresent, config.DirectorySpec{
		Name: "dump_dir", Path: "/u01/dump",
	})

	require.Equal(t, []string{
		"create directory DUMP_DIR as '/u01/dump'",
	}, planTexts(t, desired, &state{name: "DUMP_DIR"}, reconcile.PolicyPresent))
}

func TestReplaceDirectoryPath(t *testing.T) {
	desired := desiredState(t, reconcile.PolicyPresent, config.DirectorySpec{
		Name: "dump_dir", Path: "/u02/dump",
	})
	current := &state{name: "DUMP_DIR", exists: true, path: "/u01/dump"}

	require.Equal(t, []string{
		"create or replace directory DUMP_DIR as '/u02/dump'",
	}, planTexts(t, desired, current, reconcile.PolicyPresent))
}

func TestUnchangedPathPlansNothing(t *testing.T) {
	desired := desiredState(t, reconcile.PolicyPresent, config.DirectorySpec{
		Name: "dump_dir", Path: "/u01/dump",
	})
	current := &state{name: "DUMP_DIR", exists: true, path: "/u01/dump"}

	require.Empty(t, planTexts(t, desired, current, reconcile.PolicyPresent))
}

func TestQuoteInPathIsEscaped(t *testing.T) {
	desired := desiredState(t, reconcile.PolicyPresent, config.DirectorySpec{
		Name: "dump_dir", Path: "/u01/o'brien",
	})

	require.Equal(t, []string{
		"create directory DUMP_DIR as '/u01/o''brien'",
	}, planTexts(t, desired, &state{name: "DUMP_DIR"}, reconcile.PolicyPresent))
}

func TestAbsentDropsDirectory(t *testing.T) {
	desired := desiredState(t, reconcile.PolicyAbsent, config.DirectorySpec{Name: "dump_dir"})

	require.Equal(t, []string{"drop directory DUMP_DIR"},
		planTexts(t, desired, &state{name: "DUMP_DIR", exists: true, path: "/u01/dump"}, reconcile.PolicyAbsent))
	require.Empty(t,
		planTexts(t, desired, &state{name: "DUMP_DIR"}, reconcile.PolicyAbsent))
}

func TestNormalizeValidation(t *testing.T) {
	_, err := New().Normalize(&config.Resource{
		Kind: "directory", Directory: &config.DirectorySpec{Name: "dump_dir"},
	})
	require.Error(t, err)
	require.True(t, reconcile.IsValidation(err))

	_, err = New().Normalize(&config.Resource{
		Kind: "directory", Directory: &config.DirectorySpec{Name: `d"d`, Path: "/u01"},
	})
	require.Error(t, err)
	require.True(t, reconcile.IsValidation(err))
}

func TestReadCurrent(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(directoryQuery).
		WithArgs(sql.Named("name", "DUMP_DIR")).
		WillReturnRows(sqlmock.NewRows([]string{"directory_name", "directory_path"}).
			AddRow("DUMP_DIR", "/u01/dump"))

	st, err := New().ReadCurrent(context.Background(), db, "dump_dir")
	require.NoError(t, err)
	require.True(t, st.Exists())
	require.Equal(t, "/u01/dump", st.(*state).path)
	require.NoError(t, mock.ExpectationsWereMet())
}
