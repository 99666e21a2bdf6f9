package grant

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/tora-tool/orareconcile/config"
	"github.com/tora-tool/orareconcile/reconcile"
)

func desiredState(t *testing.T, spec config.GrantSpec) reconcile.State {
	t.Helper()
	st, err := New().Normalize(&config.Resource{Kind: "grant", Grant: &spec})
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

func TestDeltaIdenticalReplacesRoles(t *testing.T) {
	desired := desiredState(t, config.GrantSpec{
		Grantee: "app",
		Roles:   []string{"connect", "resource"},
	})
	current := &state{grantee: "APP", exists: true, roles: []string{"CONNECT", "DBA"}}

	require.Equal(t, []string{
		"revoke DBA from APP",
		"grant RESOURCE to APP",
	}, planTexts(t, desired, current, reconcile.PolicyIdentical))
}

func TestDeltaIdenticalEmptyDesiredRevokesAll(t *testing.T) {
	desired := desiredState(t, config.GrantSpec{Grantee: "app"})
	current := &state{grantee: "APP", exists: true, roles: []string{"CONNECT"}}

	require.Equal(t, []string{
		"revoke CONNECT from APP",
	}, planTexts(t, desired, current, reconcile.PolicyIdentical))
}

func TestDeltaPresentNeverRevokes(t *testing.T) {
	desired := desiredState(t, config.GrantSpec{
		Grantee:    "app",
		Privileges: []string{"create session"},
		Roles:      []string{"resource"},
	})
	current := &state{
		grantee:    "APP",
		exists:     true,
		privileges: []string{"SELECT ANY TABLE"},
		roles:      []string{"CONNECT", "DBA"},
	}

	require.Equal(t, []string{
		"grant CREATE SESSION to APP",
		"grant RESOURCE to APP",
	}, planTexts(t, desired, current, reconcile.PolicyPresent))
}

func TestDeltaAbsentRevokesOnlyNamed(t *testing.T) {
	desired := desiredState(t, config.GrantSpec{
		Grantee: "app",
		Roles:   []string{"dba", "nonheld"},
	})
	current := &state{grantee: "APP", exists: true, roles: []string{"CONNECT", "DBA"}}

	require.Equal(t, []string{
		"revoke DBA from APP",
	}, planTexts(t, desired, current, reconcile.PolicyAbsent))
}

func TestDeltaObjectPrivileges(t *testing.T) {
	desired := desiredState(t, config.GrantSpec{
		Grantee: "app",
		Objects: []config.ObjectGrant{
			{Owner: "hr", Name: "employees", Privilege: "select"},
			{Owner: "hr", Name: "employees", Privilege: "update"},
		},
	})
	current := &state{
		grantee: "APP",
		exists:  true,
		objects: []string{"SELECT on HR.EMPLOYEES", "DELETE on HR.EMPLOYEES"},
	}

	require.Equal(t, []string{
		"revoke DELETE on HR.EMPLOYEES from APP",
		"grant UPDATE on HR.EMPLOYEES to APP",
	}, planTexts(t, desired, current, reconcile.PolicyIdentical))
}

func TestDeltaNoChangeProducesEmptyPlan(t *testing.T) {
	desired := desiredState(t, config.GrantSpec{
		Grantee: "app",
		Roles:   []string{"connect"},
	})
	current := &state{grantee: "APP", exists: true, roles: []string{"CONNECT"}}

	require.Empty(t, planTexts(t, desired, current, reconcile.PolicyIdentical))
}

// replay mutates a copy of the current state the way the database would
// after executing the planned revokes and grants.
func replay(c *state, ops []reconcile.ChangeOp) *state {
	next := &state{
		grantee:    c.grantee,
		exists:     true,
		privileges: append([]string(nil), c.privileges...),
		roles:      append([]string(nil), c.roles...),
		objects:    append([]string(nil), c.objects...),
	}
	sets := map[string]*[]string{
		fieldPrivilege: &next.privileges,
		fieldRole:      &next.roles,
		fieldObject:    &next.objects,
	}
	for _, op := range ops {
		set := sets[op.Field]
		switch op.Verb {
		case reconcile.VerbRevoke:
			kept := (*set)[:0]
			for _, elem := range *set {
				if elem != op.Element {
					kept = append(kept, elem)
				}
			}
			*set = kept
		case reconcile.VerbGrant:
			*set = append(*set, op.Element)
		}
	}
	return next
}

func TestDeltaConvergesAfterApply(t *testing.T) {
	desired := desiredState(t, config.GrantSpec{
		Grantee:    "app",
		Privileges: []string{"create session"},
		Roles:      []string{"connect", "resource"},
		Objects: []config.ObjectGrant{
			{Owner: "hr", Name: "employees", Privilege: "select"},
		},
	})
	current := &state{
		grantee:    "APP",
		exists:     true,
		privileges: []string{"SELECT ANY TABLE"},
		roles:      []string{"CONNECT", "DBA"},
		objects:    []string{"DELETE on HR.EMPLOYEES"},
	}

	h := New()
	for _, policy := range []reconcile.Policy{
		reconcile.PolicyPresent,
		reconcile.PolicyAbsent,
		reconcile.PolicyIdentical,
	} {
		ops, err := h.Delta(desired, current, policy)
		require.NoError(t, err)
		require.NotEmpty(t, ops, "policy %s", policy)

		again, err := h.Delta(desired, replay(current, ops), policy)
		require.NoError(t, err)
		require.Empty(t, again, "policy %s must plan nothing after its own plan applied", policy)
	}
}

func TestNormalizeRejectsUnsafeNames(t *testing.T) {
	for _, spec := range []config.GrantSpec{
		{Grantee: "app; drop table t"},
		{Grantee: "app", Roles: []string{"dba--"}},
		{Grantee: "app", Privileges: []string{"create session;"}},
		{Grantee: "app", Objects: []config.ObjectGrant{{Owner: "hr'", Name: "emp", Privilege: "select"}}},
	} {
		_, err := New().Normalize(&config.Resource{Kind: "grant", Grant: &spec})
		require.Error(t, err)
		require.True(t, reconcile.IsValidation(err), "want validation error, got %v", err)
	}
}

func TestReadCurrent(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(granteeQuery).
		WithArgs(sql.Named("grantee", "APP")).
		WillReturnRows(sqlmock.NewRows([]string{"username"}).AddRow("APP"))
	mock.ExpectQuery(sysPrivQuery).
		WithArgs(sql.Named("grantee", "APP")).
		WillReturnRows(sqlmock.NewRows([]string{"privilege"}).
			AddRow("CREATE SESSION").
			AddRow("SELECT ANY TABLE"))
	mock.ExpectQuery(rolePrivQuery).
		WithArgs(sql.Named("grantee", "APP")).
		WillReturnRows(sqlmock.NewRows([]string{"granted_role"}).
			AddRow("CONNECT"))
	mock.ExpectQuery(tabPrivQuery).
		WithArgs(sql.Named("grantee", "APP")).
		WillReturnRows(sqlmock.NewRows([]string{"privilege", "owner", "table_name"}).
			AddRow("SELECT", "HR", "EMPLOYEES"))

	st, err := New().ReadCurrent(context.Background(), db, "app")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())

	got := st.(*state)
	require.True(t, got.Exists())
	require.Equal(t, "APP", got.Name())
	require.Equal(t, []string{"CREATE SESSION", "SELECT ANY TABLE"}, got.privileges)
	require.Equal(t, []string{"CONNECT"}, got.roles)
	require.Equal(t, []string{"SELECT on HR.EMPLOYEES"}, got.objects)
}

func TestReadCurrentClassifiesPrivilegeError(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(granteeQuery).
		WithArgs(sql.Named("grantee", "APP")).
		WillReturnRows(sqlmock.NewRows([]string{"username"}).AddRow("APP"))
	mock.ExpectQuery(sysPrivQuery).
		WithArgs(sql.Named("grantee", "APP")).
		WillReturnError(oraTableMissingErr{})

	_, err = New().ReadCurrent(context.Background(), db, "app")
	require.Error(t, err)
	require.True(t, reconcile.IsInsufficientPrivilege(err))
}

func TestReadCurrentAbsentGrantee(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(granteeQuery).
		WithArgs(sql.Named("grantee", "GHOST")).
		WillReturnRows(sqlmock.NewRows([]string{"username"}))

	st, err := New().ReadCurrent(context.Background(), db, "ghost")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	require.False(t, st.Exists())
	require.Equal(t, "GHOST", st.Name())
}

type oraTableMissingErr struct{}

func (oraTableMissingErr) Error() string {
	return "ORA-00942: table or view does not exist"
}
