package reconcile

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func newMockSession(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func planOf(sqls ...string) Plan {
	p := Plan{}
	for _, s := range sqls {
		p.Ops = append(p.Ops, ChangeOp{Verb: VerbAlter})
		p.Statements = append(p.Statements, Statement{SQL: s})
	}
	return p
}

func TestRunCheckExecutesNothing(t *testing.T) {
	sess, mock := newMockSession(t)
	plan := planOf("alter tablespace TS1 online")

	res, err := Run(context.Background(), sess, plan, ModeCheck, false)
	require.NoError(t, err)
	require.True(t, res.Changed)
	require.False(t, res.Applied)
	require.Equal(t, 0, res.Executed)
	require.Equal(t, StageReported, res.Stage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunCheckEmptyPlanReportsNoChange(t *testing.T) {
	sess, mock := newMockSession(t)

	res, err := Run(context.Background(), sess, Plan{}, ModeCheck, false)
	require.NoError(t, err)
	require.False(t, res.Changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunApplyExecutesInOrder(t *testing.T) {
	sess, mock := newMockSession(t)
	plan := planOf(
		"revoke DBA from APP",
		"grant RESOURCE to APP",
	)
	mock.ExpectExec("revoke DBA from APP").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("grant RESOURCE to APP").WillReturnResult(sqlmock.NewResult(0, 0))

	res, err := Run(context.Background(), sess, plan, ModeApply, false)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.True(t, res.Changed)
	require.Equal(t, 2, res.Executed)
	require.Equal(t, StageSucceeded, res.Stage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunApplyStopsAtFirstFailure(t *testing.T) {
	sess, mock := newMockSession(t)
	plan := planOf("stmt one", "stmt two", "stmt three")
	mock.ExpectExec("stmt one").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("stmt two").WillReturnError(errors.New("ORA-00959: tablespace does not exist"))

	res, err := Run(context.Background(), sess, plan, ModeApply, false)
	require.Error(t, err)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	require.Equal(t, 1, execErr.Index)
	require.Equal(t, "stmt two", execErr.Statement)

	// Statement one is committed and not rolled back; statement three was
	// never attempted.
	require.Equal(t, 1, res.Executed)
	require.False(t, res.Applied)
	require.Equal(t, StageFailed, res.Stage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunApplyClassifiesConnectivityLoss(t *testing.T) {
	sess, mock := newMockSession(t)
	plan := planOf("stmt one")
	mock.ExpectExec("stmt one").WillReturnError(errors.New("ORA-03113: end-of-file on communication channel"))

	_, err := Run(context.Background(), sess, plan, ModeApply, false)
	require.Error(t, err)
	require.True(t, IsConnectivity(err))
}

func TestRunApplyRefusesUnacknowledgedDestructivePlan(t *testing.T) {
	sess, mock := newMockSession(t)
	plan := planOf("drop tablespace TS1 including contents and datafiles", "create bigfile tablespace TS1")
	plan.Ops[0].Destructive = true
	plan.Ops[0].Kind = KindTablespace
	plan.Ops[0].Object = "TS1"

	_, err := Run(context.Background(), sess, plan, ModeApply, false)
	require.Error(t, err)
	require.True(t, IsConflict(err))
	// Fail-closed: nothing may have been executed.
	require.NoError(t, mock.ExpectationsWereMet())

	// Check mode still lists destructive plans without acknowledgement.
	res, err := Run(context.Background(), sess, plan, ModeCheck, false)
	require.NoError(t, err)
	require.True(t, res.Changed)

	// With acknowledgement the plan applies.
	mock.ExpectExec(plan.Statements[0].SQL).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(plan.Statements[1].SQL).WillReturnResult(sqlmock.NewResult(0, 0))
	res, err = Run(context.Background(), sess, plan, ModeApply, true)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckAndApplyShareThePlan(t *testing.T) {
	sess, mock := newMockSession(t)
	plan := planOf("grant CONNECT to APP")

	checkRes, err := Run(context.Background(), sess, plan, ModeCheck, false)
	require.NoError(t, err)

	mock.ExpectExec("grant CONNECT to APP").WillReturnResult(sqlmock.NewResult(0, 0))
	applyRes, err := Run(context.Background(), sess, plan, ModeApply, false)
	require.NoError(t, err)

	require.Equal(t, checkRes.Plan.SQLTexts(), applyRes.Plan.SQLTexts())
	require.NoError(t, mock.ExpectationsWereMet())
}
