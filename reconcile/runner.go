package reconcile

import (
	"context"

	"github.com/tora-tool/orareconcile/oraconn"
)

// Mode selects whether a pass reports its plan or executes it.
type Mode int

const (
	// ModeCheck executes nothing and reports the plan.
	ModeCheck Mode = iota
	// ModeApply executes the plan statement by statement, each
	// autocommitted independently.
	ModeApply
)

func (m Mode) String() string {
	if m == ModeApply {
		return "apply"
	}
	return "check"
}

// Stage tracks how far a pass progressed. It is reported on the result so
// a caller can tell a snapshot failure from a mid-plan failure.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageSnapshotted Stage = "snapshotted"
	StageDiffed      Stage = "diffed"
	StagePlanned     Stage = "planned"
	StageReported    Stage = "reported"
	StageExecuting   Stage = "executing"
	StageSucceeded   Stage = "succeeded"
	StageFailed      Stage = "failed"
)

// Result is the outcome of one reconciliation pass.
type Result struct {
	Kind    Kind
	Name    string
	Stage   Stage
	Plan    Plan
	Changed bool
	// Applied is true only when every statement executed. Executed counts
	// the statements that committed; on a mid-plan failure it is the index
	// of the failing statement, and those before it are NOT rolled back.
	Applied  bool
	Executed int
}

// Run executes or reports a plan. In apply mode, a plan containing
// destructive operations is refused with a ConflictError unless
// ackDestructive is set; nothing is executed in that case. The first
// rejected statement stops the run: the partial Result is returned
// together with an ExecutionError (or ConnectivityError when the
// transport died).
func Run(ctx context.Context, sess oraconn.Session, plan Plan, mode Mode, ackDestructive bool) (Result, error) {
	res := Result{
		Plan:    plan,
		Changed: !plan.IsEmpty(),
		Stage:   StageReported,
	}
	if mode == ModeCheck {
		return res, nil
	}
	if plan.HasDestructive() && !ackDestructive {
		res.Stage = StageFailed
		for _, op := range plan.Ops {
			if op.Destructive {
				return res, &ConflictError{Kind: op.Kind, Name: op.Object}
			}
		}
	}
	res.Stage = StageExecuting
	for i, st := range plan.Statements {
		if _, err := sess.ExecContext(ctx, st.SQL, st.Binds...); err != nil {
			res.Stage = StageFailed
			if oraconn.IsConnectivity(err) {
				return res, &ConnectivityError{Err: err}
			}
			return res, &ExecutionError{Index: i, Statement: st.SQL, Err: err}
		}
		res.Executed++
	}
	res.Applied = true
	res.Stage = StageSucceeded
	return res, nil
}
