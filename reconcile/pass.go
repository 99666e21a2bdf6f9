package reconcile

import (
	"context"

	"github.com/tora-tool/orareconcile/config"
	"github.com/tora-tool/orareconcile/oraconn"
)

// Pass runs one full reconciliation for a single resource: snapshot,
// normalize, delta, plan, then run. The session is held for the duration
// of the pass and for nothing else; the engine assumes it is the sole
// writer for that window but takes no cross-pass lock — re-runnability,
// not locking, is the mitigation for concurrent administration.
func Pass(
	ctx context.Context,
	sess oraconn.Session,
	h Handler,
	res *config.Resource,
	mode Mode,
	ackDestructive bool,
) (Result, error) {
	result := Result{Kind: h.Kind(), Stage: StageIdle}

	desired, err := h.Normalize(res)
	if err != nil {
		result.Stage = StageFailed
		return result, err
	}
	result.Name = desired.Name()

	policy, err := ParsePolicy(res.State)
	if err != nil {
		result.Stage = StageFailed
		return result, err
	}

	current, err := h.ReadCurrent(ctx, sess, desired.Name())
	if err != nil {
		// Snapshot failures abort before any plan is built; a hidden
		// catalog view must never be mistaken for an absent resource.
		result.Stage = StageFailed
		return result, err
	}
	result.Stage = StageSnapshotted

	ops, err := h.Delta(desired, current, policy)
	if err != nil {
		result.Stage = StageFailed
		return result, err
	}
	result.Stage = StageDiffed

	plan, err := BuildPlan(h, ops)
	if err != nil {
		result.Stage = StageFailed
		return result, err
	}
	result.Stage = StagePlanned

	// A non-empty plan that never creates the resource can only alter it,
	// and alters against a missing resource cannot succeed. Grants are the
	// canonical case: the grantee must already exist.
	if !current.Exists() && !plan.IsEmpty() && !plan.HasCreate() {
		result.Stage = StageFailed
		return result, &NotFoundError{Kind: h.Kind(), Name: desired.Name()}
	}

	runRes, err := Run(ctx, sess, plan, mode, ackDestructive)
	runRes.Kind = result.Kind
	runRes.Name = result.Name
	return runRes, err
}
