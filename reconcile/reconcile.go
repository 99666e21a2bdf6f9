// Package reconcile implements a declarative reconciliation engine for
// Oracle database objects. One pass snapshots the current server-side
// state through read-only catalog queries, computes a minimal delta
// against the desired state under a reconciliation policy, renders the
// delta into an ordered statement plan, and either reports the plan
// (check mode) or executes it statement by statement (apply mode).
//
// The engine is stateless between passes: all state lives in the target
// database and is re-read every pass. Statements execute autocommitted;
// there is no cross-statement transaction, so a mid-plan failure leaves
// the statements before it committed. Re-running the pass recomputes the
// delta against the partially changed state and produces a smaller
// corrective plan.
package reconcile

import (
	"context"
	"database/sql"

	"github.com/tora-tool/orareconcile/config"
	"github.com/tora-tool/orareconcile/oraconn"

	"github.com/cockroachdb/errors"
)

// Kind tags a resource type. Handlers are selected through a static
// registry keyed by this tag.
type Kind string

const (
	KindGrant      Kind = "grant"
	KindTablespace Kind = "tablespace"
	KindUser       Kind = "user"
	KindRole       Kind = "role"
	KindDirectory  Kind = "directory"
	KindPDB        Kind = "pdb"
)

// State is the normalized record of one resource instance, either desired
// (from operator input) or current (from catalog queries). Both sides are
// normalized before comparison; the engine never compares raw catalog text
// against raw operator text.
type State interface {
	// Exists reports whether the resource is present. A desired state
	// always exists; a current state read for an absent resource does not.
	Exists() bool
	// Name returns the normalized identity of the resource.
	Name() string
}

// Handler implements the reconciliation pipeline for one resource kind:
// normalization of desired input, a read-only catalog snapshot, delta
// computation, and statement rendering.
type Handler interface {
	Kind() Kind

	// Normalize canonicalizes the operator-supplied spec into a comparable
	// desired state. It returns a ValidationError for malformed input.
	Normalize(res *config.Resource) (State, error)

	// ReadCurrent snapshots the live resource from fixed catalog views
	// using bound identity parameters. Absence is reported through
	// State.Exists, not through an error; a privilege-gated view surfaces
	// an InsufficientPrivilegeError instead.
	ReadCurrent(ctx context.Context, sess oraconn.Session, name string) (State, error)

	// Delta computes the minimal typed change operations that take current
	// to desired under the given policy.
	Delta(desired, current State, policy Policy) ([]ChangeOp, error)

	// Render maps one change operation to its DDL/DCL statements.
	Render(op ChangeOp) ([]Statement, error)
}

// Registry is the static kind-to-handler table. It replaces per-call
// dynamic dispatch: every handler is registered once at startup.
type Registry struct {
	handlers map[Kind]Handler
}

func NewRegistry(handlers ...Handler) (*Registry, error) {
	r := &Registry{handlers: make(map[Kind]Handler, len(handlers))}
	for _, h := range handlers {
		if _, ok := r.handlers[h.Kind()]; ok {
			return nil, errors.AssertionFailedf("duplicate handler for kind %s", h.Kind())
		}
		r.handlers[h.Kind()] = h
	}
	return r, nil
}

func (r *Registry) Lookup(kind Kind) (Handler, error) {
	h, ok := r.handlers[kind]
	if !ok {
		return nil, errors.Newf("no handler registered for kind %q", kind)
	}
	return h, nil
}

// ScanRows drains rows into string slices, mapping NULL to "". It is the
// shared decoding path for catalog readers.
func ScanRows(rows *sql.Rows, width int) ([][]string, error) {
	defer rows.Close()
	var out [][]string
	for rows.Next() {
		raw := make([]sql.NullString, width)
		ptrs := make([]any, width)
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, errors.Wrap(err, "error decoding catalog row")
		}
		vals := make([]string, width)
		for i, v := range raw {
			if v.Valid {
				vals[i] = v.String
			}
		}
		out = append(out, vals)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "error collecting catalog rows")
	}
	return out, nil
}

// ClassifyReadErr maps a catalog read failure onto the engine taxonomy:
// lost transport, hidden view, or a plain wrapped error.
func ClassifyReadErr(err error, view string) error {
	switch {
	case oraconn.IsConnectivity(err):
		return &ConnectivityError{Err: err}
	case oraconn.IsInsufficientPrivilege(err):
		return &InsufficientPrivilegeError{View: view, Err: err}
	default:
		return errors.Wrapf(err, "error reading %s", view)
	}
}
