// Package directory reconciles directory objects. A path change is an
// in-place "create or replace"; existing grants on the directory survive.
package directory

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/tora-tool/orareconcile/config"
	"github.com/tora-tool/orareconcile/oraconn"
	"github.com/tora-tool/orareconcile/reconcile"

	"github.com/cockroachdb/errors"
)

const directoryQuery = `select directory_name, directory_path from all_directories where directory_name = :name`

const fieldPath = "path"

type Handler struct{}

func New() *Handler { return &Handler{} }

func (h *Handler) Kind() reconcile.Kind { return reconcile.KindDirectory }

type state struct {
	name   string
	exists bool
	path   string
}

func (s *state) Exists() bool { return s.exists }
func (s *state) Name() string { return s.name }

func (h *Handler) Normalize(res *config.Resource) (reconcile.State, error) {
	spec := res.Directory
	if spec == nil {
		return nil, reconcile.NewValidationErrorf("directory", "resource has no directory spec")
	}
	name, err := reconcile.Identifier(spec.Name)
	if err != nil {
		return nil, err
	}
	if res.State != string(reconcile.PolicyAbsent) && strings.TrimSpace(spec.Path) == "" {
		return nil, reconcile.NewValidationErrorf("path", "a directory path is required")
	}
	return &state{name: name, exists: true, path: spec.Path}, nil
}

func (h *Handler) ReadCurrent(
	ctx context.Context, sess oraconn.Session, name string,
) (reconcile.State, error) {
	canonical, err := reconcile.Identifier(name)
	if err != nil {
		return nil, err
	}
	rows, err := sess.QueryContext(ctx, directoryQuery, sql.Named("name", canonical))
	if err != nil {
		return nil, reconcile.ClassifyReadErr(err, "all_directories")
	}
	recs, err := reconcile.ScanRows(rows, 2)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return &state{name: canonical}, nil
	}
	return &state{name: canonical, exists: true, path: recs[0][1]}, nil
}

func (h *Handler) Delta(
	desired, current reconcile.State, policy reconcile.Policy,
) ([]reconcile.ChangeOp, error) {
	d, ok := desired.(*state)
	if !ok {
		return nil, errors.AssertionFailedf("unexpected desired state %T", desired)
	}
	c, ok := current.(*state)
	if !ok {
		return nil, errors.AssertionFailedf("unexpected current state %T", current)
	}

	if policy == reconcile.PolicyAbsent {
		if !c.exists {
			return nil, nil
		}
		return []reconcile.ChangeOp{{
			Verb:   reconcile.VerbDrop,
			Kind:   reconcile.KindDirectory,
			Object: d.name,
		}}, nil
	}

	if !c.exists {
		return []reconcile.ChangeOp{{
			Verb:   reconcile.VerbCreate,
			Kind:   reconcile.KindDirectory,
			Object: d.name,
			To:     d.path,
		}}, nil
	}
	if d.path != c.path {
		return []reconcile.ChangeOp{{
			Verb:   reconcile.VerbAlter,
			Kind:   reconcile.KindDirectory,
			Object: d.name,
			Field:  fieldPath,
			From:   c.path,
			To:     d.path,
		}}, nil
	}
	return nil, nil
}

func (h *Handler) Render(op reconcile.ChangeOp) ([]reconcile.Statement, error) {
	switch op.Verb {
	case reconcile.VerbCreate:
		return []reconcile.Statement{{
			SQL: fmt.Sprintf("create directory %s as %s", op.Object, reconcile.QuoteLiteral(op.To)),
		}}, nil
	case reconcile.VerbAlter:
		return []reconcile.Statement{{
			SQL: fmt.Sprintf("create or replace directory %s as %s", op.Object, reconcile.QuoteLiteral(op.To)),
		}}, nil
	case reconcile.VerbDrop:
		return []reconcile.Statement{{
			SQL: fmt.Sprintf("drop directory %s", op.Object),
		}}, nil
	}
	return nil, errors.AssertionFailedf("directory handler cannot render verb %s", op.Verb)
}
