// Package role reconciles database roles and their authentication
// method. The catalog never exposes a role's password, so an unchanged
// password method is left alone rather than re-issued.
package role

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

const roleQuery = `select role, authentication_type from dba_roles where role = :name`

const fieldAuthentication = "authentication"

type Handler struct{}

func New() *Handler { return &Handler{} }

func (h *Handler) Kind() reconcile.Kind { return reconcile.KindRole }

type state struct {
	name   string
	exists bool
	method string // none, password, application, external, global
	value  string // desired side only: password or authorization package
}

func (s *state) Exists() bool { return s.exists }
func (s *state) Name() string { return s.name }

func (h *Handler) Normalize(res *config.Resource) (reconcile.State, error) {
	spec := res.Role
	if spec == nil {
		return nil, reconcile.NewValidationErrorf("role", "resource has no role spec")
	}
	name, err := reconcile.Identifier(spec.Name)
	if err != nil {
		return nil, err
	}
	st := &state{name: name, exists: true, method: spec.IdentifiedMethod, value: spec.IdentifiedValue}
	if st.method == "" {
		st.method = "none"
	}
	switch st.method {
	case "password":
		if st.value == "" {
			return nil, reconcile.NewValidationErrorf("identified_value",
				"password authentication requires identified_value")
		}
		if strings.Contains(st.value, `"`) {
			return nil, reconcile.NewValidationErrorf("identified_value",
				"password must not contain double quotes")
		}
	case "application":
		if st.value == "" {
			return nil, reconcile.NewValidationErrorf("identified_value",
				"application authentication requires identified_value")
		}
		canonical, err := reconcile.QualifiedIdentifier(st.value)
		if err != nil {
			return nil, err
		}
		st.value = canonical
	}
	return st, nil
}

func (h *Handler) ReadCurrent(
	ctx context.Context, sess oraconn.Session, name string,
) (reconcile.State, error) {
	canonical, err := reconcile.Identifier(name)
	if err != nil {
		return nil, err
	}
	rows, err := sess.QueryContext(ctx, roleQuery, sql.Named("name", canonical))
	if err != nil {
		return nil, reconcile.ClassifyReadErr(err, "dba_roles")
	}
	recs, err := reconcile.ScanRows(rows, 2)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return &state{name: canonical}, nil
	}
	st := &state{name: canonical, exists: true}
	switch recs[0][1] {
	case "PASSWORD":
		st.method = "password"
	case "APPLICATION":
		st.method = "application"
	case "EXTERNAL":
		st.method = "external"
	case "GLOBAL":
		st.method = "global"
	default:
		st.method = "none"
	}
	return st, nil
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
			Kind:   reconcile.KindRole,
			Object: d.name,
		}}, nil
	}

	if !c.exists {
		return []reconcile.ChangeOp{{
			Verb:   reconcile.VerbCreate,
			Kind:   reconcile.KindRole,
			Object: d.name,
			To:     d.identifiedClause(),
		}}, nil
	}
	if d.method != c.method {
		return []reconcile.ChangeOp{{
			Verb:   reconcile.VerbAlter,
			Kind:   reconcile.KindRole,
			Object: d.name,
			Field:  fieldAuthentication,
			From:   c.method,
			To:     d.identifiedClause(),
		}}, nil
	}
	return nil, nil
}

func (s *state) identifiedClause() string {
	switch s.method {
	case "password":
		return fmt.Sprintf(`identified by "%s"`, s.value)
	case "application":
		return "identified using " + s.value
	case "external":
		return "identified externally"
	case "global":
		return "identified globally"
	default:
		return "not identified"
	}
}

func (h *Handler) Render(op reconcile.ChangeOp) ([]reconcile.Statement, error) {
	switch op.Verb {
	case reconcile.VerbCreate:
		return []reconcile.Statement{{
			SQL: fmt.Sprintf("create role %s %s", op.Object, op.To),
		}}, nil
	case reconcile.VerbAlter:
		return []reconcile.Statement{{
			SQL: fmt.Sprintf("alter role %s %s", op.Object, op.To),
		}}, nil
	case reconcile.VerbDrop:
		return []reconcile.Statement{{
			SQL: fmt.Sprintf("drop role %s", op.Object),
		}}, nil
	}
	return nil, errors.AssertionFailedf("role handler cannot render verb %s", op.Verb)
}
