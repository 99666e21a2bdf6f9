// Package grant reconciles the privilege surface of one grantee: system
// privileges, granted roles, and object privileges, each treated as an
// independent set under the shared policy semantics.
package grant

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

// Element classes. The class rides on ChangeOp.Field so Render can tell a
// role grant from an object grant without re-parsing the element text.
const (
	fieldPrivilege = "privilege"
	fieldRole      = "role"
	fieldObject    = "object"
)

const (
	granteeQuery = `select username from dba_users where username = :grantee
union all
select role from dba_roles where role = :grantee`
	sysPrivQuery  = `select privilege from dba_sys_privs where grantee = :grantee`
	rolePrivQuery = `select granted_role from dba_role_privs where grantee = :grantee`
	tabPrivQuery  = `select privilege, owner, table_name from dba_tab_privs where grantee = :grantee`
)

type Handler struct{}

func New() *Handler { return &Handler{} }

func (h *Handler) Kind() reconcile.Kind { return reconcile.KindGrant }

// state holds the three privilege sets of one grantee. Object privileges
// are encoded as "PRIV on OWNER.NAME" so the set delta and the rendered
// statement share one representation.
type state struct {
	grantee    string
	exists     bool
	privileges []string
	roles      []string
	objects    []string
}

func (s *state) Exists() bool { return s.exists }
func (s *state) Name() string { return s.grantee }

func (h *Handler) Normalize(res *config.Resource) (reconcile.State, error) {
	spec := res.Grant
	if spec == nil {
		return nil, reconcile.NewValidationErrorf("grant", "resource has no grant spec")
	}
	grantee, err := reconcile.Identifier(spec.Grantee)
	if err != nil {
		return nil, err
	}
	st := &state{grantee: grantee, exists: true}
	for _, p := range spec.Privileges {
		phrase, err := privilegePhrase(p)
		if err != nil {
			return nil, err
		}
		st.privileges = append(st.privileges, phrase)
	}
	for _, r := range spec.Roles {
		role, err := reconcile.Identifier(r)
		if err != nil {
			return nil, err
		}
		st.roles = append(st.roles, role)
	}
	for _, o := range spec.Objects {
		elem, err := objectElement(o.Privilege, o.Owner, o.Name)
		if err != nil {
			return nil, err
		}
		st.objects = append(st.objects, elem)
	}
	return st, nil
}

func (h *Handler) ReadCurrent(
	ctx context.Context, sess oraconn.Session, name string,
) (reconcile.State, error) {
	grantee, err := reconcile.Identifier(name)
	if err != nil {
		return nil, err
	}
	// Grants never create their grantee, so the handler has to know whether
	// the user or role is actually there. An empty privilege surface alone
	// cannot distinguish a fresh grantee from a missing one.
	rows, err := sess.QueryContext(ctx, granteeQuery, sql.Named("grantee", grantee))
	if err != nil {
		return nil, reconcile.ClassifyReadErr(err, "dba_users")
	}
	recs, err := reconcile.ScanRows(rows, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return &state{grantee: grantee}, nil
	}
	st := &state{grantee: grantee, exists: true}

	rows, err = sess.QueryContext(ctx, sysPrivQuery, sql.Named("grantee", grantee))
	if err != nil {
		return nil, reconcile.ClassifyReadErr(err, "dba_sys_privs")
	}
	recs, err = reconcile.ScanRows(rows, 1)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		st.privileges = append(st.privileges, rec[0])
	}

	rows, err = sess.QueryContext(ctx, rolePrivQuery, sql.Named("grantee", grantee))
	if err != nil {
		return nil, reconcile.ClassifyReadErr(err, "dba_role_privs")
	}
	recs, err = reconcile.ScanRows(rows, 1)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		st.roles = append(st.roles, rec[0])
	}

	rows, err = sess.QueryContext(ctx, tabPrivQuery, sql.Named("grantee", grantee))
	if err != nil {
		return nil, reconcile.ClassifyReadErr(err, "dba_tab_privs")
	}
	recs, err = reconcile.ScanRows(rows, 3)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		st.objects = append(st.objects, fmt.Sprintf("%s on %s.%s", rec[0], rec[1], rec[2]))
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

	var ops []reconcile.ChangeOp
	for _, class := range []struct {
		field            string
		desired, current []string
	}{
		{fieldPrivilege, d.privileges, c.privileges},
		{fieldRole, d.roles, c.roles},
		{fieldObject, d.objects, c.objects},
	} {
		add, remove := reconcile.SetDelta(class.desired, class.current, policy)
		for _, elem := range remove {
			ops = append(ops, reconcile.ChangeOp{
				Verb:    reconcile.VerbRevoke,
				Kind:    reconcile.KindGrant,
				Object:  d.grantee,
				Field:   class.field,
				Element: elem,
			})
		}
		for _, elem := range add {
			ops = append(ops, reconcile.ChangeOp{
				Verb:    reconcile.VerbGrant,
				Kind:    reconcile.KindGrant,
				Object:  d.grantee,
				Field:   class.field,
				Element: elem,
			})
		}
	}
	return ops, nil
}

func (h *Handler) Render(op reconcile.ChangeOp) ([]reconcile.Statement, error) {
	switch op.Verb {
	case reconcile.VerbGrant:
		return []reconcile.Statement{
			{SQL: fmt.Sprintf("grant %s to %s", op.Element, op.Object)},
		}, nil
	case reconcile.VerbRevoke:
		return []reconcile.Statement{
			{SQL: fmt.Sprintf("revoke %s from %s", op.Element, op.Object)},
		}, nil
	}
	return nil, errors.AssertionFailedf("grant handler cannot render verb %s", op.Verb)
}

// privilegePhrase validates a system privilege name. Privileges are
// multi-word keyword phrases ("CREATE SESSION", "SELECT ANY TABLE");
// every word must itself be identifier-safe.
func privilegePhrase(p string) (string, error) {
	words := strings.Fields(p)
	if len(words) == 0 {
		return "", reconcile.NewValidationErrorf("privileges", "empty privilege name")
	}
	for i, w := range words {
		canonical, err := reconcile.Identifier(w)
		if err != nil {
			return "", reconcile.NewValidationErrorf("privileges", "%q is not a safe privilege name", p)
		}
		words[i] = canonical
	}
	return strings.Join(words, " "), nil
}

func objectElement(privilege, owner, name string) (string, error) {
	phrase, err := privilegePhrase(privilege)
	if err != nil {
		return "", err
	}
	obj, err := reconcile.QualifiedIdentifier(owner + "." + name)
	if err != nil {
		return "", err
	}
	return phrase + " on " + obj, nil
}
