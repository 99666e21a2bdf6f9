// Package user reconciles database users: authentication, tablespace
// assignments, profile, account lock and password expiry, plus an
// optional schema purge that drops every object the user owns.
//
// A password cannot be read back from the catalog, so change detection
// relies on an optional probe: a side connection attempted with the
// desired credentials. Without a probe the password is assumed current.
package user

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

const (
	fieldAuthentication = "authentication"
	fieldDefaultTS      = "default_tablespace"
	fieldTemporaryTS    = "temporary_tablespace"
	fieldProfile        = "profile"
	fieldAccount        = "account"
	fieldPassword       = "password"
	fieldObject         = "object"
)

const (
	userQuery = `select username, account_status, default_tablespace, temporary_tablespace, profile, authentication_type, oracle_maintained
  from dba_users
 where username = :name`

	// Owned-object inventory for the schema purge. Generated objects are
	// dropped implicitly with their parent and are excluded.
	objectsQuery = `select object_name, object_type
  from all_objects
 where object_type in ('TABLE', 'VIEW', 'PACKAGE', 'PROCEDURE', 'FUNCTION', 'SEQUENCE',
                       'SYNONYM', 'TYPE', 'DATABASE LINK', 'TABLE PARTITION')
   and owner = :name and generated = 'N'`
)

// ProbeFunc reports whether the stored password for username differs from
// password. It is typically a closure over a side connection config; see
// oraconn.ProbePassword.
type ProbeFunc func(username, password string) (changed bool, err error)

type Handler struct {
	// Probe, when set, detects password drift. Left nil, an unchanged
	// authentication type never re-issues the password.
	Probe ProbeFunc
}

func New() *Handler { return &Handler{} }

func (h *Handler) Kind() reconcile.Kind { return reconcile.KindUser }

type ownedObject struct {
	name string
	typ  string
}

type state struct {
	name             string
	exists           bool
	authType         string // password, external, global, none; "" leaves it alone
	password         string // desired side only
	defaultTS        string
	temporaryTS      string
	profile          string
	locked           *bool
	expired          *bool
	empty            bool
	oracleMaintained bool
	objects          []ownedObject
}

func (s *state) Exists() bool { return s.exists }
func (s *state) Name() string { return s.name }

func (h *Handler) Normalize(res *config.Resource) (reconcile.State, error) {
	spec := res.User
	if spec == nil {
		return nil, reconcile.NewValidationErrorf("user", "resource has no user spec")
	}
	name, err := reconcile.Identifier(spec.Name)
	if err != nil {
		return nil, err
	}
	st := &state{
		name:     name,
		exists:   true,
		authType: spec.AuthenticationType,
		password: spec.Password,
		locked:   spec.Locked,
		expired:  spec.Expired,
		empty:    spec.Empty,
	}
	if st.authType == "password" && st.password == "" {
		return nil, reconcile.NewValidationErrorf("password", "password authentication requires a password")
	}
	if strings.Contains(st.password, `"`) {
		return nil, reconcile.NewValidationErrorf("password", "password must not contain double quotes")
	}
	for field, in := range map[string]struct {
		src string
		dst *string
	}{
		"default_tablespace":   {spec.DefaultTablespace, &st.defaultTS},
		"temporary_tablespace": {spec.TemporaryTablespace, &st.temporaryTS},
		"profile":              {spec.Profile, &st.profile},
	} {
		if in.src == "" {
			continue
		}
		canonical, err := reconcile.Identifier(in.src)
		if err != nil {
			return nil, reconcile.NewValidationErrorf(field, "%v", err)
		}
		*in.dst = canonical
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
	rows, err := sess.QueryContext(ctx, userQuery, sql.Named("name", canonical))
	if err != nil {
		return nil, reconcile.ClassifyReadErr(err, "dba_users")
	}
	recs, err := reconcile.ScanRows(rows, 7)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return &state{name: canonical}, nil
	}
	rec := recs[0]
	locked := strings.Contains(rec[1], "LOCKED")
	expired := strings.Contains(rec[1], "EXPIRED")
	st := &state{
		name:             canonical,
		exists:           true,
		defaultTS:        rec[2],
		temporaryTS:      rec[3],
		profile:          rec[4],
		locked:           &locked,
		expired:          &expired,
		oracleMaintained: rec[6] == "Y",
	}
	switch rec[5] {
	case "EXTERNAL":
		st.authType = "external"
	case "GLOBAL":
		st.authType = "global"
	case "NONE":
		st.authType = "none"
	default:
		st.authType = "password"
	}

	rows, err = sess.QueryContext(ctx, objectsQuery, sql.Named("name", canonical))
	if err != nil {
		return nil, reconcile.ClassifyReadErr(err, "all_objects")
	}
	recs, err = reconcile.ScanRows(rows, 2)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		st.objects = append(st.objects, ownedObject{name: rec[0], typ: rec[1]})
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
		if c.oracleMaintained {
			return nil, reconcile.NewValidationErrorf("name",
				"%s is an oracle-maintained user and cannot be dropped", c.name)
		}
		return []reconcile.ChangeOp{{
			Verb:   reconcile.VerbDrop,
			Kind:   reconcile.KindUser,
			Object: d.name,
		}}, nil
	}

	if !c.exists {
		return []reconcile.ChangeOp{{
			Verb:   reconcile.VerbCreate,
			Kind:   reconcile.KindUser,
			Object: d.name,
			To:     d.createClause(),
		}}, nil
	}

	var ops []reconcile.ChangeOp
	alter := func(field, from, to string) {
		ops = append(ops, reconcile.ChangeOp{
			Verb:   reconcile.VerbAlter,
			Kind:   reconcile.KindUser,
			Object: d.name,
			Field:  field,
			From:   from,
			To:     to,
		})
	}

	passwordHandled := false
	if d.authType != "" && d.authType != c.authType {
		alter(fieldAuthentication, c.authType, d.identifiedClause())
		passwordHandled = true
	}
	if d.defaultTS != "" && d.defaultTS != c.defaultTS {
		alter(fieldDefaultTS, c.defaultTS, d.defaultTS)
	}
	if d.temporaryTS != "" && d.temporaryTS != c.temporaryTS {
		alter(fieldTemporaryTS, c.temporaryTS, d.temporaryTS)
	}
	if d.profile != "" && d.profile != c.profile {
		alter(fieldProfile, c.profile, d.profile)
	}
	if d.locked != nil && (c.locked == nil || *d.locked != *c.locked) {
		verb := "unlock"
		if *d.locked {
			verb = "lock"
		}
		alter(fieldAccount, "", verb)
	}
	wasExpired := c.expired != nil && *c.expired
	if d.expired != nil && *d.expired && !wasExpired {
		alter(fieldPassword, "", "expire")
	}

	// Re-issuing the password both un-expires the account and converges a
	// drifted password; drift is only detectable through the probe.
	if !passwordHandled && d.password != "" {
		switch {
		case d.expired != nil && !*d.expired && wasExpired:
			alter(fieldPassword, "**", d.identifiedClause())
		case h.Probe != nil:
			changed, err := h.Probe(d.name, d.password)
			if err != nil {
				return nil, err
			}
			if changed {
				alter(fieldPassword, "**", d.identifiedClause())
			}
		}
	}

	if d.empty {
		// Purging a schema destroys its data, so applying it demands the
		// same acknowledgement as a drop-and-recreate.
		for _, obj := range c.objects {
			ops = append(ops, reconcile.ChangeOp{
				Verb:        reconcile.VerbDrop,
				Kind:        reconcile.KindUser,
				Object:      d.name,
				Field:       fieldObject,
				Element:     obj.typ + " " + obj.name,
				To:          dropObjectClause(d.name, obj),
				Destructive: true,
			})
		}
	}
	return ops, nil
}

// identifiedClause is the authentication clause of create/alter user.
func (s *state) identifiedClause() string {
	switch s.authType {
	case "external":
		return "identified externally"
	case "global":
		return "identified globally"
	case "none":
		return "no authentication"
	default:
		return fmt.Sprintf(`identified by "%s"`, s.password)
	}
}

// createClause is everything after the create keyword.
func (s *state) createClause() string {
	parts := []string{"user", s.name, s.identifiedClause()}
	if s.defaultTS != "" {
		parts = append(parts, fmt.Sprintf("default tablespace %s quota unlimited on %s", s.defaultTS, s.defaultTS))
	}
	if s.temporaryTS != "" {
		parts = append(parts, "temporary tablespace "+s.temporaryTS)
	}
	if s.profile != "" {
		parts = append(parts, "profile "+s.profile)
	}
	if s.locked != nil && *s.locked {
		parts = append(parts, "account lock")
	}
	if s.expired != nil && *s.expired {
		parts = append(parts, "password expire")
	}
	return strings.Join(parts, " ")
}

// dropObjectClause is everything after the drop keyword for one owned
// object. Catalog object names can carry characters outside the safe
// identifier set, so the name is always double-quoted.
func dropObjectClause(owner string, obj ownedObject) string {
	clause := fmt.Sprintf(`%s %s."%s"`, strings.ToLower(obj.typ), owner, obj.name)
	if obj.typ == "TABLE" {
		clause += " cascade constraints"
	}
	return clause
}

func (h *Handler) Render(op reconcile.ChangeOp) ([]reconcile.Statement, error) {
	switch op.Verb {
	case reconcile.VerbCreate:
		return []reconcile.Statement{{SQL: "create " + op.To}}, nil
	case reconcile.VerbDrop:
		if op.Field == fieldObject {
			return []reconcile.Statement{{SQL: "drop " + op.To}}, nil
		}
		return []reconcile.Statement{{SQL: fmt.Sprintf("drop user %s cascade", op.Object)}}, nil
	case reconcile.VerbAlter:
		switch op.Field {
		case fieldAuthentication:
			return []reconcile.Statement{{
				SQL: fmt.Sprintf("alter user %s %s", op.Object, op.To),
			}}, nil
		case fieldDefaultTS:
			return []reconcile.Statement{{
				SQL: fmt.Sprintf("alter user %s default tablespace %s quota unlimited on %s",
					op.Object, op.To, op.To),
			}}, nil
		case fieldTemporaryTS:
			return []reconcile.Statement{{
				SQL: fmt.Sprintf("alter user %s temporary tablespace %s", op.Object, op.To),
			}}, nil
		case fieldProfile:
			return []reconcile.Statement{{
				SQL: fmt.Sprintf("alter user %s profile %s", op.Object, op.To),
			}}, nil
		case fieldAccount:
			return []reconcile.Statement{{
				SQL: fmt.Sprintf("alter user %s account %s", op.Object, op.To),
			}}, nil
		case fieldPassword:
			if op.To == "expire" {
				return []reconcile.Statement{{
					SQL: fmt.Sprintf("alter user %s password expire", op.Object),
				}}, nil
			}
			return []reconcile.Statement{{
				SQL: fmt.Sprintf("alter user %s %s", op.Object, op.To),
			}}, nil
		}
	}
	return nil, errors.AssertionFailedf(
		"user handler cannot render verb %s field %q", op.Verb, op.Field)
}
