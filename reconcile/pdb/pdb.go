// Package pdb reconciles pluggable databases: creation from the seed,
// open mode convergence, and drop. Open-mode transitions that pass
// through the mounted state render as a close/open statement pair from a
// single change operation.
package pdb

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

const pdbQuery = `select name, open_mode from v$pdbs where name = :name`

const fieldOpenMode = "open_mode"

// Canonical open modes, in v$pdbs spelling.
const (
	modeReadWrite = "READ WRITE"
	modeReadOnly  = "READ ONLY"
	modeMounted   = "MOUNTED"
)

type Handler struct{}

func New() *Handler { return &Handler{} }

func (h *Handler) Kind() reconcile.Kind { return reconcile.KindPDB }

type state struct {
	name     string
	exists   bool
	openMode string

	// Creation-only attributes; the catalog never reports them back.
	adminUser     string
	adminPassword string
	convertPairs  []config.ConvertPair
}

func (s *state) Exists() bool { return s.exists }
func (s *state) Name() string { return s.name }

func (h *Handler) Normalize(res *config.Resource) (reconcile.State, error) {
	spec := res.PDB
	if spec == nil {
		return nil, reconcile.NewValidationErrorf("pdb", "resource has no pdb spec")
	}
	name, err := reconcile.Identifier(spec.Name)
	if err != nil {
		return nil, err
	}
	st := &state{
		name:          name,
		exists:        true,
		adminPassword: spec.AdminPassword,
		convertPairs:  spec.FileNameConvert,
	}
	switch spec.OpenMode {
	case "", "read_write":
		st.openMode = modeReadWrite
	case "read_only":
		st.openMode = modeReadOnly
	case "mounted":
		st.openMode = modeMounted
	default:
		return nil, reconcile.NewValidationErrorf("open_mode", "unknown open mode %q", spec.OpenMode)
	}
	if spec.AdminUser != "" {
		if st.adminUser, err = reconcile.Identifier(spec.AdminUser); err != nil {
			return nil, err
		}
	}
	if strings.Contains(st.adminPassword, `"`) {
		return nil, reconcile.NewValidationErrorf("admin_password", "password must not contain double quotes")
	}
	for _, pair := range st.convertPairs {
		if pair.From == "" || pair.To == "" {
			return nil, reconcile.NewValidationErrorf("file_name_convert", "convert pairs need both sides")
		}
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
	rows, err := sess.QueryContext(ctx, pdbQuery, sql.Named("name", canonical))
	if err != nil {
		return nil, reconcile.ClassifyReadErr(err, "v$pdbs")
	}
	recs, err := reconcile.ScanRows(rows, 2)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return &state{name: canonical}, nil
	}
	return &state{name: canonical, exists: true, openMode: recs[0][1]}, nil
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
			Kind:   reconcile.KindPDB,
			Object: d.name,
			From:   c.openMode,
		}}, nil
	}

	if !c.exists {
		if d.adminUser == "" || d.adminPassword == "" {
			return nil, reconcile.NewValidationErrorf("admin_user",
				"creating pluggable database %s requires admin_user and admin_password", d.name)
		}
		ops := []reconcile.ChangeOp{{
			Verb:   reconcile.VerbCreate,
			Kind:   reconcile.KindPDB,
			Object: d.name,
			To:     d.createClause(),
		}}
		// A new PDB comes up mounted.
		if d.openMode != modeMounted {
			ops = append(ops, reconcile.ChangeOp{
				Verb:   reconcile.VerbAlter,
				Kind:   reconcile.KindPDB,
				Object: d.name,
				Field:  fieldOpenMode,
				From:   modeMounted,
				To:     d.openMode,
			})
		}
		return ops, nil
	}

	if d.openMode != c.openMode {
		return []reconcile.ChangeOp{{
			Verb:   reconcile.VerbAlter,
			Kind:   reconcile.KindPDB,
			Object: d.name,
			Field:  fieldOpenMode,
			From:   c.openMode,
			To:     d.openMode,
		}}, nil
	}
	return nil, nil
}

// createClause is everything after the create keyword.
func (s *state) createClause() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `pluggable database %s admin user %s identified by "%s"`,
		s.name, s.adminUser, s.adminPassword)
	if len(s.convertPairs) > 0 {
		flat := make([]string, 0, len(s.convertPairs)*2)
		for _, pair := range s.convertPairs {
			flat = append(flat, reconcile.QuoteLiteral(pair.From), reconcile.QuoteLiteral(pair.To))
		}
		fmt.Fprintf(&sb, " file_name_convert = (%s)", strings.Join(flat, ", "))
	}
	return sb.String()
}

func (h *Handler) Render(op reconcile.ChangeOp) ([]reconcile.Statement, error) {
	switch op.Verb {
	case reconcile.VerbCreate:
		return []reconcile.Statement{{SQL: "create " + op.To}}, nil
	case reconcile.VerbDrop:
		stmts := make([]reconcile.Statement, 0, 2)
		if op.From == modeReadWrite || op.From == modeReadOnly {
			stmts = append(stmts, reconcile.Statement{
				SQL: fmt.Sprintf("alter pluggable database %s close immediate", op.Object),
			})
		}
		return append(stmts, reconcile.Statement{
			SQL: fmt.Sprintf("drop pluggable database %s including datafiles", op.Object),
		}), nil
	case reconcile.VerbAlter:
		if op.Field != fieldOpenMode {
			break
		}
		var stmts []reconcile.Statement
		if op.From == modeReadWrite || op.From == modeReadOnly {
			stmts = append(stmts, reconcile.Statement{
				SQL: fmt.Sprintf("alter pluggable database %s close immediate", op.Object),
			})
		}
		switch op.To {
		case modeReadWrite:
			stmts = append(stmts, reconcile.Statement{
				SQL: fmt.Sprintf("alter pluggable database %s open", op.Object),
			})
		case modeReadOnly:
			stmts = append(stmts, reconcile.Statement{
				SQL: fmt.Sprintf("alter pluggable database %s open read only", op.Object),
			})
		}
		return stmts, nil
	}
	return nil, errors.AssertionFailedf(
		"pdb handler cannot render verb %s field %q", op.Verb, op.Field)
}
