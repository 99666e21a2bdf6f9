// Package tablespace reconciles tablespaces and their datafiles. The
// datafile list is the element set; availability, access mode and the
// database default flag are scalar attributes converged by alter
// statements. File type (bigfile/smallfile) and content type are
// immutable: a mismatch plans a destructive drop-and-recreate.
package tablespace

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/tora-tool/orareconcile/config"
	"github.com/tora-tool/orareconcile/oraconn"
	"github.com/tora-tool/orareconcile/reconcile"

	"github.com/cockroachdb/errors"
)

const (
	fieldAvailability = "availability"
	fieldAccess       = "access"
	fieldDefault      = "default"
	fieldFileType     = "filetype"
	fieldContent      = "content"

	fieldFileAdd        = "datafile.add"
	fieldFileAutoextend = "datafile.autoextend"
	fieldFileDrop       = "datafile.drop"
	fieldFileResize     = "datafile.resize"
)

const (
	tsQuery = `select distinct coalesce(df.online_status, ts.status), ts.status, ts.bigfile, ts.contents
  from dba_tablespaces ts, dba_data_files df, dba_temp_files tf
 where ts.tablespace_name = :name
   and ts.tablespace_name = df.tablespace_name(+)
   and ts.tablespace_name = tf.tablespace_name(+)`

	defaultQuery = `select 1
  from database_properties
 where property_name in ('DEFAULT_PERMANENT_TABLESPACE', 'DEFAULT_TEMP_TABLESPACE')
   and property_value = :name`

	datafileQuery = `select df.file_name, df.bytes, df.autoextensible, df.increment_by * ts.block_size, df.maxbytes
  from dba_tablespaces ts, dba_data_files df
 where ts.tablespace_name = :name
   and ts.tablespace_name = df.tablespace_name
 union all
select tf.file_name, tf.bytes, tf.autoextensible, tf.increment_by * ts.block_size, tf.maxbytes
  from dba_tablespaces ts, dba_temp_files tf
 where ts.tablespace_name = :name
   and ts.tablespace_name = tf.tablespace_name`
)

// A smallfile datafile tops out just under 32G; the server reports that
// ceiling rather than "unlimited", so anything within 100K of it is
// normalized back to unlimited before comparison.
const (
	smallfileCeiling   = 32 << 30
	smallfileTolerance = 100 << 10
)

type Handler struct{}

func New() *Handler { return &Handler{} }

func (h *Handler) Kind() reconcile.Kind { return reconcile.KindTablespace }

type datafile struct {
	path       string
	size       reconcile.Size
	autoextend bool
	next       reconcile.Size
	max        reconcile.Size
}

type state struct {
	name      string
	exists    bool
	bigfile   bool
	content   string // permanent, temp or undo
	online    bool
	readOnly  bool
	isDefault bool
	datafiles []datafile
}

func (s *state) Exists() bool { return s.exists }
func (s *state) Name() string { return s.name }

func (s *state) fileType() string {
	if s.bigfile {
		return "bigfile"
	}
	return "smallfile"
}

// contentClause is the keyword between "create <filetype>" and
// "tablespace"; permanent tablespaces have none.
func (s *state) contentClause() string {
	switch s.content {
	case "undo":
		return "undo"
	case "temp":
		return "temporary"
	}
	return ""
}

// fileKeyword is the datafile keyword for this content type.
func (s *state) fileKeyword() string {
	if s.content == "temp" {
		return "tempfile"
	}
	return "datafile"
}

func (h *Handler) Normalize(res *config.Resource) (reconcile.State, error) {
	spec := res.Tablespace
	if spec == nil {
		return nil, reconcile.NewValidationErrorf("tablespace", "resource has no tablespace spec")
	}
	name, err := reconcile.Identifier(spec.Name)
	if err != nil {
		return nil, err
	}
	st := &state{
		name:      name,
		exists:    true,
		bigfile:   spec.Bigfile,
		content:   spec.Content,
		online:    !spec.Offline,
		readOnly:  spec.ReadOnly,
		isDefault: spec.Default,
	}
	if st.content == "" {
		st.content = "permanent"
	}
	if res.State == string(reconcile.PolicyAbsent) {
		return st, nil
	}

	if len(spec.Datafiles) == 0 {
		return nil, reconcile.NewValidationErrorf("datafiles", "at least one datafile is required")
	}
	if spec.Size == "" {
		return nil, reconcile.NewValidationErrorf("size", "datafile size is required")
	}
	size, err := reconcile.ParseSize(spec.Size)
	if err != nil {
		return nil, err
	}
	var next, max reconcile.Size
	if spec.Autoextend {
		if spec.Next != "" {
			if next, err = reconcile.ParseSize(spec.Next); err != nil {
				return nil, err
			}
		}
		if spec.Max != "" {
			if max, err = reconcile.ParseSize(spec.Max); err != nil {
				return nil, err
			}
			max = normalizeMax(max, st.bigfile)
		}
	}
	seen := make(map[string]bool, len(spec.Datafiles))
	for _, path := range spec.Datafiles {
		if path == "" {
			return nil, reconcile.NewValidationErrorf("datafiles", "empty datafile path")
		}
		if seen[path] {
			return nil, reconcile.NewValidationErrorf("datafiles", "duplicate datafile path %q", path)
		}
		seen[path] = true
		st.datafiles = append(st.datafiles, datafile{
			path:       path,
			size:       size,
			autoextend: spec.Autoextend,
			next:       next,
			max:        max,
		})
	}
	return st, nil
}

// normalizeMax folds a smallfile maximum at the 32G ceiling back into the
// unlimited keyword so catalog values compare equal to operator intent.
func normalizeMax(max reconcile.Size, bigfile bool) reconcile.Size {
	if bigfile || max.Unlimited {
		return max
	}
	d := int64(smallfileCeiling) - max.Bytes
	if d < 0 {
		d = -d
	}
	if d <= smallfileTolerance {
		return reconcile.Size{Unlimited: true}
	}
	return max
}

func (h *Handler) ReadCurrent(
	ctx context.Context, sess oraconn.Session, name string,
) (reconcile.State, error) {
	canonical, err := reconcile.Identifier(name)
	if err != nil {
		return nil, err
	}

	rows, err := sess.QueryContext(ctx, tsQuery, sql.Named("name", canonical))
	if err != nil {
		return nil, reconcile.ClassifyReadErr(err, "dba_tablespaces")
	}
	recs, err := reconcile.ScanRows(rows, 4)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return &state{name: canonical}, nil
	}
	rec := recs[0]
	st := &state{
		name:     canonical,
		exists:   true,
		online:   rec[0] == "ONLINE",
		readOnly: rec[1] == "READ ONLY",
		bigfile:  rec[2] == "YES",
	}
	switch rec[3] {
	case "UNDO":
		st.content = "undo"
	case "TEMPORARY":
		st.content = "temp"
	default:
		st.content = "permanent"
	}

	rows, err = sess.QueryContext(ctx, defaultQuery, sql.Named("name", canonical))
	if err != nil {
		return nil, reconcile.ClassifyReadErr(err, "database_properties")
	}
	recs, err = reconcile.ScanRows(rows, 1)
	if err != nil {
		return nil, err
	}
	st.isDefault = len(recs) > 0

	rows, err = sess.QueryContext(ctx, datafileQuery, sql.Named("name", canonical))
	if err != nil {
		return nil, reconcile.ClassifyReadErr(err, "dba_data_files")
	}
	recs, err = reconcile.ScanRows(rows, 5)
	if err != nil {
		return nil, err
	}
	for _, rec := range recs {
		df, err := decodeDatafile(rec, st.bigfile)
		if err != nil {
			return nil, err
		}
		st.datafiles = append(st.datafiles, df)
	}
	return st, nil
}

func decodeDatafile(rec []string, bigfile bool) (datafile, error) {
	df := datafile{path: rec[0], autoextend: rec[2] == "YES"}
	var err error
	if df.size.Bytes, err = parseCatalogBytes(rec[1]); err != nil {
		return df, err
	}
	if df.autoextend {
		if df.next.Bytes, err = parseCatalogBytes(rec[3]); err != nil {
			return df, err
		}
		if df.max.Bytes, err = parseCatalogBytes(rec[4]); err != nil {
			return df, err
		}
		df.max = normalizeMax(df.max, bigfile)
	}
	return df, nil
}

func parseCatalogBytes(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "error decoding catalog byte count %q", s)
	}
	return n, nil
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
			Kind:   reconcile.KindTablespace,
			Object: d.name,
		}}, nil
	}

	if !c.exists {
		return d.createOps(false), nil
	}

	// File type and content type cannot be altered in place.
	if c.bigfile != d.bigfile {
		return d.rebuildOps(fieldFileType, c.fileType(), d.fileType()), nil
	}
	if c.content != d.content {
		return d.rebuildOps(fieldContent, c.content, d.content), nil
	}

	ops := d.datafileOps(c, policy)

	if c.online != d.online {
		to, from := "online", "offline"
		if !d.online {
			to, from = from, to
		}
		ops = append(ops, d.alterOp(fieldAvailability, from, to))
	}
	if c.readOnly != d.readOnly {
		to, from := "read only", "read write"
		if !d.readOnly {
			to, from = from, to
		}
		ops = append(ops, d.alterOp(fieldAccess, from, to))
	}
	// The default flag only pulls, never pushes: a tablespace that is the
	// database default stays so unless another run promotes a replacement.
	if d.isDefault && !c.isDefault && d.content != "undo" {
		ops = append(ops, d.alterOp(fieldDefault, "", d.contentClause()))
	}
	return ops, nil
}

// createOps plans the creation of the whole tablespace plus the follow-up
// alters for the default flag and read-only access.
func (s *state) createOps(destructive bool) []reconcile.ChangeOp {
	ops := []reconcile.ChangeOp{{
		Verb:        reconcile.VerbCreate,
		Kind:        reconcile.KindTablespace,
		Object:      s.name,
		To:          s.createClause(),
		Destructive: destructive,
	}}
	if s.isDefault && s.content != "undo" {
		ops = append(ops, s.alterOp(fieldDefault, "", s.contentClause()))
	}
	if s.readOnly {
		ops = append(ops, s.alterOp(fieldAccess, "read write", "read only"))
	}
	if !s.online {
		ops = append(ops, s.alterOp(fieldAvailability, "online", "offline"))
	}
	return ops
}

// rebuildOps plans the destructive drop-and-recreate needed when an
// immutable attribute differs.
func (s *state) rebuildOps(field, from, to string) []reconcile.ChangeOp {
	ops := []reconcile.ChangeOp{{
		Verb:        reconcile.VerbDrop,
		Kind:        reconcile.KindTablespace,
		Object:      s.name,
		Field:       field,
		From:        from,
		To:          to,
		Destructive: true,
	}}
	return append(ops, s.createOps(true)...)
}

func (s *state) alterOp(field, from, to string) reconcile.ChangeOp {
	return reconcile.ChangeOp{
		Verb:   reconcile.VerbAlter,
		Kind:   reconcile.KindTablespace,
		Object: s.name,
		Field:  field,
		From:   from,
		To:     to,
	}
}

// datafileOps reconciles the datafile set: grow or re-tune files present
// on both sides, add missing ones, and under the identical policy drop
// the unwanted ones.
func (s *state) datafileOps(c *state, policy reconcile.Policy) []reconcile.ChangeOp {
	currentByPath := make(map[string]datafile, len(c.datafiles))
	for _, df := range c.datafiles {
		currentByPath[df.path] = df
	}

	var ops []reconcile.ChangeOp
	desiredPaths := make(map[string]bool, len(s.datafiles))
	for _, df := range s.datafiles {
		desiredPaths[df.path] = true
		prev, exists := currentByPath[df.path]
		if !exists {
			ops = append(ops, reconcile.ChangeOp{
				Verb:    reconcile.VerbAlter,
				Kind:    reconcile.KindTablespace,
				Object:  s.name,
				Field:   fieldFileAdd,
				Element: df.path,
				To:      fmt.Sprintf("add %s %s", s.fileKeyword(), df.fileClause()),
			})
			continue
		}
		// Fixed-size files only ever grow; shrinking risks ORA-03297 and
		// is left to the operator.
		if !df.autoextend && prev.size.Less(df.size) {
			ops = append(ops, reconcile.ChangeOp{
				Verb:    reconcile.VerbAlter,
				Kind:    reconcile.KindTablespace,
				Object:  s.name,
				Field:   fieldFileResize,
				Element: df.path,
				From:    prev.size.String(),
				To: fmt.Sprintf("%s %s resize %s",
					s.fileKeyword(), reconcile.QuoteLiteral(df.path), df.size),
			})
		}
		if df.needsAutoextendChange(prev) {
			ops = append(ops, reconcile.ChangeOp{
				Verb:    reconcile.VerbAlter,
				Kind:    reconcile.KindTablespace,
				Object:  s.name,
				Field:   fieldFileAutoextend,
				Element: df.path,
				To: fmt.Sprintf("%s %s%s",
					s.fileKeyword(), reconcile.QuoteLiteral(df.path), df.autoextendClause()),
			})
		}
	}
	if policy == reconcile.PolicyIdentical {
		for _, df := range c.datafiles {
			if !desiredPaths[df.path] {
				ops = append(ops, reconcile.ChangeOp{
					Verb:    reconcile.VerbAlter,
					Kind:    reconcile.KindTablespace,
					Object:  s.name,
					Field:   fieldFileDrop,
					Element: df.path,
					To:      fmt.Sprintf("drop %s %s", s.fileKeyword(), reconcile.QuoteLiteral(df.path)),
				})
			}
		}
	}
	return ops
}

// needsAutoextendChange reports whether the autoextend clause must be
// re-issued: the flag flipped, or it is on and a tuned bound differs.
func (df datafile) needsAutoextendChange(prev datafile) bool {
	if df.autoextend != prev.autoextend {
		return true
	}
	if !df.autoextend {
		return false
	}
	if !df.next.IsZero() && !df.next.Equal(prev.next) {
		return true
	}
	if !df.max.IsZero() && !df.max.Equal(prev.max) {
		return true
	}
	return false
}

// fileClause renders the full file specification used by create and add:
// '<path>' size <n> reuse autoextend ...
func (df datafile) fileClause() string {
	return fmt.Sprintf("%s size %s reuse%s",
		reconcile.QuoteLiteral(df.path), df.size, df.autoextendClause())
}

func (df datafile) autoextendClause() string {
	if !df.autoextend {
		return " autoextend off"
	}
	var sb strings.Builder
	sb.WriteString(" autoextend on")
	if !df.next.IsZero() {
		fmt.Fprintf(&sb, " next %s", df.next)
	}
	if !df.max.IsZero() {
		fmt.Fprintf(&sb, " maxsize %s", df.max)
	}
	return sb.String()
}

// createClause is everything after the create keyword.
func (s *state) createClause() string {
	parts := []string{s.fileType()}
	if clause := s.contentClause(); clause != "" {
		parts = append(parts, clause)
	}
	parts = append(parts, "tablespace", s.name, s.fileKeyword())
	specs := make([]string, len(s.datafiles))
	for i, df := range s.datafiles {
		specs[i] = df.fileClause()
	}
	parts = append(parts, strings.Join(specs, ", "))
	return strings.Join(parts, " ")
}

func (h *Handler) Render(op reconcile.ChangeOp) ([]reconcile.Statement, error) {
	switch op.Verb {
	case reconcile.VerbCreate:
		return []reconcile.Statement{{SQL: "create " + op.To}}, nil
	case reconcile.VerbDrop:
		return []reconcile.Statement{{
			SQL: fmt.Sprintf("drop tablespace %s including contents and datafiles", op.Object),
		}}, nil
	case reconcile.VerbAlter:
		switch op.Field {
		case fieldAvailability, fieldAccess:
			return []reconcile.Statement{{
				SQL: fmt.Sprintf("alter tablespace %s %s", op.Object, op.To),
			}}, nil
		case fieldDefault:
			if op.To != "" {
				return []reconcile.Statement{{
					SQL: fmt.Sprintf("alter database default %s tablespace %s", op.To, op.Object),
				}}, nil
			}
			return []reconcile.Statement{{
				SQL: fmt.Sprintf("alter database default tablespace %s", op.Object),
			}}, nil
		case fieldFileAdd, fieldFileDrop:
			return []reconcile.Statement{{
				SQL: fmt.Sprintf("alter tablespace %s %s", op.Object, op.To),
			}}, nil
		case fieldFileResize, fieldFileAutoextend:
			return []reconcile.Statement{{SQL: "alter database " + op.To}}, nil
		}
	}
	return nil, errors.AssertionFailedf(
		"tablespace handler cannot render verb %s field %q", op.Verb, op.Field)
}
