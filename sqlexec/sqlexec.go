// Package sqlexec runs free-form SQL: a single statement, a multi
// statement script, or a script file. Scripts are split the way
// sqlplus-style sources are written: a trailing slash line marks PL/SQL
// block boundaries, otherwise statements end at a semicolon at end of
// line. A script is one or the other, never a mix.
package sqlexec

import (
	"context"
	"os"
	"regexp"
	"strings"

	"github.com/tora-tool/orareconcile/oraconn"
	"github.com/tora-tool/orareconcile/reconcile"

	"github.com/cockroachdb/errors"
)

var (
	plsqlTrailerRE   = regexp.MustCompile(`/\s*$`)
	plsqlSeparatorRE = regexp.MustCompile(`(?m)^\s*/\s*$`)
	sqlSeparatorRE   = regexp.MustCompile(`(?m);\s*$`)
	selectRE         = regexp.MustCompile(`(?i)^\s*select\s`)
)

// Split cuts a script into individual statements. A script whose last
// non-blank content is a slash line is treated as PL/SQL blocks separated
// by slash lines (the blocks keep their internal semicolons); anything
// else is plain SQL separated by end-of-line semicolons.
func Split(script string) []string {
	sep := sqlSeparatorRE
	if plsqlTrailerRE.MatchString(script) {
		sep = plsqlSeparatorRE
	}
	var out []string
	for _, stmt := range sep.Split(script, -1) {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// IsSelect reports whether sql is a query rather than DML/DDL.
func IsSelect(sql string) bool {
	return selectRE.MatchString(sql)
}

// Result reports what one run did. For a select, Columns and Rows hold
// the fetched data; otherwise Statements lists the executed statements,
// each prefixed with "-- " in check mode.
type Result struct {
	Columns    []string   `json:"columns,omitempty"`
	Rows       [][]string `json:"rows,omitempty"`
	Statements []string   `json:"statements,omitempty"`
}

// Executor runs statements on one session. In check mode nothing is
// executed; statements are only collected for reporting.
type Executor struct {
	sess  oraconn.Session
	check bool
}

func New(sess oraconn.Session, checkMode bool) *Executor {
	return &Executor{sess: sess, check: checkMode}
}

// RunSQL executes a single statement. Selects run even in check mode:
// reading is not a change.
func (e *Executor) RunSQL(ctx context.Context, sqlText string) (*Result, error) {
	if IsSelect(sqlText) {
		return e.runSelect(ctx, sqlText)
	}
	res := &Result{}
	if err := e.exec(ctx, res, 0, sqlText); err != nil {
		return nil, err
	}
	return res, nil
}

// RunScript executes a multi-statement script. A script of the form
// "@path" is read from the named file first.
func (e *Executor) RunScript(ctx context.Context, script string) (*Result, error) {
	if strings.HasPrefix(script, "@") {
		raw, err := os.ReadFile(strings.TrimPrefix(script, "@"))
		if err != nil {
			return nil, errors.Wrap(err, "error reading script file")
		}
		script = string(raw)
	}
	res := &Result{}
	for i, stmt := range Split(script) {
		if err := e.exec(ctx, res, i, stmt); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (e *Executor) exec(ctx context.Context, res *Result, idx int, stmt string) error {
	if e.check {
		res.Statements = append(res.Statements, "-- "+stmt)
		return nil
	}
	if _, err := e.sess.ExecContext(ctx, stmt); err != nil {
		if oraconn.IsConnectivity(err) {
			return &reconcile.ConnectivityError{Err: err}
		}
		return &reconcile.ExecutionError{Index: idx, Statement: stmt, Err: err}
	}
	res.Statements = append(res.Statements, stmt)
	return nil
}

func (e *Executor) runSelect(ctx context.Context, sqlText string) (*Result, error) {
	rows, err := e.sess.QueryContext(ctx, sqlText)
	if err != nil {
		if oraconn.IsConnectivity(err) {
			return nil, &reconcile.ConnectivityError{Err: err}
		}
		return nil, &reconcile.ExecutionError{Statement: sqlText, Err: err}
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, errors.Wrap(err, "error reading result columns")
	}
	data, err := reconcile.ScanRows(rows, len(cols))
	if err != nil {
		return nil, err
	}
	return &Result{Columns: cols, Rows: data}, nil
}
