// Package facts gathers read-only catalog facts from a database, grouped
// into named subsets. The database subset is always collected; "all"
// expands to every subset and "min" to the database subset alone. The
// result marshals cleanly to JSON.
package facts

import (
	"context"
	"sort"
	"strings"

	"github.com/tora-tool/orareconcile/oraconn"
	"github.com/tora-tool/orareconcile/reconcile"

	"github.com/cockroachdb/errors"
)

const (
	SubsetDatabase   = "database"
	SubsetInstance   = "instance"
	SubsetOption     = "option"
	SubsetParameter  = "parameter"
	SubsetPDB        = "pdb"
	SubsetRAC        = "rac"
	SubsetRedolog    = "redolog"
	SubsetTablespace = "tablespace"
	SubsetUserenv    = "userenv"
	SubsetUser       = "user"
)

var allSubsets = []string{
	SubsetDatabase, SubsetInstance, SubsetOption, SubsetParameter, SubsetPDB,
	SubsetRAC, SubsetRedolog, SubsetTablespace, SubsetUserenv, SubsetUser,
}

const (
	databaseQuery = `select * from v$database`
	instanceQuery = `select * from v$instance`
	optionQuery   = `select parameter, value from v$option order by parameter`
	paramQuery    = `select name, value, isdefault from v$parameter order by name`
	pdbQuery      = `select con_id, rawtohex(guid) guid_hex, name, open_mode, total_size from v$pdbs order by name`
	racQuery      = `select inst_id, instance_name, host_name, startup_time from gv$instance order by inst_id`
	redologQuery  = `select group#, thread#, sequence#, round(bytes/power(1024, 2)) mb, blocksize, archived, status
  from v$log
 order by thread#, group#`
	tablespaceQuery = `select ts.con_id, ts.name, ts.bigfile, df.name datafile_name, round(df.bytes/power(1024, 2)) size_mb
  from v$tablespace ts, v$datafile df
 where df.con_id = ts.con_id and df.ts# = ts.ts#
 order by ts.con_id, ts.name, df.name`
	tempTablespaceQuery = `select ts.con_id, ts.name, ts.bigfile, tf.name tempfile_name, round(tf.bytes/power(1024, 2)) size_mb
  from v$tablespace ts, v$tempfile tf
 where tf.con_id = ts.con_id and tf.ts# = ts.ts#
 order by ts.con_id, ts.name, tf.name`
	userenvQuery = `select sys_context('USERENV','CURRENT_USER') current_user,
       sys_context('USERENV','DATABASE_ROLE') database_role,
       sys_context('USERENV','ISDBA') isdba,
       sys_context('USERENV','ORACLE_HOME') oracle_home,
       to_number(sys_context('USERENV','CON_ID')) con_id,
       sys_context('USERENV','CON_NAME') con_name
  from dual`
	userQuery = `select username, user_id, created from all_users where oracle_maintained = 'N' order by username`
)

// ExpandSubsets resolves the requested subset names including the all and
// min aliases, rejecting unknown names. The database subset is always
// included. The result is sorted.
func ExpandSubsets(requested []string) ([]string, error) {
	want := map[string]bool{SubsetDatabase: true}
	known := make(map[string]bool, len(allSubsets))
	for _, s := range allSubsets {
		known[s] = true
	}
	for _, s := range requested {
		switch {
		case s == "all":
			for _, sub := range allSubsets {
				want[sub] = true
			}
		case s == "min":
			// database only, already included
		case known[s]:
			want[s] = true
		default:
			return nil, errors.Newf("unknown fact subset %q", s)
		}
	}
	out := make([]string, 0, len(want))
	for s := range want {
		out = append(out, s)
	}
	sort.Strings(out)
	return out, nil
}

// Gather collects the requested subsets (pre-expanded) and returns them
// keyed the way operators consume them.
func Gather(ctx context.Context, sess oraconn.Session, subsets []string) (map[string]any, error) {
	out := make(map[string]any, len(subsets))
	for _, subset := range subsets {
		switch subset {
		case SubsetDatabase:
			row, err := selectOneRecord(ctx, sess, databaseQuery, "v$database")
			if err != nil {
				return nil, err
			}
			out["database"] = row
		case SubsetInstance:
			row, err := selectOneRecord(ctx, sess, instanceQuery, "v$instance")
			if err != nil {
				return nil, err
			}
			out["instance"] = row
		case SubsetOption:
			recs, err := selectRecords(ctx, sess, optionQuery, "v$option")
			if err != nil {
				return nil, err
			}
			options := make(map[string]string, len(recs))
			for _, rec := range recs {
				options[rec["parameter"]] = rec["value"]
			}
			out["options"] = options
		case SubsetParameter:
			recs, err := selectRecords(ctx, sess, paramQuery, "v$parameter")
			if err != nil {
				return nil, err
			}
			params := make(map[string]map[string]string, len(recs))
			for _, rec := range recs {
				params[rec["name"]] = map[string]string{
					"value":     rec["value"],
					"isdefault": rec["isdefault"],
				}
			}
			out["parameters"] = params
		case SubsetPDB:
			recs, err := selectRecords(ctx, sess, pdbQuery, "v$pdbs")
			if err != nil {
				return nil, err
			}
			out["pdbs"] = recs
		case SubsetRAC:
			recs, err := selectRecords(ctx, sess, racQuery, "gv$instance")
			if err != nil {
				return nil, err
			}
			out["racs"] = recs
		case SubsetRedolog:
			recs, err := selectRecords(ctx, sess, redologQuery, "v$log")
			if err != nil {
				return nil, err
			}
			out["redologs"] = recs
		case SubsetTablespace:
			recs, err := selectRecords(ctx, sess, tablespaceQuery, "v$tablespace")
			if err != nil {
				return nil, err
			}
			out["tablespaces"] = recs
			if recs, err = selectRecords(ctx, sess, tempTablespaceQuery, "v$tempfile"); err != nil {
				return nil, err
			}
			out["temp_tablespaces"] = recs
		case SubsetUserenv:
			row, err := selectOneRecord(ctx, sess, userenvQuery, "userenv")
			if err != nil {
				return nil, err
			}
			out["userenv"] = row
		case SubsetUser:
			recs, err := selectRecords(ctx, sess, userQuery, "all_users")
			if err != nil {
				return nil, err
			}
			out["users"] = recs
		default:
			return nil, errors.AssertionFailedf("unexpanded fact subset %q", subset)
		}
	}
	return out, nil
}

// selectRecords maps every row to a column-keyed record, with column
// names lowercased.
func selectRecords(ctx context.Context, sess oraconn.Session, query, view string) ([]map[string]string, error) {
	rows, err := sess.QueryContext(ctx, query)
	if err != nil {
		return nil, reconcile.ClassifyReadErr(err, view)
	}
	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, errors.Wrapf(err, "error reading %s columns", view)
	}
	for i, c := range cols {
		cols[i] = strings.ToLower(c)
	}
	data, err := reconcile.ScanRows(rows, len(cols))
	if err != nil {
		return nil, err
	}
	recs := make([]map[string]string, len(data))
	for i, vals := range data {
		rec := make(map[string]string, len(cols))
		for j, col := range cols {
			rec[col] = vals[j]
		}
		recs[i] = rec
	}
	return recs, nil
}

func selectOneRecord(ctx context.Context, sess oraconn.Session, query, view string) (map[string]string, error) {
	recs, err := selectRecords(ctx, sess, query, view)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, errors.Newf("%s returned no rows", view)
	}
	return recs[0], nil
}
