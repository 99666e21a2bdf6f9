package grant

import (
	"strings"
	"testing"

	"github.com/cockroachdb/datadriven"
	"github.com/stretchr/testify/require"

	"github.com/tora-tool/orareconcile/reconcile"
)

// TestPlanDataDriven drives Delta and plan rendering from golden files.
// Command input lines name one element per line: "privilege <phrase>",
// "role <name>", or "object <priv> on <owner>.<name>".
func TestPlanDataDriven(t *testing.T) {
	h := New()
	var desired, current *state

	datadriven.RunTest(t, "testdata/plan", func(t *testing.T, d *datadriven.TestData) string {
		switch d.Cmd {
		case "desired":
			desired = parseTestState(t, d)
			return "ok"
		case "current":
			current = parseTestState(t, d)
			return "ok"
		case "plan":
			var policyStr string
			d.ScanArgs(t, "policy", &policyStr)
			policy, err := reconcile.ParsePolicy(policyStr)
			require.NoError(t, err)

			ops, err := h.Delta(desired, current, policy)
			require.NoError(t, err)
			plan, err := reconcile.BuildPlan(h, ops)
			require.NoError(t, err)
			if plan.IsEmpty() {
				return "<no changes>"
			}
			return strings.Join(plan.SQLTexts(), "\n")
		default:
			t.Fatalf("unknown command %s", d.Cmd)
			return ""
		}
	})
}

func parseTestState(t *testing.T, d *datadriven.TestData) *state {
	t.Helper()
	var grantee string
	d.ScanArgs(t, "grantee", &grantee)
	st := &state{grantee: grantee, exists: true}
	for _, line := range strings.Split(strings.TrimSpace(d.Input), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		class, elem, ok := strings.Cut(line, " ")
		require.Truef(t, ok, "malformed element line %q", line)
		switch class {
		case "privilege":
			st.privileges = append(st.privileges, elem)
		case "role":
			st.roles = append(st.roles, elem)
		case "object":
			st.objects = append(st.objects, elem)
		default:
			t.Fatalf("unknown element class %q", class)
		}
	}
	return st
}
