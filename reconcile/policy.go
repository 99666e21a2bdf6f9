package reconcile

import "github.com/cockroachdb/errors"

// Policy selects which side of a desired/current difference produces a
// change operation.
type Policy string

const (
	// PolicyPresent adds elements named in desired that are absent from
	// current and never removes anything.
	PolicyPresent Policy = "present"
	// PolicyAbsent removes elements named in desired that are present in
	// current and ignores everything else.
	PolicyAbsent Policy = "absent"
	// PolicyIdentical performs full symmetric-difference reconciliation.
	// An empty desired set under this policy means "remove everything
	// currently present".
	PolicyIdentical Policy = "identical"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyPresent, PolicyAbsent, PolicyIdentical:
		return Policy(s), nil
	}
	return "", errors.Newf("unknown reconciliation policy %q", s)
}
