package reconcile

import "sort"

// SetDelta compares the desired and current member sets of one resource
// and returns the members to add and to remove under the given policy.
// Inputs need not be sorted or deduplicated; outputs are sorted, which
// keeps downstream plans deterministic.
func SetDelta(desired, current []string, policy Policy) (add, remove []string) {
	d := sortedUnique(desired)
	c := sortedUnique(current)

	var onlyDesired, onlyCurrent, both []string
	i, j := 0, 0
	for i < len(d) && j < len(c) {
		switch {
		case d[i] < c[j]:
			onlyDesired = append(onlyDesired, d[i])
			i++
		case d[i] > c[j]:
			onlyCurrent = append(onlyCurrent, c[j])
			j++
		default:
			both = append(both, d[i])
			i++
			j++
		}
	}
	onlyDesired = append(onlyDesired, d[i:]...)
	onlyCurrent = append(onlyCurrent, c[j:]...)

	switch policy {
	case PolicyPresent:
		return onlyDesired, nil
	case PolicyAbsent:
		return nil, both
	default: // PolicyIdentical
		return onlyDesired, onlyCurrent
	}
}

func sortedUnique(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	dst := out[:1]
	for _, s := range out[1:] {
		if s != dst[len(dst)-1] {
			dst = append(dst, s)
		}
	}
	return dst
}
