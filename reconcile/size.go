package reconcile

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Size models an Oracle size clause: a byte count or the keyword
// "unlimited". Sizes are 1024-based; "100M" is 100*1024*1024 bytes.
type Size struct {
	Bytes     int64
	Unlimited bool
}

var sizeUnits = "KMGTPE"

var sizeRE = regexp.MustCompile(`^(\d+(?:\.\d+)?)([KMGTPEkmgtpe])$`)

// ParseSize accepts a plain byte count, a value with a K/M/G/T/P/E suffix,
// or "unlimited".
func ParseSize(s string) (Size, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Size{}, NewValidationErrorf("size", "empty size clause")
	}
	if strings.EqualFold(s, "unlimited") {
		return Size{Unlimited: true}, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if n < 0 {
			return Size{}, NewValidationErrorf("size", "negative size %q", s)
		}
		return Size{Bytes: n}, nil
	}
	m := sizeRE.FindStringSubmatch(s)
	if m == nil {
		return Size{}, NewValidationErrorf("size", "malformed size clause %q", s)
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Size{}, NewValidationErrorf("size", "malformed size clause %q", s)
	}
	exp := strings.Index(sizeUnits, strings.ToUpper(m[2])) + 1
	mult := float64(1)
	for i := 0; i < exp; i++ {
		mult *= 1024
	}
	return Size{Bytes: int64(value * mult)}, nil
}

// IsZero reports an unset size clause.
func (s Size) IsZero() bool {
	return !s.Unlimited && s.Bytes == 0
}

// String renders the canonical clause: the largest unit that divides the
// byte count evenly, so 104857600 comes back as "100M".
func (s Size) String() string {
	if s.Unlimited {
		return "unlimited"
	}
	num := s.Bytes
	for _, unit := range append([]string{""}, strings.Split(sizeUnits, "")...) {
		if num%1024 != 0 || num == 0 {
			return fmt.Sprintf("%d%s", num, unit)
		}
		num /= 1024
	}
	return fmt.Sprintf("%dE", num)
}

func (s Size) Equal(o Size) bool {
	if s.Unlimited || o.Unlimited {
		return s.Unlimited && o.Unlimited
	}
	return s.Bytes == o.Bytes
}

func (s Size) Less(o Size) bool {
	if s.Unlimited {
		return false
	}
	if o.Unlimited {
		return true
	}
	return s.Bytes < o.Bytes
}
