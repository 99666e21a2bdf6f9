package reconcile

import (
	"regexp"
	"strings"
)

// Identifiers cannot be bound by the driver, so every name interpolated
// into statement text must first pass this pattern. Anything needing
// quoting is rejected rather than quoted.
var identifierRE = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,127}$`)

// Identifier validates name against the safe identifier pattern and
// returns its canonical (upper-case) form.
func Identifier(name string) (string, error) {
	if !identifierRE.MatchString(name) {
		return "", NewValidationErrorf("identifier", "%q is not a safe identifier", name)
	}
	return strings.ToUpper(name), nil
}

// QualifiedIdentifier validates a dotted name (owner.object) part by part.
func QualifiedIdentifier(name string) (string, error) {
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return "", NewValidationErrorf("identifier", "%q has too many qualifiers", name)
	}
	for i, part := range parts {
		canonical, err := Identifier(part)
		if err != nil {
			return "", err
		}
		parts[i] = canonical
	}
	return strings.Join(parts, "."), nil
}

// QuoteLiteral renders s as a single-quoted SQL string literal for the
// value positions of DDL, which Oracle cannot parameterize.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
