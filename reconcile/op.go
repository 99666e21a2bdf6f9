package reconcile

import "strings"

// Verb tags one change operation.
type Verb int

const (
	VerbCreate Verb = iota
	VerbDrop
	VerbAlter
	VerbGrant
	VerbRevoke
)

func (v Verb) String() string {
	switch v {
	case VerbCreate:
		return "create"
	case VerbDrop:
		return "drop"
	case VerbAlter:
		return "alter"
	case VerbGrant:
		return "grant"
	case VerbRevoke:
		return "revoke"
	}
	return "unknown"
}

// phase orders verbs within a plan: removals run before creations so a
// replaced element never collides with its own old name, creations run
// before the alterations that depend on the parent existing.
func (v Verb) phase() int {
	switch v {
	case VerbDrop, VerbRevoke:
		return 0
	case VerbCreate:
		return 1
	case VerbGrant:
		return 2
	default:
		return 3
	}
}

// ChangeOp is one immutable typed change. It carries enough data for the
// owning handler to render its statements and nothing else.
type ChangeOp struct {
	Verb    Verb
	Kind    Kind
	Object  string // normalized resource identity
	Element string // member element (role, privilege, datafile path, ...)
	Field   string // altered attribute, for Alter
	From    string
	To      string

	// Destructive marks a change achievable only by drop-and-recreate.
	// The executor refuses such plans without explicit acknowledgement.
	Destructive bool
}

// SortKey is the normalized ordering key: two runs over the same delta
// always order equal-phase operations identically.
func (op ChangeOp) SortKey() string {
	return strings.Join([]string{string(op.Kind), op.Object, op.Field, op.Element}, "\x00")
}
