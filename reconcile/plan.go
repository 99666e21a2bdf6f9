package reconcile

import "sort"

// Statement is one rendered DDL/DCL statement. Binds carries named bind
// values for the positions the driver can parameterize; Oracle DDL accepts
// none, so plans built from DDL templates carry validated identifiers and
// quoted literals in the text instead.
type Statement struct {
	SQL   string
	Binds []any
}

// Plan is the ordered statement sequence for one pass together with the
// change operations that produced it. The same Plan value is used for
// check-mode reporting and for apply-mode execution; this identity is what
// guarantees a dry run reports exactly what a real run would do.
type Plan struct {
	Ops        []ChangeOp
	Statements []Statement
}

func (p Plan) IsEmpty() bool {
	return len(p.Statements) == 0
}

// HasDestructive reports whether any producing operation requires
// drop-and-recreate.
func (p Plan) HasDestructive() bool {
	for _, op := range p.Ops {
		if op.Destructive {
			return true
		}
	}
	return false
}

// HasCreate reports whether any producing operation brings the resource
// into existence.
func (p Plan) HasCreate() bool {
	for _, op := range p.Ops {
		if op.Verb == VerbCreate {
			return true
		}
	}
	return false
}

// SQLTexts returns the statement texts in execution order.
func (p Plan) SQLTexts() []string {
	out := make([]string, len(p.Statements))
	for i, st := range p.Statements {
		out[i] = st.SQL
	}
	return out
}

// BuildPlan orders the operations deterministically and renders each one
// through the handler. Removals precede creations for the same identity,
// creations precede dependent alterations, and equal-phase operations are
// ordered by their normalized sort key.
func BuildPlan(h Handler, ops []ChangeOp) (Plan, error) {
	ordered := make([]ChangeOp, len(ops))
	copy(ordered, ops)
	sort.SliceStable(ordered, func(i, j int) bool {
		if pi, pj := ordered[i].Verb.phase(), ordered[j].Verb.phase(); pi != pj {
			return pi < pj
		}
		return ordered[i].SortKey() < ordered[j].SortKey()
	})

	plan := Plan{Ops: ordered}
	for _, op := range ordered {
		stmts, err := h.Render(op)
		if err != nil {
			return Plan{}, err
		}
		plan.Statements = append(plan.Statements, stmts...)
	}
	return plan, nil
}
