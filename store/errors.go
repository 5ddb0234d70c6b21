package store

import (
	"fmt"
	"strings"

	"github.com/skridlevsky/thoughtgraph/types"
)

// ErrPolicyViolation matches every *PolicyViolation via errors.Is.
var ErrPolicyViolation = fmt.Errorf("policy violation")

// ErrConsistencyFault matches every *ConsistencyFault via errors.Is.
var ErrConsistencyFault = fmt.Errorf("consistency fault")

// ErrDuplicateEdge is returned when inserting an edge that both indexes
// already hold. Nothing is out of sync; the caller repeated an insert.
var ErrDuplicateEdge = fmt.Errorf("duplicate edge")

// ErrChildNotFound is returned when an edit names a child that is in
// neither index.
var ErrChildNotFound = fmt.Errorf("child not found")

// PolicyViolation is returned when an edit is attempted under a context
// flagged with a gating meta attribute. No state is changed.
type PolicyViolation struct {
	Attribute string // MetaReadOnly or MetaUnextendable
	Context   types.Context
	Remove    bool
}

func (e *PolicyViolation) Error() string {
	name := types.RootToken
	if len(e.Context) > 0 {
		name = e.Context[len(e.Context)-1]
	}
	switch e.Attribute {
	case MetaReadOnly:
		if e.Remove {
			return fmt.Sprintf("%q is read-only. Subthoughts may not be removed.", ellipsize(name))
		}
		return fmt.Sprintf("%q is read-only. No subthoughts may be added.", ellipsize(name))
	case MetaUnextendable:
		return fmt.Sprintf("%q is unextendable. No subthoughts may be added.", ellipsize(name))
	}
	return fmt.Sprintf("%q does not allow this edit (%s)", ellipsize(name), e.Attribute)
}

func (e *PolicyViolation) Is(target error) bool {
	return target == ErrPolicyViolation
}

// ConsistencyFault reports an edge present in one index but not in its
// mirror. It means an earlier batch was applied partially or the batch
// contract was bypassed; it is never repaired automatically.
type ConsistencyFault struct {
	Op             string
	Context        types.Context
	Value          string
	Rank           float64
	InContentIndex bool
	InContextIndex bool
}

func (e *ConsistencyFault) Error() string {
	var where string
	switch {
	case e.InContentIndex:
		where = "present in content index, missing from context index"
	case e.InContextIndex:
		where = "present in context index, missing from content index"
	default:
		where = "missing from both indexes"
	}
	return fmt.Sprintf("consistency fault during %s: %q at rank %v in [%s]: %s",
		e.Op, e.Value, e.Rank, strings.Join(e.Context, " / "), where)
}

func (e *ConsistencyFault) Is(target error) bool {
	return target == ErrConsistencyFault
}

// ellipsize shortens long thought values in user-visible messages.
func ellipsize(s string) string {
	const max = 40
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
