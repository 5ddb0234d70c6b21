package store

import (
	"strings"

	"github.com/skridlevsky/thoughtgraph/keys"
	"github.com/skridlevsky/thoughtgraph/types"
)

// Reserved meta attribute values. Meta attributes are stored as ordinary
// children whose value starts with "=".
const (
	MetaReadOnly     = "=readonly"
	MetaUnextendable = "=unextendable"
)

// Flags are the gating meta attributes of one context.
type Flags struct {
	ReadOnly     bool `json:"readOnly"`
	Unextendable bool `json:"unextendable"`
}

// IsMeta reports whether a value is a meta attribute.
func IsMeta(value string) bool {
	return strings.HasPrefix(strings.TrimSpace(value), "=")
}

// Meta reads the gating attributes attached to ctx.
func Meta(r Reader, ctx types.Context) Flags {
	var f Flags
	for _, c := range LookupChildren(r, ctx) {
		switch keys.Thought(c.Value) {
		case MetaReadOnly:
			f.ReadOnly = true
		case MetaUnextendable:
			f.Unextendable = true
		}
	}
	return f
}

// checkInsert gates adding value under ctx. Meta attributes themselves are
// always allowed so flags can be layered.
func checkInsert(r Reader, ctx types.Context, value string) error {
	if IsMeta(value) {
		return nil
	}
	f := Meta(r, ctx)
	if f.ReadOnly {
		return &PolicyViolation{Attribute: MetaReadOnly, Context: ctx}
	}
	if f.Unextendable {
		return &PolicyViolation{Attribute: MetaUnextendable, Context: ctx}
	}
	return nil
}

// checkRemove gates removing value from ctx. Unextendable contexts may still
// shrink; read-only ones may not.
func checkRemove(r Reader, ctx types.Context, value string) error {
	if IsMeta(value) {
		return nil
	}
	if Meta(r, ctx).ReadOnly {
		return &PolicyViolation{Attribute: MetaReadOnly, Context: ctx, Remove: true}
	}
	return nil
}
