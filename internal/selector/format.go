package selector

import (
	"strconv"
	"strings"
)

// Format renders expr in a compact human-readable form, e.g.
//
//	and(path:models/bronze/*, exclude(tag:deprecated))
//	2+fqn:orders+ [exclude: tag:wip]
//
// Indirect-selection modes are not rendered. Format is for diagnostics;
// use MarshalCanonical for identity.
func Format(expr Expression) string {
	var b strings.Builder
	writeExpr(&b, expr)
	return b.String()
}

func writeExpr(b *strings.Builder, expr Expression) {
	switch e := expr.(type) {
	case nil:
		b.WriteString("<nil>")
	case *Atom:
		writeCriteria(b, &e.Criteria)
	case *And:
		writeList(b, "and", e.Exprs)
	case *Or:
		writeList(b, "or", e.Exprs)
	case *Exclude:
		b.WriteString("exclude(")
		writeExpr(b, e.Inner)
		b.WriteByte(')')
	}
}

func writeList(b *strings.Builder, op string, exprs []Expression) {
	b.WriteString(op)
	b.WriteByte('(')
	for i, sub := range exprs {
		if i > 0 {
			b.WriteString(", ")
		}
		writeExpr(b, sub)
	}
	b.WriteByte(')')
}

func writeCriteria(b *strings.Builder, c *Criteria) {
	if c.ChildrensParents {
		b.WriteByte('@')
	}
	if c.ParentsDepth != nil {
		writeDepth(b, *c.ParentsDepth)
		b.WriteByte('+')
	}
	b.WriteString(c.Method.String())
	for _, arg := range c.MethodArgs {
		b.WriteByte('.')
		b.WriteString(arg)
	}
	b.WriteByte(':')
	b.WriteString(c.Value)
	if c.ChildrenDepth != nil {
		b.WriteByte('+')
		writeDepth(b, *c.ChildrenDepth)
	}
	if c.Exclude != nil {
		b.WriteString(" [exclude: ")
		writeExpr(b, c.Exclude)
		b.WriteByte(']')
	}
}

func writeDepth(b *strings.Builder, d uint32) {
	if d != DepthUnbounded {
		b.WriteString(strconv.FormatUint(uint64(d), 10))
	}
}
