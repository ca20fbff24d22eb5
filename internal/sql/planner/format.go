package planner

import (
	"strings"
)

// Format renders plan as an indented tree, one node per line. When props is
// not nil every node is annotated with its derived properties.
func Format(plan LogicalPlan, props *PropertyDeriver) string {
	var b strings.Builder
	formatNode(&b, plan, props, 0)
	return b.String()
}

func formatNode(b *strings.Builder, node LogicalPlan, props *PropertyDeriver, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(node.String())
	if props != nil {
		b.WriteString(" [")
		b.WriteString(props.Derive(node).String())
		b.WriteString("]")
	}
	b.WriteByte('\n')
	for _, child := range node.Children() {
		formatNode(b, child, props, depth+1)
	}
}
