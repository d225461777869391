package insight

import (
	"context"
	"fmt"
	"strings"

	"healthmap/core-go/internal/domain"
)

// Offline answers without any network call. It summarises the node's own
// facts so the detail panel still has something useful to show.
type Offline struct{}

func (Offline) NodeInsight(ctx context.Context, node domain.Node, related []domain.Node) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	parts := make([]string, 0, len(node.Facts))
	for _, f := range node.Facts {
		parts = append(parts, fmt.Sprintf("%s %s", strings.ToLower(f.Label), f.Value))
	}

	var b strings.Builder
	b.WriteString(node.Label)
	if len(parts) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(parts, ", "))
	}
	b.WriteString(".")
	switch n := len(related); n {
	case 0:
	case 1:
		fmt.Fprintf(&b, " Linked to %s.", related[0].Label)
	default:
		fmt.Fprintf(&b, " Linked to %s and %d more.", related[0].Label, n-1)
	}
	return b.String(), nil
}
