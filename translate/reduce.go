package translate

import (
	"strings"

	"github.com/hugr-lab/fedquery/filter"
)

// reduce translates the children of an And/Or node and combines them:
//   - unsupported and blank children are dropped
//   - no survivors: the node itself is unsupported
//   - one survivor: its fragment is returned as is
//   - otherwise survivors are joined with op inside one group, in order
//
// This yields the widest query the backend can express. Callers relying on
// exact semantics must check which predicates were dropped.
func (w *walker) reduce(children []filter.Node, op string) (string, error) {
	parts := make([]string, 0, len(children))
	for _, child := range children {
		frag, err := w.visit(child)
		if err != nil {
			return unsupported, err
		}
		if strings.TrimSpace(frag) == "" {
			w.t.logger.Debug("Dropping unsupported predicate",
				"backend", w.t.caps.Name,
				"kind", child.Kind(),
				"attribute", filter.AttributeName(child),
			)
			continue
		}
		parts = append(parts, frag)
	}
	return w.group(parts, op), nil
}

// group joins fragments with op. A single fragment is not wrapped.
func (w *walker) group(parts []string, op string) string {
	switch len(parts) {
	case 0:
		return unsupported
	case 1:
		return parts[0]
	}
	return w.t.caps.GroupOpen + strings.Join(parts, " "+op+" ") + w.t.caps.GroupClose
}
