package provenance

import (
	"github.com/sells-group/h2-custody/internal/model"
)

// graphIndex is the reverse adjacency of a provenance graph.
type graphIndex struct {
	types   map[string]model.ProcessStepType
	reverse map[string][]string // to -> from, in edge order
}

func newGraphIndex(g *model.ProvenanceGraph) *graphIndex {
	idx := &graphIndex{
		types:   make(map[string]model.ProcessStepType, len(g.Nodes)),
		reverse: make(map[string][]string, len(g.Edges)),
	}
	for _, n := range g.Nodes {
		idx.types[n.ID] = n.Type
	}
	for _, e := range g.Edges {
		idx.reverse[e.ToID] = append(idx.reverse[e.ToID], e.FromID)
	}
	return idx
}

func typeSet(types ...model.ProcessStepType) map[model.ProcessStepType]bool {
	s := make(map[model.ProcessStepType]bool, len(types))
	for _, t := range types {
		s[t] = true
	}
	return s
}

// collectUpstream returns the ids of all nodes upstream of starts whose type
// is in allowed, each once. It walks every reverse edge with an explicit
// stack, so merged predecessors are not counted twice.
func (idx *graphIndex) collectUpstream(starts []string, allowed map[model.ProcessStepType]bool) []string {
	visited := make(map[string]bool, len(starts))
	stack := make([]string, 0, len(starts))
	for i := len(starts) - 1; i >= 0; i-- {
		visited[starts[i]] = true
		stack = append(stack, starts[i])
	}

	var out []string
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		var fresh []string
		for _, from := range idx.reverse[id] {
			if visited[from] {
				continue
			}
			visited[from] = true
			if allowed[idx.types[from]] {
				out = append(out, from)
			}
			fresh = append(fresh, from)
		}
		for i := len(fresh) - 1; i >= 0; i-- {
			stack = append(stack, fresh[i])
		}
	}
	return out
}
