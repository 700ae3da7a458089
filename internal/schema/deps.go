package schema

import (
	"sort"
	"strings"
)

// BuildDependencies derives the dependency graph: an edge from entity A to B
// means B must be ingested before A. Edges come from declared associations
// and from <X>_ID identifier fields whose base name matches an association.
// Targets that are not themselves known entities are treated as external
// references and excluded from the graph.
func BuildDependencies(def *Definition) map[string][]string {
	deps := make(map[string][]string, len(def.Entities))

	names := make([]string, 0, len(def.Entities))
	for name := range def.Entities {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ent := def.Entities[name]
		var targets []string
		add := func(t string) {
			if t == "" || t == name {
				return
			}
			if _, known := def.Entities[t]; !known {
				return
			}
			for _, seen := range targets {
				if seen == t {
					return
				}
			}
			targets = append(targets, t)
		}

		for _, assoc := range ent.Associations {
			add(assoc.Target)
		}
		for _, f := range ent.Fields {
			if !strings.HasSuffix(f.Name, "_ID") {
				continue
			}
			if !strings.HasPrefix(strings.ToUpper(f.Type), "UUID") {
				continue
			}
			base := strings.TrimSuffix(f.Name, "_ID")
			for _, assoc := range ent.Associations {
				if assoc.Name == base {
					add(assoc.Target)
					break
				}
			}
		}
		deps[name] = targets
	}
	return deps
}

// TopoSort orders entities so that dependencies precede their dependents,
// using Kahn's algorithm with ascending lexical tie-break for determinism.
// Entities trapped in a dependency cycle never reach zero incoming edges;
// they are appended after all resolved nodes in lexical order.
func TopoSort(deps map[string][]string) []string {
	nodes := make(map[string]bool)
	for n, targets := range deps {
		nodes[n] = true
		for _, t := range targets {
			nodes[t] = true
		}
	}

	// incoming[n] holds the dependencies n still waits on.
	incoming := make(map[string]map[string]bool, len(nodes))
	outgoing := make(map[string]map[string]bool, len(nodes))
	for n := range nodes {
		incoming[n] = make(map[string]bool)
		outgoing[n] = make(map[string]bool)
	}
	for n, targets := range deps {
		for _, t := range targets {
			incoming[n][t] = true
			outgoing[t][n] = true
		}
	}

	var ready []string
	for n := range nodes {
		if len(incoming[n]) == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(nodes))
	placed := make(map[string]bool, len(nodes))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		placed[n] = true

		changed := false
		for m := range outgoing[n] {
			delete(incoming[m], n)
			if len(incoming[m]) == 0 {
				ready = append(ready, m)
				changed = true
			}
		}
		if changed {
			sort.Strings(ready)
		}
	}

	// Best-effort fallback for cycles; resolvability is not guaranteed.
	var remaining []string
	for n := range nodes {
		if !placed[n] {
			remaining = append(remaining, n)
		}
	}
	sort.Strings(remaining)
	return append(order, remaining...)
}

// CycleMembers returns the entities that cannot be topologically placed,
// sorted lexically. A non-empty result is a modeling problem the operator
// should see before staging starts.
func CycleMembers(deps map[string][]string) []string {
	order := TopoSort(deps)
	acyclic := kahnPlacedCount(deps)
	if acyclic == len(order) {
		return nil
	}
	return order[acyclic:]
}

func kahnPlacedCount(deps map[string][]string) int {
	nodes := make(map[string]bool)
	for n, targets := range deps {
		nodes[n] = true
		for _, t := range targets {
			nodes[t] = true
		}
	}
	incoming := make(map[string]map[string]bool, len(nodes))
	outgoing := make(map[string]map[string]bool, len(nodes))
	for n := range nodes {
		incoming[n] = make(map[string]bool)
		outgoing[n] = make(map[string]bool)
	}
	for n, targets := range deps {
		for _, t := range targets {
			incoming[n][t] = true
			outgoing[t][n] = true
		}
	}
	var ready []string
	for n := range nodes {
		if len(incoming[n]) == 0 {
			ready = append(ready, n)
		}
	}
	placed := 0
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		placed++
		for m := range outgoing[n] {
			delete(incoming[m], n)
			if len(incoming[m]) == 0 {
				ready = append(ready, m)
			}
		}
	}
	return placed
}
