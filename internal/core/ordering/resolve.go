// Package ordering computes installation order across applications with
// declared prerequisites.
// This is part of the Functional Core - all functions are pure with no I/O.
package ordering

import (
	"fmt"
	"sort"
)

// =============================================================================
// Node
// =============================================================================

// Node is one application in the prerequisite graph.
type Node struct {
	// ID is the application (blueprint) identifier.
	ID string

	// Prerequisites are identifiers that must install before this one.
	Prerequisites []string

	// InstallOrder is the declared numeric hint used to break ties among
	// nodes whose prerequisites are all satisfied. Lower installs first.
	InstallOrder int
}

// =============================================================================
// Cycle Error
// =============================================================================

// CycleError reports a dependency cycle. No ordering is produced when a cycle
// exists.
type CycleError struct {
	// Nodes are the identifiers left unresolvable, at least one of which is
	// on a cycle.
	Nodes []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle detected involving %v", e.Nodes)
}

// =============================================================================
// Resolve
// =============================================================================

// Resolve computes a total installation order using Kahn's algorithm. Ready
// nodes are chosen by install-order hint ascending, then identifier lexical
// order, so output is reproducible. Prerequisites not present in the node set
// are assumed already installed and do not gate anything here; the caller
// checks availability separately.
func Resolve(nodes []Node) ([]string, error) {
	if len(nodes) == 0 {
		return nil, nil
	}

	byID := make(map[string]Node, len(nodes))
	inDegree := make(map[string]int, len(nodes))
	dependents := make(map[string][]string)

	for _, n := range nodes {
		byID[n.ID] = n
	}
	for _, n := range nodes {
		degree := 0
		for _, prereq := range n.Prerequisites {
			if _, inSet := byID[prereq]; !inSet {
				continue // satisfied outside this resolution
			}
			degree++
			dependents[prereq] = append(dependents[prereq], n.ID)
		}
		inDegree[n.ID] = degree
	}

	var ready []string
	for id, degree := range inDegree {
		if degree == 0 {
			ready = append(ready, id)
		}
	}

	ordered := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		sortReady(ready, byID)
		current := ready[0]
		ready = ready[1:]
		ordered = append(ordered, current)

		for _, dep := range dependents[current] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}

	if len(ordered) != len(nodes) {
		var remaining []string
		for id, degree := range inDegree {
			if degree > 0 {
				remaining = append(remaining, id)
			}
		}
		sort.Strings(remaining)
		return nil, &CycleError{Nodes: remaining}
	}

	return ordered, nil
}

// sortReady orders the ready queue by install-order hint, then identifier.
func sortReady(ready []string, byID map[string]Node) {
	sort.Slice(ready, func(i, j int) bool {
		a, b := byID[ready[i]], byID[ready[j]]
		if a.InstallOrder != b.InstallOrder {
			return a.InstallOrder < b.InstallOrder
		}
		return a.ID < b.ID
	})
}

// =============================================================================
// Prerequisite Check
// =============================================================================

// MissingPrerequisites returns prerequisites of the selected nodes that are
// neither in the selection nor in the available set, sorted for stable error
// messages.
func MissingPrerequisites(selected []Node, available map[string]bool) []string {
	inSelection := make(map[string]bool, len(selected))
	for _, n := range selected {
		inSelection[n.ID] = true
	}

	missing := make(map[string]bool)
	for _, n := range selected {
		for _, prereq := range n.Prerequisites {
			if !inSelection[prereq] && !available[prereq] {
				missing[prereq] = true
			}
		}
	}

	if len(missing) == 0 {
		return nil
	}
	out := make([]string, 0, len(missing))
	for id := range missing {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
