// Package unitgraph models sibling references between build units.
//
// Nodes keep the order in which units were supplied; every traversal walks
// them by that canonical index so results are deterministic.
package unitgraph

import (
	"sort"
	"strings"

	"git.home.luguber.info/inful/scriptassembler/internal/buildunit"
	"git.home.luguber.info/inful/scriptassembler/internal/foundation/errors"
)

// Graph is an immutable, validated reference graph. An edge u -> v means
// unit u references unit v, so v must be processed first.
type Graph struct {
	names    []string
	index    map[string]int
	outgoing [][]int
	levels   [][]int
}

// New builds and validates the reference graph for units. Unknown
// references and cycles are reported as classified errors.
func New(units []*buildunit.Unit) (*Graph, error) {
	g := &Graph{
		names:    make([]string, len(units)),
		index:    make(map[string]int, len(units)),
		outgoing: make([][]int, len(units)),
	}
	for i, u := range units {
		if _, dup := g.index[u.Name]; dup {
			return nil, errors.ValidationError("duplicate unit name '" + u.Name + "'").
				WithContext("unit", u.Name).
				Build()
		}
		g.names[i] = u.Name
		g.index[u.Name] = i
	}

	for i, u := range units {
		seen := make(map[int]bool, len(u.UnitReferences))
		for _, ref := range u.UnitReferences {
			j, ok := g.index[ref]
			if !ok {
				return nil, errors.ReferenceError("Project '" + u.Name + "' references unknown project '" + ref + "'.").
					WithContext("unit", u.Name).
					WithContext("reference", ref).
					Build()
			}
			if seen[j] {
				continue
			}
			seen[j] = true
			g.outgoing[i] = append(g.outgoing[i], j)
		}
		sort.Ints(g.outgoing[i])
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, errors.ConfigError("Cyclic project references detected: " + strings.Join(cycle, " -> ")).
			WithContext("cycle", cycle).
			Build()
	}
	g.levels = g.computeLevels()
	return g, nil
}

// Len returns the number of units.
func (g *Graph) Len() int { return len(g.names) }

// Names returns every unit name in canonical order.
func (g *Graph) Names() []string { return append([]string(nil), g.names...) }

// References returns the direct references of the named unit in canonical order.
func (g *Graph) References(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.outgoing[i]))
	for _, j := range g.outgoing[i] {
		out = append(out, g.names[j])
	}
	return out
}

// Closure returns every unit reachable from name, excluding name itself, in
// canonical order.
func (g *Graph) Closure(name string) []string {
	start, ok := g.index[name]
	if !ok {
		return nil
	}
	visited := make([]bool, len(g.names))
	stack := append([]int(nil), g.outgoing[start]...)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[n] {
			continue
		}
		visited[n] = true
		stack = append(stack, g.outgoing[n]...)
	}
	var out []string
	for i, v := range visited {
		if v && i != start {
			out = append(out, g.names[i])
		}
	}
	return out
}

// Levels groups units so that every unit appears in a later level than all
// units it references. Units inside a level keep canonical order.
func (g *Graph) Levels() [][]string {
	out := make([][]string, len(g.levels))
	for i, level := range g.levels {
		out[i] = make([]string, len(level))
		for k, n := range level {
			out[i][k] = g.names[n]
		}
	}
	return out
}

// Order returns a topological order with references first.
func (g *Graph) Order() []string {
	var out []string
	for _, level := range g.Levels() {
		out = append(out, level...)
	}
	return out
}

func (g *Graph) computeLevels() [][]int {
	depth := make([]int, len(g.names))
	done := make([]bool, len(g.names))

	var visit func(n int) int
	visit = func(n int) int {
		if done[n] {
			return depth[n]
		}
		d := 0
		for _, m := range g.outgoing[n] {
			if md := visit(m) + 1; md > d {
				d = md
			}
		}
		depth[n] = d
		done[n] = true
		return d
	}

	maxDepth := -1
	for n := range g.names {
		if d := visit(n); d > maxDepth {
			maxDepth = d
		}
	}
	levels := make([][]int, maxDepth+1)
	for n, d := range depth {
		levels[d] = append(levels[d], n)
	}
	return levels
}

// findCycle runs a three-color depth-first search in canonical order and
// returns the first cycle found as a closed path of unit names.
func (g *Graph) findCycle() []string {
	const (
		white = iota
		gray
		black
	)

	color := make([]int, len(g.names))
	var path []int
	var cycle []int

	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		path = append(path, u)
		for _, v := range g.outgoing[u] {
			switch color[v] {
			case white:
				if dfs(v) {
					return true
				}
			case gray:
				for k := len(path) - 1; k >= 0; k-- {
					if path[k] == v {
						cycle = append(append([]int(nil), path[k:]...), v)
						return true
					}
				}
			}
		}
		path = path[:len(path)-1]
		color[u] = black
		return false
	}

	for i := range g.names {
		if color[i] == white && dfs(i) {
			break
		}
	}
	if cycle == nil {
		return nil
	}
	out := make([]string, len(cycle))
	for i, n := range cycle {
		out[i] = g.names[n]
	}
	return out
}
