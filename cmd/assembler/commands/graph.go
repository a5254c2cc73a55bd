package commands

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"git.home.luguber.info/inful/scriptassembler/internal/buildunit"
	"git.home.luguber.info/inful/scriptassembler/internal/foundation/errors"
	"git.home.luguber.info/inful/scriptassembler/internal/unitgraph"
	"git.home.luguber.info/inful/scriptassembler/internal/util/sets"
)

// GraphCmd implements the 'graph' command.
type GraphCmd struct {
	Units string `short:"u" name:"units" required:"" type:"existingfile" help:"Units file listing the compiled build units"`
	Unit  string `short:"n" name:"unit" help:"Only print the units the named unit depends on, in build order"`
}

func (g *GraphCmd) Run(_ *Global, _ *CLI) error {
	units, err := buildunit.LoadFile(g.Units)
	if err != nil {
		return err
	}
	if g.Unit != "" {
		return WriteDependencies(os.Stdout, units, g.Unit)
	}
	return WriteGraph(os.Stdout, units)
}

// WriteGraph prints one line per level; units of a level only reference
// units of earlier levels.
func WriteGraph(w io.Writer, units []*buildunit.Unit) error {
	graph, err := unitgraph.New(units)
	if err != nil {
		return err
	}
	for i, level := range graph.Levels() {
		if _, err := fmt.Fprintf(w, "level %d: %s\n", i, strings.Join(level, ", ")); err != nil {
			return err
		}
		for _, name := range level {
			refs := graph.References(name)
			if len(refs) == 0 {
				continue
			}
			if _, err := fmt.Fprintf(w, "  %s -> %s\n", name, strings.Join(refs, ", ")); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteDependencies prints every unit name transitively depends on, one per
// line in build order, followed by name itself.
func WriteDependencies(w io.Writer, units []*buildunit.Unit, name string) error {
	graph, err := unitgraph.New(units)
	if err != nil {
		return err
	}
	if !slices.Contains(graph.Names(), name) {
		return errors.ReferenceError("Project with name '" + name + "' could not be found!").Build()
	}
	deps := sets.New(graph.Closure(name)...)
	for _, n := range graph.Order() {
		if !deps.Has(n) {
			continue
		}
		if _, err := fmt.Fprintln(w, n); err != nil {
			return err
		}
	}
	_, err = fmt.Fprintln(w, name)
	return err
}
