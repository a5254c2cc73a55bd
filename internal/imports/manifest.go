// Package imports merges the import candidates of a build unit into an ordered,
// deduplicated manifest, resolving same-name assembly conflicts by version.
package imports

import (
	"git.home.luguber.info/inful/scriptassembler/internal/buildunit"
	"git.home.luguber.info/inful/scriptassembler/internal/util/sets"
)

// Entry is one import of a manifest.
type Entry struct {
	Value  string
	Origin buildunit.Origin
	Root   buildunit.Root
	Owner  string
}

// Manifest is the ordered, deduplicated import list of one unit. No two file entries
// share a base file name; directory hints are unique by value.
type Manifest struct {
	Entries []Entry
	// Hints are the directory hints contained in Entries, in order.
	Hints []string
	// Assemblies are the package files to ship with the artifact.
	Assemblies []buildunit.ImportCandidate

	// Conflicts counts candidates that lost a same-name conflict.
	Conflicts int
	// Dropped counts candidates discarded because their version was unreadable.
	Dropped int

	names  sets.Set[string]
	values sets.Set[string]
}

func newManifest() *Manifest {
	return &Manifest{names: sets.New[string](), values: sets.New[string]()}
}

// Values returns the entry values in order.
func (m *Manifest) Values() []string {
	out := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		out[i] = e.Value
	}
	return out
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	return len(m.Entries)
}

// HasName reports whether a file entry with the given base name exists.
func (m *Manifest) HasName(name string) bool {
	return m.names.Has(name)
}

// HasValue reports whether an entry with exactly this value exists.
func (m *Manifest) HasValue(v string) bool {
	return m.values.Has(v)
}

// add appends a file entry unless its base name is already present.
func (m *Manifest) add(e Entry) bool {
	name := buildunit.BaseName(e.Value)
	if m.names.Has(name) {
		return false
	}
	m.names.Add(name)
	m.values.Add(e.Value)
	m.Entries = append(m.Entries, e)
	return true
}

// addHint appends a directory hint unless the same value is already present.
func (m *Manifest) addHint(dir string) bool {
	if m.values.Has(dir) {
		return false
	}
	m.values.Add(dir)
	m.Hints = append(m.Hints, dir)
	m.Entries = append(m.Entries, Entry{Value: dir, Origin: buildunit.OriginDirectoryHint, Root: buildunit.RootDllImport})
	return true
}
