package imports

import (
	"log/slog"
	"strings"

	"git.home.luguber.info/inful/scriptassembler/internal/assemblyinfo"
	"git.home.luguber.info/inful/scriptassembler/internal/assets"
	"git.home.luguber.info/inful/scriptassembler/internal/buildunit"
	"git.home.luguber.info/inful/scriptassembler/internal/config"
	"git.home.luguber.info/inful/scriptassembler/internal/logfields"
)

// Resolver builds manifests against a default-imports set.
type Resolver struct {
	defaults []string
	versions assemblyinfo.VersionReader
}

// NewResolver creates a resolver. Imports in defaults are implicit on the target
// system and never listed.
func NewResolver(defaults []string, versions assemblyinfo.VersionReader) *Resolver {
	if versions == nil {
		versions = assemblyinfo.PEReader{}
	}
	return &Resolver{defaults: defaults, versions: versions}
}

// Resolve merges, in order: preDeclared entries, the unit's explicit references,
// framework references, package assets, directory hints and sibling outputs.
// Conflicts are resolved silently; the outcome is counted on the manifest.
func (r *Resolver) Resolve(preDeclared []string, unit *buildunit.Unit, siblings []buildunit.ImportCandidate, data *assets.Data) *Manifest {
	m := newManifest()
	if data == nil {
		data = &assets.Data{}
	}

	for _, v := range preDeclared {
		m.add(Entry{Value: v, Origin: buildunit.OriginExplicitReference, Owner: unit.Name})
	}

	for _, ref := range unit.References {
		e := explicitEntry(ref, unit.Name)
		if r.isDefault(e.Value) {
			continue
		}
		m.add(e)
	}

	for _, c := range data.FrameworkReferences {
		if r.isDefault(c.Import) {
			continue
		}
		m.add(Entry{Value: c.Import, Origin: c.Origin, Root: c.Root, Owner: c.Owner})
	}

	hints := r.addPackageAssets(m, unit, data.LibraryAssets)
	for _, h := range hints {
		if r.isDefault(h) {
			continue
		}
		m.addHint(h)
	}

	for _, s := range siblings {
		m.add(Entry{Value: s.Import, Origin: buildunit.OriginSiblingOutput, Root: s.Root, Owner: s.Owner})
	}

	for _, a := range data.Assemblies {
		if a.Path == "" || m.HasValue(a.FileName()) {
			continue
		}
		m.Assemblies = append(m.Assemblies, a)
	}

	return m
}

// addPackageAssets adds package assets grouped by file name and returns the
// directory hints of the losing candidates.
func (r *Resolver) addPackageAssets(m *Manifest, unit *buildunit.Unit, candidates []buildunit.ImportCandidate) []string {
	var order []string
	groups := make(map[string][]buildunit.ImportCandidate)
	for _, c := range candidates {
		name := c.FileName()
		if m.HasName(name) {
			// An explicit or framework reference with the same name wins.
			continue
		}
		if _, ok := groups[name]; !ok {
			order = append(order, name)
		}
		groups[name] = append(groups[name], c)
	}

	acceptedDirs := make(map[string]struct{})
	var losers []string

	for _, name := range order {
		group := groups[name]
		if len(group) == 1 {
			c := group[0]
			m.add(Entry{Value: c.Import, Origin: c.Origin, Root: c.Root, Owner: c.Owner})
			acceptedDirs[c.Directory()] = struct{}{}
			continue
		}

		winner, lost, dropped := r.pickHighest(group)
		m.Dropped += dropped
		if winner == nil {
			slog.Debug("Dropping assembly without readable version",
				logfields.Unit(unit.Name), logfields.Assembly(name), logfields.Count(len(group)))
			continue
		}
		m.add(Entry{Value: winner.Import, Origin: winner.Origin, Root: winner.Root, Owner: winner.Owner})
		acceptedDirs[winner.Directory()] = struct{}{}

		for _, l := range lost {
			m.Conflicts++
			slog.Debug("Assembly conflict resolved by version",
				logfields.Unit(unit.Name), logfields.Assembly(name),
				slog.String("winner", winner.Owner), slog.String("loser", l.Owner))
			if dir := l.Directory(); dir != "" {
				losers = append(losers, dir)
			}
		}
	}

	var hints []string
	for _, dir := range losers {
		if _, ok := acceptedDirs[dir]; ok {
			continue
		}
		hints = append(hints, dir)
	}
	return hints
}

// pickHighest returns the first candidate with the strictly greatest version, the
// candidates with a lower readable version, and the number of dropped candidates.
// Unreadable candidates and candidates tied with the winner are dropped.
func (r *Resolver) pickHighest(group []buildunit.ImportCandidate) (*buildunit.ImportCandidate, []buildunit.ImportCandidate, int) {
	var (
		readable []buildunit.ImportCandidate
		versions []assemblyinfo.Version
		dropped  int
	)
	for _, c := range group {
		if c.Path == "" {
			dropped++
			continue
		}
		v, err := r.versions.ReadVersion(c.Path)
		if err != nil {
			slog.Debug("Unreadable assembly version", logfields.Path(c.Path), logfields.Error(err))
			dropped++
			continue
		}
		readable = append(readable, c)
		versions = append(versions, v)
	}
	if len(readable) == 0 {
		return nil, nil, dropped
	}

	best := 0
	for i := 1; i < len(readable); i++ {
		if versions[i].Compare(versions[best]) > 0 {
			best = i
		}
	}
	var lost []buildunit.ImportCandidate
	for i, c := range readable {
		switch {
		case i == best:
		case versions[i].Compare(versions[best]) == 0:
			// Ties with the winner are dropped and contribute no directory hint.
			dropped++
		default:
			lost = append(lost, c)
		}
	}
	return &readable[best], lost, dropped
}

func (r *Resolver) isDefault(value string) bool {
	return config.IsDefaultImport(r.defaults, value)
}

// explicitEntry turns a declared reference into an entry. References carrying a
// directory (a hint path) are deployed next to the scripts and imported by file name.
func explicitEntry(ref, owner string) Entry {
	if strings.ContainsAny(ref, `\/`) {
		return Entry{Value: buildunit.BaseName(ref), Origin: buildunit.OriginExplicitReference, Root: buildunit.RootProtocolScripts, Owner: owner}
	}
	return Entry{Value: ref, Origin: buildunit.OriginExplicitReference, Owner: owner}
}
