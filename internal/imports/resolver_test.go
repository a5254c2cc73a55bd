package imports

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/scriptassembler/internal/assemblyinfo"
	"git.home.luguber.info/inful/scriptassembler/internal/assets"
	"git.home.luguber.info/inful/scriptassembler/internal/buildunit"
)

type fakeVersions map[string]string

func (f fakeVersions) ReadVersion(path string) (assemblyinfo.Version, error) {
	s, ok := f[path]
	if !ok {
		return assemblyinfo.Version{}, errors.New("unreadable")
	}
	return assemblyinfo.ParseVersion(s)
}

func pkgAsset(id, version, file string) buildunit.ImportCandidate {
	dir := id + `\` + version + `\lib\net45\`
	return buildunit.ImportCandidate{
		Import: dir + file,
		Path:   "/nuget/" + id + "/" + version + "/lib/net45/" + file,
		Origin: buildunit.OriginPackageAsset,
		Root:   buildunit.RootDllImport,
		Owner:  id,
	}
}

var defaults = []string{"System.dll", "System.Xml.dll"}

func TestResolve_AccumulationOrder(t *testing.T) {
	unit := &buildunit.Unit{
		Name:       "QAction_2",
		References: []string{"System.Data.dll", "system.xml.dll", `..\Dlls\MyCustomDll.dll`},
	}
	data := &assets.Data{
		FrameworkReferences: []buildunit.ImportCandidate{
			{Import: "System.Net.Http.dll", Origin: buildunit.OriginFrameworkReference},
			{Import: "System.dll", Origin: buildunit.OriginFrameworkReference},
		},
		LibraryAssets: []buildunit.ImportCandidate{pkgAsset("newtonsoft.json", "13.0.1", "Newtonsoft.Json.dll")},
	}
	siblings := []buildunit.ImportCandidate{{Import: "[ProtocolName].[ProtocolVersion].QAction.1.dll", Owner: "QAction_1"}}

	m := NewResolver(defaults, fakeVersions{}).Resolve([]string{"Existing.dll"}, unit, siblings, data)

	want := []string{
		"Existing.dll",
		"System.Data.dll",
		"MyCustomDll.dll",
		"System.Net.Http.dll",
		`newtonsoft.json\13.0.1\lib\net45\Newtonsoft.Json.dll`,
		"[ProtocolName].[ProtocolVersion].QAction.1.dll",
	}
	if diff := cmp.Diff(want, m.Values()); diff != "" {
		t.Errorf("manifest mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, buildunit.RootProtocolScripts, m.Entries[2].Root)
	assert.Equal(t, buildunit.OriginSiblingOutput, m.Entries[5].Origin)
	assert.Zero(t, m.Conflicts)
}

func TestResolve_HighestVersionWinsAndLosersBecomeHints(t *testing.T) {
	a := pkgAsset("newtonsoft.json", "12.0.1", "Newtonsoft.Json.dll")
	b := pkgAsset("other.pack", "1.0.0", "Newtonsoft.Json.dll")
	versions := fakeVersions{a.Path: "12.0.0.0", b.Path: "13.0.0.0"}

	m := NewResolver(defaults, versions).Resolve(nil, &buildunit.Unit{Name: "U"}, nil, &assets.Data{
		LibraryAssets: []buildunit.ImportCandidate{a, b},
		Assemblies:    []buildunit.ImportCandidate{a, b},
	})

	assert.Equal(t, []string{b.Import, a.Directory()}, m.Values())
	assert.Equal(t, []string{a.Directory()}, m.Hints)
	assert.Equal(t, buildunit.OriginDirectoryHint, m.Entries[1].Origin)
	assert.Equal(t, 1, m.Conflicts)
	assert.Len(t, m.Assemblies, 2)
}

func TestResolve_LoserInAcceptedDirectoryGivesNoHint(t *testing.T) {
	a := pkgAsset("bundle", "1.0.0", "Shared.dll")
	other := pkgAsset("bundle", "1.0.0", "Bundle.dll")
	b := pkgAsset("shared", "2.0.0", "Shared.dll")
	versions := fakeVersions{a.Path: "2.0.0.0", b.Path: "1.0.0.0"}

	m := NewResolver(defaults, versions).Resolve(nil, &buildunit.Unit{Name: "U"}, nil, &assets.Data{
		LibraryAssets: []buildunit.ImportCandidate{a, other, b},
	})

	// b loses; its directory is not the directory of an accepted entry, so it is a hint.
	assert.Equal(t, []string{a.Import, other.Import, b.Directory()}, m.Values())

	versions[a.Path], versions[b.Path] = "1.0.0.0", "2.0.0.0"
	m = NewResolver(defaults, versions).Resolve(nil, &buildunit.Unit{Name: "U"}, nil, &assets.Data{
		LibraryAssets: []buildunit.ImportCandidate{a, other, b},
	})
	// a loses, but Bundle.dll was accepted from the same directory.
	assert.Equal(t, []string{b.Import, other.Import}, m.Values())
	assert.Empty(t, m.Hints)
}

func TestResolve_TiesAndUnreadable(t *testing.T) {
	a := pkgAsset("first", "1.0.0", "Lib.dll")
	b := pkgAsset("second", "1.0.0", "Lib.dll")
	c := pkgAsset("third", "1.0.0", "Lib.dll")

	t.Run("tie keeps first and drops the others", func(t *testing.T) {
		m := NewResolver(defaults, fakeVersions{a.Path: "1.0.0.0", b.Path: "1.0.0.0", c.Path: "0.9.0.0"}).
			Resolve(nil, &buildunit.Unit{Name: "U"}, nil, &assets.Data{LibraryAssets: []buildunit.ImportCandidate{a, b, c}})
		assert.Equal(t, []string{a.Import, c.Directory()}, m.Values())
		assert.Equal(t, 1, m.Dropped)
		assert.Equal(t, 1, m.Conflicts)
	})

	t.Run("unreadable dropped without hint", func(t *testing.T) {
		m := NewResolver(defaults, fakeVersions{b.Path: "1.0.0.0"}).
			Resolve(nil, &buildunit.Unit{Name: "U"}, nil, &assets.Data{LibraryAssets: []buildunit.ImportCandidate{a, b, c}})
		assert.Equal(t, []string{b.Import}, m.Values())
		assert.Equal(t, 2, m.Dropped)
		assert.Zero(t, m.Conflicts)
	})

	t.Run("all unreadable drops group", func(t *testing.T) {
		m := NewResolver(defaults, fakeVersions{}).
			Resolve(nil, &buildunit.Unit{Name: "U"}, nil, &assets.Data{LibraryAssets: []buildunit.ImportCandidate{a, b}})
		assert.Zero(t, m.Len())
		assert.Equal(t, 2, m.Dropped)
	})
}

func TestResolve_ExplicitReferenceWinsOverPackageAsset(t *testing.T) {
	asset := pkgAsset("system.net.http", "4.3.4", "System.Net.Http.dll")
	m := NewResolver(defaults, fakeVersions{}).Resolve(nil, &buildunit.Unit{Name: "U"}, nil, &assets.Data{
		FrameworkReferences: []buildunit.ImportCandidate{{Import: "System.Net.Http.dll", Origin: buildunit.OriginFrameworkReference}},
		LibraryAssets:       []buildunit.ImportCandidate{asset},
		Assemblies:          []buildunit.ImportCandidate{asset},
	})

	assert.Equal(t, []string{"System.Net.Http.dll"}, m.Values())
	assert.Empty(t, m.Assemblies, "a file already imported by name is not shipped")
}

func TestResolve_DeduplicatesByFileName(t *testing.T) {
	m := NewResolver(defaults, fakeVersions{}).Resolve(
		[]string{"System.Data.dll"},
		&buildunit.Unit{Name: "U", References: []string{"System.Data.dll", "System.Data.dll"}},
		[]buildunit.ImportCandidate{{Import: "A.dll"}, {Import: "A.dll"}},
		nil,
	)
	require.Equal(t, []string{"System.Data.dll", "A.dll"}, m.Values())
	assert.True(t, m.HasName("A.dll"))
	assert.False(t, m.HasName("B.dll"))
}

func TestResolve_EmptyInput(t *testing.T) {
	m := NewResolver(nil, nil).Resolve(nil, &buildunit.Unit{Name: "U"}, nil, nil)
	assert.Zero(t, m.Len())
	assert.Empty(t, m.Values())
}
