package assembler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/scriptassembler/internal/assemblyinfo"
	"git.home.luguber.info/inful/scriptassembler/internal/assets"
	"git.home.luguber.info/inful/scriptassembler/internal/buildunit"
	"git.home.luguber.info/inful/scriptassembler/internal/config"
	"git.home.luguber.info/inful/scriptassembler/internal/xmldoc"
)

// fakeAssets serves canned package data by unit name.
type fakeAssets map[string]*assets.Data

func (f fakeAssets) Read(unit *buildunit.Unit, _ string) (*assets.Data, error) {
	if d, ok := f[unit.Name]; ok {
		return d, nil
	}
	return &assets.Data{}, nil
}

type failingAssets struct{ err error }

func (f failingAssets) Read(*buildunit.Unit, string) (*assets.Data, error) { return nil, f.err }

// fixedVersions returns versions by path.
type fixedVersions map[string]assemblyinfo.Version

func (f fixedVersions) ReadVersion(path string) (assemblyinfo.Version, error) {
	if v, ok := f[path]; ok {
		return v, nil
	}
	return assemblyinfo.Version{}, errors.New("no metadata")
}

func mustTemplate(t *testing.T, name, src string) *Template {
	t.Helper()
	doc, err := xmldoc.Parse(name, []byte(src))
	require.NoError(t, err)
	tpl, err := NewTemplate(doc, config.Default())
	require.NoError(t, err)
	return tpl
}

func source(name, content string) []buildunit.SourceFile {
	return []buildunit.SourceFile{{Name: name, Content: content}}
}

func testOptions(a AssetReader) Options {
	return Options{
		Config:      config.Default(),
		Concurrency: 2,
		Assets:      a,
		Versions:    fixedVersions{},
		SessionID:   "test-session",
	}
}
