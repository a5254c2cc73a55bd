// Package buildunit holds the inputs of an assembly session: build units, the packages
// they depend on and the import candidates derived from both.
package buildunit

import (
	"path"
	"strings"
)

// SourceFile is one compiled source file of a build unit.
// Name is the relative path shown in payload boundary markers.
type SourceFile struct {
	Name    string
	Content string
}

// Unit is one independently compiled script or QAction. It is immutable after loading.
type Unit struct {
	Name    string
	Sources []SourceFile

	// References are the declared external library references (e.g. "System.Data.dll").
	References []string
	// UnitReferences names other build units whose output this unit consumes.
	UnitReferences []string

	// OutputName overrides the compiled artifact name (default "<Name>.dll").
	OutputName string
	Precompile bool

	// Library marks a unit that is consumed by other units through a script reference.
	Library     bool
	LibraryName string

	// AssetsFile is the locked dependency closure (project.assets.json) of the unit.
	// Empty when the unit has no external packages.
	AssetsFile string
}

// OutputFileName returns the compiled artifact name of the unit.
func (u *Unit) OutputFileName() string {
	if u.OutputName != "" {
		return u.OutputName
	}
	return u.Name + ".dll"
}

// PackageIdentity identifies one resolved external package.
type PackageIdentity struct {
	ID      string
	Version string
}

func (p PackageIdentity) String() string {
	return p.ID + "/" + p.Version
}

// Origin tells where an import candidate came from.
type Origin int

const (
	OriginExplicitReference Origin = iota
	OriginFrameworkReference
	OriginPackageAsset
	OriginSiblingOutput
	OriginDirectoryHint
)

func (o Origin) String() string {
	switch o {
	case OriginExplicitReference:
		return "explicit-reference"
	case OriginFrameworkReference:
		return "framework-reference"
	case OriginPackageAsset:
		return "package-asset"
	case OriginSiblingOutput:
		return "sibling-unit-output"
	case OriginDirectoryHint:
		return "directory-hint"
	default:
		return "unknown"
	}
}

// Root names the directory of the target system an import string is relative to.
type Root int

const (
	// RootNone imports are resolved by name or are already rooted.
	RootNone Root = iota
	RootDllImport
	RootProtocolScripts
)

// ImportCandidate is one import produced during resolution.
type ImportCandidate struct {
	// Import is the declared import string written to the document.
	Import string
	// Path is the absolute file the import resolves to, empty when unknown.
	Path   string
	Origin Origin
	Root   Root
	// Owner is the package id or unit name that contributed the candidate.
	Owner string
}

// FileName returns the base file name of the candidate's import string.
// Both separators are accepted because import strings use Windows paths.
func (c ImportCandidate) FileName() string {
	return BaseName(c.Import)
}

// Directory returns the import string without its file name, including the trailing
// separator ("" when the import is a bare file name).
func (c ImportCandidate) Directory() string {
	return c.Import[:len(c.Import)-len(c.FileName())]
}

// BaseName returns the last element of a '/' or '\' separated path.
func BaseName(p string) string {
	return path.Base(strings.ReplaceAll(p, `\`, "/"))
}
