package assembler

import (
	"os"
	"path/filepath"
	"sort"

	"git.home.luguber.info/inful/scriptassembler/internal/buildunit"
	"git.home.luguber.info/inful/scriptassembler/internal/foundation/errors"
	"git.home.luguber.info/inful/scriptassembler/internal/imports"
)

// Artifact is one assembled document of a session.
type Artifact struct {
	Name     string
	Layout   string
	Template string
	Document []byte
	// Units lists the units injected into the document, in document order.
	Units []string
	// Manifests holds the import manifest of every injected placeholder by key.
	Manifests map[string]*imports.Manifest
	// Assemblies are the package files to deploy alongside the document.
	Assemblies []buildunit.ImportCandidate
}

// FileName is the name the artifact is written under.
func (a *Artifact) FileName() string { return a.Name + ".xml" }

// WriteArtifacts writes every artifact to dir as <name>.xml and returns the
// written paths in name order.
func WriteArtifacts(dir string, artifacts map[string]*Artifact) ([]string, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to create output directory").
			WithContext("path", dir).
			Build()
	}

	names := make([]string, 0, len(artifacts))
	for name := range artifacts {
		names = append(names, name)
	}
	sort.Strings(names)

	paths := make([]string, 0, len(names))
	for _, name := range names {
		a := artifacts[name]
		path := filepath.Join(dir, a.FileName())
		if err := os.WriteFile(path, a.Document, 0o600); err != nil {
			return paths, errors.WrapError(err, errors.CategoryFileSystem, "failed to write artifact").
				WithContext("artifact", name).
				WithContext("path", path).
				Build()
		}
		paths = append(paths, path)
	}
	return paths, nil
}
