package buildunit

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/scriptassembler/internal/foundation/errors"
)

// File is the YAML document describing the build units of a solution. It is produced
// by the external solution parser and compiler step.
type File struct {
	Units []UnitSpec `yaml:"units"`
}

// UnitSpec is the on-disk description of one build unit.
type UnitSpec struct {
	Name string `yaml:"name"`
	// Dir is the unit's project directory; source names default to paths relative to it.
	Dir            string       `yaml:"dir,omitempty"`
	Sources        []SourceSpec `yaml:"sources"`
	References     []string     `yaml:"references,omitempty"`
	UnitReferences []string     `yaml:"unit_references,omitempty"`
	OutputName     string       `yaml:"output_name,omitempty"`
	Precompile     bool         `yaml:"precompile,omitempty"`
	Library        bool         `yaml:"library,omitempty"`
	LibraryName    string       `yaml:"library_name,omitempty"`
	AssetsFile     string       `yaml:"assets_file,omitempty"`
}

// SourceSpec points at one compiled source file.
type SourceSpec struct {
	Path string `yaml:"path"`
	Name string `yaml:"name,omitempty"`
}

// LoadFile reads a units file and the source files it references. Relative paths are
// resolved against the directory of the units file.
func LoadFile(path string) ([]*Unit, error) {
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return f.Resolve(filepath.Dir(path))
}

// ReadFile parses a units file without reading any source file.
func ReadFile(path string) (*File, error) {
	// #nosec G304 -- path is supplied by the operator on the command line.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read units file").
			Fatal().
			WithContext("path", path).
			Build()
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to parse units file").
			Fatal().
			WithContext("path", path).
			Build()
	}
	return &f, nil
}

// InputPaths lists every source and assets file the units depend on,
// resolved against baseDir.
func (f *File) InputPaths(baseDir string) []string {
	var out []string
	for _, spec := range f.Units {
		for _, src := range spec.Sources {
			out = append(out, resolvePath(baseDir, src.Path))
		}
		if spec.AssetsFile != "" {
			out = append(out, resolvePath(baseDir, spec.AssetsFile))
		}
	}
	return out
}

// Resolve turns the specs into units, reading sources relative to baseDir.
func (f *File) Resolve(baseDir string) ([]*Unit, error) {
	seen := make(map[string]struct{}, len(f.Units))
	units := make([]*Unit, 0, len(f.Units))
	for i, spec := range f.Units {
		if spec.Name == "" {
			return nil, errors.ValidationError(fmt.Sprintf("unit #%d has no name", i+1)).Build()
		}
		if _, dup := seen[spec.Name]; dup {
			return nil, errors.ValidationError(fmt.Sprintf("duplicate unit name '%s'", spec.Name)).Build()
		}
		seen[spec.Name] = struct{}{}

		u, err := spec.load(baseDir)
		if err != nil {
			return nil, err
		}
		units = append(units, u)
	}
	return units, nil
}

func (s UnitSpec) load(baseDir string) (*Unit, error) {
	u := &Unit{
		Name:           s.Name,
		References:     append([]string(nil), s.References...),
		UnitReferences: append([]string(nil), s.UnitReferences...),
		OutputName:     s.OutputName,
		Precompile:     s.Precompile,
		Library:        s.Library || s.LibraryName != "",
		LibraryName:    s.LibraryName,
		AssetsFile:     resolvePath(baseDir, s.AssetsFile),
	}

	unitDir := resolvePath(baseDir, s.Dir)
	for _, src := range s.Sources {
		full := resolvePath(baseDir, src.Path)
		// #nosec G304 -- source paths come from the units file.
		content, err := os.ReadFile(full)
		if err != nil {
			return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read source file").
				Fatal().
				WithContext("unit", s.Name).
				WithContext("path", full).
				Build()
		}
		u.Sources = append(u.Sources, SourceFile{
			Name:    sourceName(src, unitDir, full),
			Content: string(content),
		})
	}
	return u, nil
}

func sourceName(src SourceSpec, unitDir, full string) string {
	if src.Name != "" {
		return src.Name
	}
	if unitDir != "" {
		if rel, err := filepath.Rel(unitDir, full); err == nil && !filepath.IsAbs(rel) && rel != ".." && !startsWithParent(rel) {
			return rel
		}
	}
	return filepath.Base(full)
}

func startsWithParent(rel string) bool {
	return len(rel) >= 3 && rel[:2] == ".." && os.IsPathSeparator(rel[2])
}

func resolvePath(baseDir, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(baseDir, p)
}
