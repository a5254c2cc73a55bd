// Package assets reads the locked package closure of a build unit
// (obj/project.assets.json) and turns it into import candidates.
package assets

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/scriptassembler/internal/buildunit"
	"git.home.luguber.info/inful/scriptassembler/internal/config"
	"git.home.luguber.info/inful/scriptassembler/internal/foundation/errors"
	"git.home.luguber.info/inful/scriptassembler/internal/logfields"
	"git.home.luguber.info/inful/scriptassembler/internal/util/sets"
)

// Data is the processed package closure of one unit.
type Data struct {
	// Packages lists the processed packages in lock-file order.
	Packages []buildunit.PackageIdentity
	// FrameworkReferences are assemblies of the target framework required by packages.
	FrameworkReferences []buildunit.ImportCandidate
	// LibraryAssets are the package assemblies that must be imported.
	LibraryAssets []buildunit.ImportCandidate
	// Assemblies are package files that must be shipped with the artifact.
	Assemblies []buildunit.ImportCandidate
}

// Reader reads lock files under a package policy.
type Reader struct {
	policy          config.PolicyConfig
	packagesRoot    string
	targetFramework string
}

// NewReader creates a reader for the configured target framework and packages root.
func NewReader(cfg *config.Config) *Reader {
	return &Reader{
		policy:          cfg.Policy,
		packagesRoot:    cfg.PackagesRoot,
		targetFramework: cfg.TargetFramework,
	}
}

// GetFrameworkReferences returns the framework references of unit for the configured target.
func (r *Reader) GetFrameworkReferences(unit *buildunit.Unit) ([]buildunit.ImportCandidate, error) {
	data, err := r.Read(unit, r.targetFramework)
	if err != nil {
		return nil, err
	}
	return data.FrameworkReferences, nil
}

// GetLibraryAssets returns the package library assets of unit for the configured target.
func (r *Reader) GetLibraryAssets(unit *buildunit.Unit) ([]buildunit.ImportCandidate, error) {
	data, err := r.Read(unit, r.targetFramework)
	if err != nil {
		return nil, err
	}
	return data.LibraryAssets, nil
}

// Read processes the lock file of unit for targetFramework. A unit without a lock file
// yields empty data.
func (r *Reader) Read(unit *buildunit.Unit, targetFramework string) (*Data, error) {
	data := &Data{}
	if unit.AssetsFile == "" {
		return data, nil
	}

	// #nosec G304 -- assets file paths come from the units file.
	content, err := os.ReadFile(unit.AssetsFile)
	if err != nil {
		if os.IsNotExist(err) {
			// Units without packages never get a lock file.
			return data, nil
		}
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read assets file").
			Fatal().
			WithContext("unit", unit.Name).
			WithContext("path", unit.AssetsFile).
			Build()
	}

	var lf lockFile
	if err := json.Unmarshal(content, &lf); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to parse assets file").
			Fatal().
			WithContext("unit", unit.Name).
			WithContext("path", unit.AssetsFile).
			Build()
	}

	target, ok := lf.target(targetFramework)
	if !ok {
		return nil, errors.ConfigError(fmt.Sprintf("Could not find target '%s' in project.assets.json file '%s'.", targetFramework, unit.AssetsFile)).
			WithContext("unit", unit.Name).
			Build()
	}

	skipped := r.customDependencies(target, lf.directDependencies())

	for i, key := range target.Keys {
		lib := target.Values[i]
		if !strings.EqualFold(lib.Type, "package") {
			// Project entries are sibling units; they come from the unit itself.
			continue
		}
		id, version := splitLibraryKey(key)
		if !r.include(id, lib) {
			continue
		}
		custom, isCustom := r.policy.Custom(id)
		if !isCustom && skipped.Has(strings.ToLower(id)) {
			slog.Debug("Skipping dependency of custom package", logfields.Unit(unit.Name), logfields.Package(id))
			continue
		}

		pkg := buildunit.PackageIdentity{ID: id, Version: version}
		data.Packages = append(data.Packages, pkg)
		slog.Debug("Processing package", logfields.Unit(unit.Name), logfields.Package(id), logfields.Version(version))

		if isCustom {
			root := buildunit.RootProtocolScripts
			if custom.InDllImportDirectory {
				root = buildunit.RootDllImport
			}
			data.LibraryAssets = append(data.LibraryAssets, buildunit.ImportCandidate{
				Import: custom.Path,
				Origin: buildunit.OriginPackageAsset,
				Root:   root,
				Owner:  id,
			})
		} else {
			r.addLibItems(data, pkg, lib)
		}
		addFrameworkItems(data, id, lib)
	}

	return data, nil
}

// include applies the skip list and the runtime-only exceptions.
func (r *Reader) include(id string, lib lockLibrary) bool {
	if r.policy.IsSkipped(id) {
		return false
	}
	if r.policy.IsRuntimeOnly(id) && !hasCompileAssembly(lib) {
		return false
	}
	return true
}

func (r *Reader) addLibItems(data *Data, pkg buildunit.PackageIdentity, lib lockLibrary) {
	idLower := strings.ToLower(pkg.ID)
	versionLower := strings.ToLower(pkg.Version)
	files := r.policy.IsFilesPackage(pkg.ID)

	for _, item := range lib.Runtime.Keys {
		// Only lib items are supported.
		if !strings.HasPrefix(item, "lib/") {
			continue
		}
		name := item[strings.LastIndex(item, "/")+1:]
		if name == "_._" {
			continue
		}

		if files {
			data.LibraryAssets = append(data.LibraryAssets, buildunit.ImportCandidate{
				Import: name,
				Origin: buildunit.OriginPackageAsset,
				Owner:  pkg.ID,
			})
			continue
		}

		c := buildunit.ImportCandidate{
			Import: idLower + `\` + versionLower + `\` + strings.ReplaceAll(item, "/", `\`),
			Path:   filepath.Join(r.packagesRoot, idLower, versionLower, filepath.FromSlash(item)),
			Origin: buildunit.OriginPackageAsset,
			Root:   buildunit.RootDllImport,
			Owner:  pkg.ID,
		}
		data.LibraryAssets = append(data.LibraryAssets, c)
		data.Assemblies = append(data.Assemblies, c)
	}
}

func addFrameworkItems(data *Data, id string, lib lockLibrary) {
	for _, name := range lib.FrameworkAssemblies {
		if !strings.HasSuffix(strings.ToLower(name), ".dll") {
			name += ".dll"
		}
		data.FrameworkReferences = append(data.FrameworkReferences, buildunit.ImportCandidate{
			Import: name,
			Origin: buildunit.OriginFrameworkReference,
			Owner:  id,
		})
	}
}

// customDependencies returns the lower-cased ids of the transitive dependencies of
// custom packages that the project does not declare itself.
func (r *Reader) customDependencies(target ordered[lockLibrary], direct sets.Set[string]) sets.Set[string] {
	byID := make(map[string]lockLibrary, len(target.Keys))
	for i, key := range target.Keys {
		id, _ := splitLibraryKey(key)
		byID[strings.ToLower(id)] = target.Values[i]
	}

	skipped := sets.New[string]()
	var visit func(id string)
	visit = func(id string) {
		for dep := range byID[id].Dependencies {
			dep = strings.ToLower(dep)
			if skipped.Has(dep) || direct.Has(dep) {
				continue
			}
			skipped.Add(dep)
			visit(dep)
		}
	}
	for _, key := range target.Keys {
		id, _ := splitLibraryKey(key)
		if _, ok := r.policy.Custom(id); ok {
			visit(strings.ToLower(id))
		}
	}
	return skipped
}

func (lf *lockFile) target(tfm string) (ordered[lockLibrary], bool) {
	for _, name := range targetNames(tfm) {
		if t, ok := lf.Targets.get(name); ok {
			return t, true
		}
	}
	return ordered[lockLibrary]{}, false
}

// directDependencies returns the lower-cased package ids the project declares itself.
func (lf *lockFile) directDependencies() sets.Set[string] {
	direct := sets.New[string]()
	for _, fw := range lf.Project.Frameworks {
		for id := range fw.Dependencies {
			direct.Add(strings.ToLower(id))
		}
	}
	return direct
}

func hasCompileAssembly(lib lockLibrary) bool {
	for _, item := range lib.Compile.Keys {
		if strings.HasSuffix(strings.ToLower(item), ".dll") {
			return true
		}
	}
	return false
}

// splitLibraryKey splits "Newtonsoft.Json/13.0.1" into id and version.
func splitLibraryKey(key string) (string, string) {
	i := strings.LastIndex(key, "/")
	if i < 0 {
		return key, ""
	}
	return key[:i], key[i+1:]
}
