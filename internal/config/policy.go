package config

import "strings"

// PolicyConfig is the package policy: which imports are implicit on the target system,
// which packages never ship and which are resolved by hand.
type PolicyConfig struct {
	DefaultImports      DefaultImports  `yaml:"default_imports"`
	SkipPackages        []string        `yaml:"skip_packages"`
	SkipPackagePrefixes []string        `yaml:"skip_package_prefixes"`
	RuntimeOnlyPackages []string        `yaml:"runtime_only_packages"`
	CustomPackages      []CustomPackage `yaml:"custom_packages"`
	// FilesPackagePrefix marks packages whose assemblies are already deployed on the
	// target system; they are imported by bare assembly name and never shipped.
	FilesPackagePrefix string `yaml:"files_package_prefix"`
}

// DefaultImports lists the assemblies every placeholder gets implicitly, per layout.
type DefaultImports struct {
	Protocol   []string `yaml:"protocol"`
	Automation []string `yaml:"automation"`
}

// CustomPackage maps a package id onto a fixed import path instead of its package files.
type CustomPackage struct {
	ID   string `yaml:"id"`
	Path string `yaml:"path"`
	// InDllImportDirectory places the path under the DllImport directory in automation scripts.
	InDllImportDirectory bool `yaml:"in_dll_import_directory"`
}

// IsSkipped reports whether a package is available at runtime and must not be processed.
func (p *PolicyConfig) IsSkipped(id string) bool {
	if containsFold(p.SkipPackages, id) {
		return true
	}
	for _, prefix := range p.SkipPackagePrefixes {
		if strings.HasPrefix(id, prefix) {
			return true
		}
	}
	return false
}

// IsRuntimeOnly reports whether a package is skipped when it has no compile-time assembly.
func (p *PolicyConfig) IsRuntimeOnly(id string) bool {
	return containsFold(p.RuntimeOnlyPackages, id)
}

// IsFilesPackage reports whether id names an already deployed files package.
func (p *PolicyConfig) IsFilesPackage(id string) bool {
	return p.FilesPackagePrefix != "" && strings.HasPrefix(id, p.FilesPackagePrefix)
}

// Custom returns the hand-mapped entry for id.
func (p *PolicyConfig) Custom(id string) (CustomPackage, bool) {
	for _, c := range p.CustomPackages {
		if strings.EqualFold(c.ID, id) {
			return c, true
		}
	}
	return CustomPackage{}, false
}

// IsDefaultImport reports whether name is in the given default-imports list.
// Comparison is case-insensitive.
func IsDefaultImport(defaults []string, name string) bool {
	return containsFold(defaults, name)
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
