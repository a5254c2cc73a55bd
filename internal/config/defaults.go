package config

import "runtime"

const (
	defaultTargetFramework          = "net462"
	defaultDllImportDirectory       = `C:\Skyline DataMiner\ProtocolScripts\DllImport`
	defaultProtocolScriptsDirectory = `C:\Skyline DataMiner\ProtocolScripts`
	defaultFilesPackagePrefix       = "Skyline.DataMiner.Files."
	defaultOutputDir                = "./dist"
	defaultDebounce                 = "500ms"
)

var (
	defaultProtocolImports = []string{
		"mscorlib.dll",
		"System.dll",
		"System.Core.dll",
		"System.Xml.dll",
		"System.Xml.Linq.dll",
		"Microsoft.CSharp.dll",
		"Interop.SLDms.dll",
		"SLManagedScripting.dll",
		"SLNetTypes.dll",
		"SLLoggerUtil.dll",
		"QactionHelperBaseClasses.dll",
	}

	defaultAutomationImports = []string{
		"mscorlib.dll",
		"System.dll",
		"System.Core.dll",
		"System.Xml.dll",
		"SLManagedAutomation.dll",
		"SLNetTypes.dll",
		"SLLoggerUtil.dll",
	}

	defaultSkipPackages = []string{
		"StyleCop.Analyzers",
		"Skyline.DataMiner.Files.SLManagedScripting",
		"Skyline.DataMiner.Files.SLManagedAutomation",
		"Skyline.DataMiner.Files.SLNetTypes",
		"Skyline.DataMiner.Files.QActionHelperBaseClasses",
	}

	defaultSkipPackagePrefixes = []string{"Skyline.DataMiner.Dev"}

	defaultRuntimeOnlyPackages = []string{"Newtonsoft.Json", "SharpZipLib"}

	defaultCustomPackages = []CustomPackage{
		{ID: "Skyline.DataMiner.Core.SRM", Path: `SRM\SLSRMLibrary.dll`, InDllImportDirectory: true},
		{ID: "Skyline.DataMiner.Core.SRM.Utils.Dijkstra", Path: `SRM\SLDijkstraSearch.dll`, InDllImportDirectory: true},
		{ID: "Skyline.DataMiner.Core.SRM.Utils.IAS", Path: `SRM\Skyline.DataMiner.Core.SRM.Utils.IAS.dll`, InDllImportDirectory: true},
	}
)

// applyDefaults fills unset fields. Lists are only defaulted when absent from the
// document, so an explicit empty list disables a default.
func applyDefaults(cfg *Config) {
	if cfg.Version == "" {
		cfg.Version = "1.0"
	}
	if cfg.TargetFramework == "" {
		cfg.TargetFramework = defaultTargetFramework
	}
	if cfg.DllImportDirectory == "" {
		cfg.DllImportDirectory = defaultDllImportDirectory
	}
	if cfg.ProtocolScriptsDirectory == "" {
		cfg.ProtocolScriptsDirectory = defaultProtocolScriptsDirectory
	}

	p := &cfg.Policy
	if p.DefaultImports.Protocol == nil {
		p.DefaultImports.Protocol = append([]string(nil), defaultProtocolImports...)
	}
	if p.DefaultImports.Automation == nil {
		p.DefaultImports.Automation = append([]string(nil), defaultAutomationImports...)
	}
	if p.SkipPackages == nil {
		p.SkipPackages = append([]string(nil), defaultSkipPackages...)
	}
	if p.SkipPackagePrefixes == nil {
		p.SkipPackagePrefixes = append([]string(nil), defaultSkipPackagePrefixes...)
	}
	if p.RuntimeOnlyPackages == nil {
		p.RuntimeOnlyPackages = append([]string(nil), defaultRuntimeOnlyPackages...)
	}
	if p.CustomPackages == nil {
		p.CustomPackages = append([]CustomPackage(nil), defaultCustomPackages...)
	}
	if p.FilesPackagePrefix == "" {
		p.FilesPackagePrefix = defaultFilesPackagePrefix
	}

	if cfg.Build.Concurrency <= 0 {
		cfg.Build.Concurrency = runtime.GOMAXPROCS(0)
	}
	if cfg.Build.OutputDir == "" {
		cfg.Build.OutputDir = defaultOutputDir
	}
	if cfg.Build.Debounce == "" {
		cfg.Build.Debounce = defaultDebounce
	}

	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
}
