package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeySession    = "session_id"
	KeyStage      = "stage"
	KeyUnit       = "unit"
	KeyArtifact   = "artifact"
	KeyPackage    = "package"
	KeyVersion    = "version"
	KeyFramework  = "framework"
	KeyAssembly   = "assembly"
	KeyPath       = "path"
	KeyState      = "state"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Session(id string) slog.Attr     { return slog.String(KeySession, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func Unit(name string) slog.Attr      { return slog.String(KeyUnit, name) }
func Artifact(name string) slog.Attr  { return slog.String(KeyArtifact, name) }
func Package(id string) slog.Attr     { return slog.String(KeyPackage, id) }
func Version(v string) slog.Attr      { return slog.String(KeyVersion, v) }
func Framework(tfm string) slog.Attr  { return slog.String(KeyFramework, tfm) }
func Assembly(name string) slog.Attr  { return slog.String(KeyAssembly, name) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func State(s string) slog.Attr        { return slog.String(KeyState, s) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
