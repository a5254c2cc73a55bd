package assets

import (
	"strings"
)

// targetNames returns the lock-file target names a framework moniker may appear under:
// the moniker itself and, for .NET Framework short names, the long form.
func targetNames(tfm string) []string {
	names := []string{tfm}
	if long, ok := netFrameworkLongName(tfm); ok {
		names = append(names, long)
	}
	return names
}

// netFrameworkLongName maps "net462" onto ".NETFramework,Version=v4.6.2".
func netFrameworkLongName(tfm string) (string, bool) {
	digits, ok := strings.CutPrefix(strings.ToLower(tfm), "net")
	if !ok || len(digits) < 2 || len(digits) > 3 {
		return "", false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", false
		}
	}
	parts := make([]string, 0, len(digits))
	for _, r := range digits {
		parts = append(parts, string(r))
	}
	return ".NETFramework,Version=v" + strings.Join(parts, "."), true
}
