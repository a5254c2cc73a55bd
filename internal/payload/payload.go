// Package payload concatenates the source files of a build unit into the text
// embedded in its placeholder.
package payload

import (
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/scriptassembler/internal/buildunit"
)

const separator = "//---------------------------------"

// Aggregate returns the payload of unit. A single file is returned verbatim. With
// several files, the file named after the unit comes first and every file is preceded
// by a marker naming its relative path. File contents are never altered.
func Aggregate(unit *buildunit.Unit) string {
	switch len(unit.Sources) {
	case 0:
		return ""
	case 1:
		return unit.Sources[0].Content
	}

	var sb strings.Builder
	for _, f := range ordered(unit) {
		sb.WriteString("\n")
		sb.WriteString(separator)
		sb.WriteString("\n// ")
		sb.WriteString(f.Name)
		sb.WriteString("\n")
		sb.WriteString(separator)
		sb.WriteString("\n")
		sb.WriteString(f.Content)
	}
	return sb.String()
}

// ordered moves the main file to the front, keeping the declared order otherwise.
func ordered(unit *buildunit.Unit) []buildunit.SourceFile {
	out := make([]buildunit.SourceFile, 0, len(unit.Sources))
	main := -1
	for i, f := range unit.Sources {
		if main < 0 && isMainFile(f.Name, unit.Name) {
			main = i
			out = append(out, f)
		}
	}
	for i, f := range unit.Sources {
		if i != main {
			out = append(out, f)
		}
	}
	return out
}

func isMainFile(name, unitName string) bool {
	base := buildunit.BaseName(name)
	return strings.TrimSuffix(base, filepath.Ext(base)) == unitName
}
