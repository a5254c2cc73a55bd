// Package assemblyinfo reads the assembly version of a managed (.NET) library file.
//
// The version lives in the first row of the Assembly metadata table. Locating that row
// requires the sizes of every table stored before it, which in turn depend on heap
// sizes and row counts; see ECMA-335 partition II, chapters 22 and 24.
package assemblyinfo

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a four-part assembly version.
type Version struct {
	Major, Minor, Build, Revision uint16
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Revision)
}

// Compare returns -1, 0 or 1 when v is lower than, equal to or greater than o.
func (v Version) Compare(o Version) int {
	a := [4]uint16{v.Major, v.Minor, v.Build, v.Revision}
	b := [4]uint16{o.Major, o.Minor, o.Build, o.Revision}
	for i := range a {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	return 0
}

// ParseVersion parses "1.2.3.4"; missing parts are zero.
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) == 0 || len(parts) > 4 || parts[0] == "" {
		return Version{}, fmt.Errorf("invalid version %q", s)
	}
	var n [4]uint16
	for i, p := range parts {
		x, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return Version{}, fmt.Errorf("invalid version %q: %w", s, err)
		}
		n[i] = uint16(x)
	}
	return Version{Major: n[0], Minor: n[1], Build: n[2], Revision: n[3]}, nil
}
