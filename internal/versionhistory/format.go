package versionhistory

import (
	"strings"
	"time"
)

const columnGap = 4

// Format renders the revision comment body. The boolean is false for a nil history.
func Format(h *History) (string, bool) {
	if h == nil {
		return "", false
	}

	header := [3]string{"DATE", "VERSION", "AUTHOR"}
	rows := make([][3]string, len(h.Entries))
	widths := [3]int{len(header[0]), len(header[1]), len(header[2])}
	for i, e := range h.Entries {
		rows[i] = [3]string{formatDate(e.Date), e.Version, provider(e.Author, e.Company)}
		for c, cell := range rows[i] {
			if n := len([]rune(cell)); n > widths[c] {
				widths[c] = n
			}
		}
	}
	for c := range widths {
		widths[c] += columnGap
	}
	indent := strings.Repeat(" ", widths[0]+widths[1]+widths[2])

	var sb strings.Builder
	sb.WriteString("\n\n")
	sb.WriteString(Marker)
	sb.WriteString("\n\n")
	writeCells(&sb, header, widths)
	sb.WriteString("COMMENTS\n\n")

	for i, e := range h.Entries {
		writeCells(&sb, rows[i], widths)
		for j, ch := range e.Changes {
			if j > 0 {
				sb.WriteString("\n")
				sb.WriteString(indent)
			}
			sb.WriteString(ch.Kind.Prefix())
			sb.WriteString(ch.Text)
		}
		sb.WriteString("\n")
	}
	return sb.String(), true
}

func writeCells(sb *strings.Builder, cells [3]string, widths [3]int) {
	for c, cell := range cells {
		sb.WriteString(cell)
		sb.WriteString(strings.Repeat(" ", widths[c]-len([]rune(cell))))
	}
}

// formatDate converts YYYY-MM-DD into DD/MM/YYYY; other values are kept verbatim.
func formatDate(s string) string {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return s
	}
	return t.Format("02/01/2006")
}

func provider(author, company string) string {
	switch {
	case author == "":
		return company
	case company == "":
		return author
	default:
		return author + ", " + company
	}
}
