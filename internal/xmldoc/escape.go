package xmldoc

import "strings"

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
)

// EscapeText escapes s for use as element character data.
func EscapeText(s string) string { return textEscaper.Replace(s) }

// EscapeAttr escapes s for use inside a double-quoted attribute value.
func EscapeAttr(s string) string { return attrEscaper.Replace(s) }

// CDATA wraps s in a CDATA section. Occurrences of "]]>" are split across
// two sections so the payload survives unchanged.
func CDATA(s string) string {
	return "<![CDATA[" + strings.ReplaceAll(s, "]]>", "]]]]><![CDATA[>") + "]]>"
}
