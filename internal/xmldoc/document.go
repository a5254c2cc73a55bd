// Package xmldoc holds XML templates as their original bytes plus a parsed
// element tree whose nodes carry byte spans into those bytes. Edits are
// expressed as span replacements so everything outside an edited span is
// preserved exactly as it was read.
package xmldoc

import (
	"bytes"
	"encoding/xml"
	stderrors "errors"
	"io"
	"os"
	"strings"

	"git.home.luguber.info/inful/scriptassembler/internal/foundation/errors"
)

// Span is a half-open byte range into the UTF-8 text of a document.
type Span struct {
	Start int
	End   int
}

// Len returns the number of bytes covered.
func (s Span) Len() int { return s.End - s.Start }

// Attr is a parsed attribute together with its location in the start tag.
type Attr struct {
	Name      string // raw name as written, including any prefix
	Value     string // value with entities resolved
	Span      Span   // whole name="value" text
	ValueSpan Span   // text between the quotes
}

// Element is a node of the document tree.
type Element struct {
	Index       int
	Parent      int // -1 for the root
	Name        string
	RawName     string
	Attrs       []Attr
	Start       Span // start tag
	End         Span // end tag; empty span at Start.End for self-closing tags
	Inner       Span // between start and end tag
	SelfClosing bool
	Children    []int

	text       strings.Builder
	hasContent bool
}

// Attr returns the value of the attribute with the given raw name.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// AttrSpan returns the parsed attribute with the given raw name.
func (e *Element) AttrSpan(name string) (Attr, bool) {
	for _, a := range e.Attrs {
		if a.Name == name {
			return a, true
		}
	}
	return Attr{}, false
}

// Text returns the concatenated character data directly inside the element.
func (e *Element) Text() string { return e.text.String() }

// IsEmpty reports whether the element holds nothing but whitespace text.
// A CDATA section counts as content even when blank.
func (e *Element) IsEmpty() bool {
	return len(e.Children) == 0 && !e.hasContent
}

// Document is a parsed XML template.
type Document struct {
	name     string
	original []byte
	text     []byte
	codec    codec

	elements    []*Element
	root        int
	decl        Span
	hasDecl     bool
	prologNotes []string
	newline     string
	indentUnit  string
}

// ParseFile reads and parses the document at path.
func ParseFile(path string) (*Document, error) {
	// #nosec G304 -- path is an operator-supplied template location.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryFileSystem, "failed to read template").
			WithContext("path", path).
			Build()
	}
	return Parse(path, data)
}

// Parse parses data as an XML document. Name is used in error messages.
func Parse(name string, data []byte) (*Document, error) {
	c, err := detectCodec(data)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "unsupported template encoding").
			WithContext("template", name).
			Build()
	}
	text, err := c.decode(data)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "failed to decode template").
			WithContext("template", name).
			Build()
	}

	d := &Document{
		name:     name,
		original: append([]byte(nil), data...),
		text:     text,
		codec:    c,
		root:     -1,
		newline:  "\n",
	}
	if bytes.Contains(text, []byte("\r\n")) {
		d.newline = "\r\n"
	}
	if err := d.scan(); err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "malformed template").
			WithContext("template", name).
			Build()
	}
	if d.root < 0 {
		return nil, errors.ValidationError("template has no root element").
			WithContext("template", name).
			Build()
	}
	d.indentUnit = d.detectIndentUnit()
	return d, nil
}

var cdataOpen = []byte("<![CDATA[")

func (d *Document) scan() error {
	dec := xml.NewDecoder(bytes.NewReader(d.text))
	dec.Strict = true
	dec.CharsetReader = identityCharsetReader

	var stack []int
	for {
		start := int(dec.InputOffset())
		tok, err := dec.Token()
		if stderrors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		end := int(dec.InputOffset())

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{
				Index:  len(d.elements),
				Parent: -1,
				Name:   t.Name.Local,
				Start:  Span{Start: start, End: end},
			}
			raw := d.text[start:end]
			el.SelfClosing = bytes.HasSuffix(raw, []byte("/>"))
			el.RawName, el.Attrs = scanStartTag(raw, start, t.Attr)
			if len(stack) > 0 {
				parent := d.elements[stack[len(stack)-1]]
				el.Parent = parent.Index
				parent.Children = append(parent.Children, el.Index)
			} else if d.root < 0 {
				d.root = el.Index
			}
			d.elements = append(d.elements, el)
			stack = append(stack, el.Index)
		case xml.EndElement:
			if len(stack) == 0 {
				return stderrors.New("unbalanced end element")
			}
			el := d.elements[stack[len(stack)-1]]
			stack = stack[:len(stack)-1]
			el.End = Span{Start: start, End: end}
			el.Inner = Span{Start: el.Start.End, End: start}
		case xml.CharData:
			if len(stack) > 0 {
				el := d.elements[stack[len(stack)-1]]
				el.text.Write(t)
				if len(bytes.TrimSpace(t)) > 0 || bytes.HasPrefix(d.text[start:end], cdataOpen) {
					el.hasContent = true
				}
			}
		case xml.Comment:
			if len(stack) > 0 {
				d.elements[stack[len(stack)-1]].hasContent = true
			} else if d.root < 0 {
				d.prologNotes = append(d.prologNotes, string(t))
			}
		case xml.ProcInst:
			if len(stack) > 0 {
				d.elements[stack[len(stack)-1]].hasContent = true
			} else if t.Target == "xml" && !d.hasDecl {
				d.decl = Span{Start: start, End: end}
				d.hasDecl = true
			}
		case xml.Directive:
			if len(stack) > 0 {
				d.elements[stack[len(stack)-1]].hasContent = true
			}
		}
	}
	if len(stack) > 0 {
		return stderrors.New("unexpected end of document")
	}
	return nil
}

// scanStartTag recovers the raw element name and the attribute spans of a
// start tag. Attributes appear in the same order the decoder reports them.
func scanStartTag(raw []byte, base int, decoded []xml.Attr) (string, []Attr) {
	i := 1
	for i < len(raw) && !isSpace(raw[i]) && raw[i] != '>' && raw[i] != '/' {
		i++
	}
	name := string(raw[1:i])

	attrs := make([]Attr, 0, len(decoded))
	for n := 0; n < len(decoded); n++ {
		for i < len(raw) && isSpace(raw[i]) {
			i++
		}
		nameStart := i
		for i < len(raw) && raw[i] != '=' && !isSpace(raw[i]) {
			i++
		}
		attrName := string(raw[nameStart:i])
		for i < len(raw) && (isSpace(raw[i]) || raw[i] == '=') {
			i++
		}
		if i >= len(raw) {
			break
		}
		quote := raw[i]
		i++
		valueStart := i
		for i < len(raw) && raw[i] != quote {
			i++
		}
		valueEnd := i
		i++
		attrs = append(attrs, Attr{
			Name:      attrName,
			Value:     decoded[n].Value,
			Span:      Span{Start: base + nameStart, End: base + i},
			ValueSpan: Span{Start: base + valueStart, End: base + valueEnd},
		})
	}
	return name, attrs
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

// Name returns the name the document was parsed under.
func (d *Document) Name() string { return d.name }

// Encoding returns the canonical name of the document encoding.
func (d *Document) Encoding() string { return d.codec.name }

// Bytes returns the document exactly as it was read.
func (d *Document) Bytes() []byte { return append([]byte(nil), d.original...) }

// Text returns the document decoded to UTF-8.
func (d *Document) Text() []byte { return append([]byte(nil), d.text...) }

// Newline returns the line terminator used by the document.
func (d *Document) Newline() string { return d.newline }

// IndentUnit returns one level of indentation as used by the document.
func (d *Document) IndentUnit() string { return d.indentUnit }

// Root returns the document element.
func (d *Document) Root() *Element { return d.elements[d.root] }

// Element returns the element with the given index.
func (d *Document) Element(i int) *Element { return d.elements[i] }

// PrologComments returns the text of comments that precede the root element.
func (d *Document) PrologComments() []string { return d.prologNotes }

// Children returns the direct children of el with the given local name.
// An empty name matches every child.
func (d *Document) Children(el *Element, name string) []*Element {
	var out []*Element
	for _, c := range el.Children {
		child := d.elements[c]
		if name == "" || child.Name == name {
			out = append(out, child)
		}
	}
	return out
}

// Child returns the first direct child of el with the given local name.
func (d *Document) Child(el *Element, name string) (*Element, bool) {
	for _, c := range el.Children {
		if d.elements[c].Name == name {
			return d.elements[c], true
		}
	}
	return nil, false
}

// Find walks a path of local names starting below the root element and
// returns every element that matches the full path.
func (d *Document) Find(path ...string) []*Element {
	current := []*Element{d.Root()}
	for _, name := range path {
		var next []*Element
		for _, el := range current {
			next = append(next, d.Children(el, name)...)
		}
		current = next
	}
	return current
}

// FindText returns the text of the first element at path, trimmed.
func (d *Document) FindText(path ...string) string {
	found := d.Find(path...)
	if len(found) == 0 {
		return ""
	}
	return strings.TrimSpace(found[0].Text())
}

// Indent returns the whitespace between the start of the line and the start
// tag of el. It is empty when other content precedes the tag on its line.
func (d *Document) Indent(el *Element) string {
	i := el.Start.Start
	j := i
	for j > 0 && (d.text[j-1] == ' ' || d.text[j-1] == '\t') {
		j--
	}
	if j > 0 && d.text[j-1] != '\n' {
		return ""
	}
	return string(d.text[j:i])
}

// detectIndentUnit derives one indentation level from the first element
// nested below another element on its own line. Tabs are the fallback.
func (d *Document) detectIndentUnit() string {
	for _, el := range d.elements {
		if el.Parent < 0 {
			continue
		}
		child := d.Indent(el)
		parent := d.Indent(d.elements[el.Parent])
		if child == "" || !strings.HasPrefix(child, parent) || len(child) == len(parent) {
			continue
		}
		if d.lineStart(el.Start.Start) == d.lineStart(d.elements[el.Parent].Start.Start) {
			continue
		}
		return child[len(parent):]
	}
	return "\t"
}

func (d *Document) lineStart(off int) int {
	return bytes.LastIndexByte(d.text[:off], '\n') + 1
}
