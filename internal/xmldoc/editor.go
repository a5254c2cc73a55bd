package xmldoc

import (
	"bytes"
	"sort"
	"strings"

	"git.home.luguber.info/inful/scriptassembler/internal/foundation/errors"
)

type attrChange struct {
	name  string
	value string
}

type elementChanges struct {
	attrs   []attrChange
	content *string
	appends []string
	before  []string
}

// Editor collects changes against a Document and renders them as span
// edits. The document itself is never mutated.
type Editor struct {
	doc     *Document
	changes map[int]*elementChanges
}

// Edit starts a new set of changes against d.
func (d *Document) Edit() *Editor {
	return &Editor{doc: d, changes: make(map[int]*elementChanges)}
}

// Document returns the document being edited.
func (e *Editor) Document() *Document { return e.doc }

func (e *Editor) entry(el *Element) *elementChanges {
	c, ok := e.changes[el.Index]
	if !ok {
		c = &elementChanges{}
		e.changes[el.Index] = c
	}
	return c
}

// SetAttr sets attribute name on el to value, replacing any existing value.
func (e *Editor) SetAttr(el *Element, name, value string) {
	c := e.entry(el)
	for i := range c.attrs {
		if c.attrs[i].name == name {
			c.attrs[i].value = value
			return
		}
	}
	c.attrs = append(c.attrs, attrChange{name: name, value: value})
}

// SetContent replaces everything between the start and end tag of el with
// content, which is inserted as markup. A self-closing tag is expanded.
func (e *Editor) SetContent(el *Element, content string) {
	e.entry(el).content = &content
}

// AppendChild adds markup as the last child of el, on its own line at one
// indentation level below el.
func (e *Editor) AppendChild(el *Element, markup string) {
	c := e.entry(el)
	c.appends = append(c.appends, markup)
}

// InsertBefore inserts raw markup immediately before the start tag of el.
func (e *Editor) InsertBefore(el *Element, markup string) {
	c := e.entry(el)
	c.before = append(c.before, markup)
}

// Pending reports whether any change has been recorded.
func (e *Editor) Pending() bool { return len(e.changes) > 0 }

// Edits renders the collected changes as span edits over the UTF-8 text.
func (e *Editor) Edits() []Edit {
	idx := make([]int, 0, len(e.changes))
	for i := range e.changes {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	var edits []Edit
	for _, i := range idx {
		edits = append(edits, e.elementEdits(e.doc.elements[i], e.changes[i])...)
	}
	return edits
}

// Bytes applies the collected changes and returns the document re-encoded
// in its original encoding.
func (e *Editor) Bytes() ([]byte, error) {
	if !e.Pending() {
		return e.doc.Bytes(), nil
	}
	text, err := ApplyEdits(e.doc.text, e.Edits())
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryInternal, "failed to apply template edits").
			WithContext("template", e.doc.name).
			Build()
	}
	out, err := e.doc.codec.encode(text)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryValidation, "failed to encode template").
			WithContext("template", e.doc.name).
			Build()
	}
	return out, nil
}

func (e *Editor) elementEdits(el *Element, c *elementChanges) []Edit {
	d := e.doc
	var edits []Edit

	if len(c.before) > 0 {
		edits = append(edits, Edit{
			Start:       el.Start.Start,
			End:         el.Start.Start,
			Replacement: []byte(strings.Join(c.before, "")),
		})
	}

	tag := d.text[el.Start.Start:el.Start.End]
	if len(c.attrs) > 0 {
		tag = e.rewriteAttrs(el, tag, c.attrs)
	}
	bodyChanged := c.content != nil || len(c.appends) > 0

	if el.SelfClosing && bodyChanged {
		open := expandSelfClosing(tag)
		body := e.body(el, c)
		edits = append(edits, Edit{
			Start:       el.Start.Start,
			End:         el.Start.End,
			Replacement: []byte(open + body + "</" + el.RawName + ">"),
		})
		return edits
	}

	if len(c.attrs) > 0 {
		edits = append(edits, Edit{Start: el.Start.Start, End: el.Start.End, Replacement: tag})
	}
	if !bodyChanged {
		return edits
	}

	if c.content != nil {
		edits = append(edits, Edit{
			Start:       el.Inner.Start,
			End:         el.Inner.End,
			Replacement: []byte(e.body(el, c)),
		})
		return edits
	}

	inner := d.text[el.Inner.Start:el.Inner.End]
	trimmed := bytes.TrimRight(inner, " \t\r\n")
	if len(trimmed) == 0 {
		edits = append(edits, Edit{
			Start:       el.Inner.Start,
			End:         el.Inner.End,
			Replacement: []byte(e.body(el, c)),
		})
		return edits
	}
	at := el.Inner.Start + len(trimmed)
	edits = append(edits, Edit{Start: at, End: at, Replacement: []byte(e.appended(el, c.appends))})
	return edits
}

// body renders the full inner markup of an element whose content is being
// replaced or created.
func (e *Editor) body(el *Element, c *elementChanges) string {
	d := e.doc
	content := ""
	if c.content != nil {
		content += *c.content
	}
	if len(c.appends) == 0 {
		return content
	}
	content = strings.TrimRight(content, " \t\r\n")
	return content + e.appended(el, c.appends) + d.newline + d.Indent(el)
}

func (e *Editor) appended(el *Element, markups []string) string {
	d := e.doc
	childIndent := d.Indent(el) + d.indentUnit
	var b strings.Builder
	for _, m := range markups {
		b.WriteString(d.newline)
		b.WriteString(childIndent)
		b.WriteString(m)
	}
	return b.String()
}

// rewriteAttrs returns the start tag with the attribute changes applied.
func (e *Editor) rewriteAttrs(el *Element, tag []byte, changes []attrChange) []byte {
	base := el.Start.Start
	var local []Edit
	var added strings.Builder
	for _, ch := range changes {
		if a, ok := el.AttrSpan(ch.name); ok {
			value := EscapeAttr(ch.value)
			if a.ValueSpan.Start > 0 && e.doc.text[a.ValueSpan.Start-1] == '\'' {
				value = strings.ReplaceAll(value, "'", "&apos;")
			}
			local = append(local, Edit{
				Start:       a.ValueSpan.Start - base,
				End:         a.ValueSpan.End - base,
				Replacement: []byte(value),
			})
			continue
		}
		added.WriteString(" " + ch.name + `="` + EscapeAttr(ch.value) + `"`)
	}
	if added.Len() > 0 {
		at := 1 + len(el.RawName)
		if n := len(el.Attrs); n > 0 {
			at = el.Attrs[n-1].Span.End - base
		}
		local = append(local, Edit{Start: at, End: at, Replacement: []byte(added.String())})
	}
	out, err := ApplyEdits(tag, local)
	if err != nil {
		// Attribute spans never overlap within a single tag.
		return tag
	}
	return out
}

// expandSelfClosing turns `<a x="1" />` into `<a x="1">`.
func expandSelfClosing(tag []byte) string {
	s := strings.TrimSuffix(string(tag), "/>")
	return strings.TrimRight(s, " \t\r\n") + ">"
}
