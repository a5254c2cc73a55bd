package assembler

import (
	"path/filepath"
	"strings"

	"git.home.luguber.info/inful/scriptassembler/internal/buildunit"
	"git.home.luguber.info/inful/scriptassembler/internal/config"
	"git.home.luguber.info/inful/scriptassembler/internal/foundation/errors"
	"git.home.luguber.info/inful/scriptassembler/internal/imports"
	"git.home.luguber.info/inful/scriptassembler/internal/versionhistory"
	"git.home.luguber.info/inful/scriptassembler/internal/xmldoc"
)

// protocolOutputPrefix is substituted by DataMiner with the protocol's name
// and version when the QAction is compiled.
const protocolOutputPrefix = "[ProtocolName].[ProtocolVersion]."

// ProtocolLayout injects C# QActions into a protocol document.
type ProtocolLayout struct{}

func (ProtocolLayout) Kind() string { return "protocol" }

func (ProtocolLayout) ArtifactName(doc *xmldoc.Document) string {
	return artifactName(doc)
}

func (ProtocolLayout) Placeholders(doc *xmldoc.Document) ([]*Placeholder, error) {
	scope := doc.FindText("Name")
	var out []*Placeholder
	for _, qa := range doc.Find("QActions", "QAction") {
		enc, _ := qa.Attr("encoding")
		if !strings.EqualFold(strings.TrimSpace(enc), "csharp") {
			continue
		}
		id, _ := qa.Attr("id")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, errors.ValidationError("QAction without id").
				WithContext("template", doc.Name()).
				Build()
		}
		ph := &Placeholder{
			Key:     "QAction_" + id,
			ID:      id,
			Scope:   scope,
			Element: qa,
			Target:  qa,
		}
		ph.Display = ph.Key
		if name, ok := qa.Attr("name"); ok && name != "" {
			ph.Display = name
		}
		if opts, ok := qa.Attr("options"); ok {
			ph.Precompile, ph.DllName = parseQActionOptions(opts)
		}
		out = append(out, ph)
	}
	return out, nil
}

func (ProtocolLayout) DefaultImports(policy *config.PolicyConfig) []string {
	return policy.DefaultImports.Protocol
}

func (ProtocolLayout) PreDeclared(_ *xmldoc.Document, ph *Placeholder) []string {
	raw, ok := ph.Element.Attr("dllImport")
	if !ok {
		return nil
	}
	return splitImports(raw)
}

func (ProtocolLayout) SiblingImport(_, target *Placeholder, unit *buildunit.Unit) buildunit.ImportCandidate {
	name := unit.OutputFileName()
	switch {
	case target == nil:
	case target.DllName != "":
		name = protocolOutputPrefix + target.DllName
	case unit.OutputName != "":
		name = protocolOutputPrefix + unit.OutputName
	default:
		name = protocolOutputPrefix + "QAction." + target.ID + ".dll"
	}
	return buildunit.ImportCandidate{
		Import: name,
		Origin: buildunit.OriginSiblingOutput,
		Root:   buildunit.RootNone,
		Owner:  unit.Name,
	}
}

func (ProtocolLayout) Inject(ed *xmldoc.Editor, ph *Placeholder, _ *buildunit.Unit, payload string, m *imports.Manifest) {
	doc := ed.Document()
	indent := doc.Indent(ph.Element)
	nl := doc.Newline()
	ed.SetContent(ph.Element, nl+indent+doc.IndentUnit()+xmldoc.CDATA(payload)+nl+indent)

	if m.Len() == 0 {
		return
	}
	value := strings.Join(m.Values(), ";")
	if current, ok := ph.Element.Attr("dllImport"); ok && current == value {
		return
	}
	ed.SetAttr(ph.Element, "dllImport", value)
}

// Finalize adds the revision history comment in front of the root element
// unless the document already carries one.
func (ProtocolLayout) Finalize(ed *xmldoc.Editor) error {
	doc := ed.Document()
	for _, c := range doc.PrologComments() {
		if strings.Contains(c, versionhistory.Marker) {
			return nil
		}
	}

	h, ok, err := versionhistory.Parse(doc.Text())
	if err != nil {
		return errors.WrapError(err, errors.CategoryValidation, "failed to read version history").
			WithContext("template", doc.Name()).
			Build()
	}
	if !ok {
		return nil
	}
	block, ok := versionhistory.Format(h)
	if !ok {
		return nil
	}
	block = strings.ReplaceAll(block, "--", "- -")
	if nl := doc.Newline(); nl != "\n" {
		block = strings.ReplaceAll(block, "\n", nl)
	}
	ed.InsertBefore(doc.Root(), "<!--"+block+"-->"+doc.Newline())
	return nil
}

// parseQActionOptions reads the precompile flag and dllName override from a
// QAction options attribute such as "precompile;dllName=Common.dll".
func parseQActionOptions(raw string) (bool, string) {
	var precompile bool
	var dllName string
	for _, opt := range strings.Split(raw, ";") {
		opt = strings.TrimSpace(opt)
		key, value, hasValue := strings.Cut(opt, "=")
		switch {
		case strings.EqualFold(key, "precompile") && !hasValue:
			precompile = true
		case strings.EqualFold(key, "dllName") && hasValue:
			dllName = strings.TrimSpace(value)
		}
	}
	return precompile, dllName
}

func splitImports(raw string) []string {
	var out []string
	for _, v := range strings.Split(raw, ";") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func artifactName(doc *xmldoc.Document) string {
	if name := doc.FindText("Name"); name != "" {
		return name
	}
	base := filepath.Base(doc.Name())
	return strings.TrimSuffix(base, filepath.Ext(base))
}
