package assembler

import (
	"strings"

	"git.home.luguber.info/inful/scriptassembler/internal/buildunit"
	"git.home.luguber.info/inful/scriptassembler/internal/config"
	"git.home.luguber.info/inful/scriptassembler/internal/foundation/errors"
	"git.home.luguber.info/inful/scriptassembler/internal/imports"
	"git.home.luguber.info/inful/scriptassembler/internal/util/sets"
	"git.home.luguber.info/inful/scriptassembler/internal/xmldoc"
)

// sameScriptName refers to the enclosing script in a scriptRef parameter.
const sameScriptName = "[AutomationScriptName]"

// AutomationLayout injects C# Exe blocks into an automation script document.
type AutomationLayout struct {
	DllImportDirectory       string
	ProtocolScriptsDirectory string
}

// NewAutomationLayout takes the target-system directories from cfg.
func NewAutomationLayout(cfg *config.Config) AutomationLayout {
	if cfg == nil {
		cfg = config.Default()
	}
	return AutomationLayout{
		DllImportDirectory:       cfg.DllImportDirectory,
		ProtocolScriptsDirectory: cfg.ProtocolScriptsDirectory,
	}
}

func (AutomationLayout) Kind() string { return "automation" }

func (AutomationLayout) ArtifactName(doc *xmldoc.Document) string {
	return artifactName(doc)
}

func (AutomationLayout) Placeholders(doc *xmldoc.Document) ([]*Placeholder, error) {
	exes := doc.Find("Script", "Exe")
	scriptName := doc.FindText("Name")

	var out []*Placeholder
	for _, exe := range exes {
		typ, _ := exe.Attr("type")
		if !strings.EqualFold(strings.TrimSpace(typ), "csharp") {
			continue
		}
		if scriptName == "" {
			return nil, errors.ValidationError("automation script has no Name").
				WithContext("template", doc.Name()).
				Build()
		}
		id, _ := exe.Attr("id")
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, errors.ValidationError("Exe without id").
				WithContext("template", doc.Name()).
				Build()
		}
		ph := &Placeholder{
			Key:     scriptName + "_" + id,
			ID:      id,
			Scope:   scriptName,
			Element: exe,
		}
		ph.Display = ph.Key
		if value, ok := doc.Child(exe, "Value"); ok {
			ph.Target = value
		}
		if v, ok := paramValue(doc, exe, "preCompile"); ok {
			ph.Precompile = strings.EqualFold(v, "true")
		}
		out = append(out, ph)
	}
	return out, nil
}

func (AutomationLayout) DefaultImports(policy *config.PolicyConfig) []string {
	return policy.DefaultImports.Automation
}

// PreDeclared returns the values of the ref and scriptRef parameters already
// present on the Exe.
func (AutomationLayout) PreDeclared(doc *xmldoc.Document, ph *Placeholder) []string {
	var out []string
	for _, p := range doc.Children(ph.Element, "Param") {
		typ, _ := p.Attr("type")
		if typ != "ref" && typ != "scriptRef" {
			continue
		}
		if v := strings.TrimSpace(p.Text()); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (AutomationLayout) SiblingImport(from, target *Placeholder, unit *buildunit.Unit) buildunit.ImportCandidate {
	lib := unit.LibraryName
	if lib == "" {
		lib = unit.Name
	}
	script := sameScriptName
	if target != nil && from != nil && target.template != from.template {
		script = target.Scope
	}
	return buildunit.ImportCandidate{
		Import: script + ":" + lib,
		Origin: buildunit.OriginSiblingOutput,
		Root:   buildunit.RootNone,
		Owner:  unit.Name,
	}
}

func (l AutomationLayout) Inject(ed *xmldoc.Editor, ph *Placeholder, unit *buildunit.Unit, payload string, m *imports.Manifest) {
	doc := ed.Document()
	nl := doc.Newline()

	if ph.Target != nil {
		indent := doc.Indent(ph.Target)
		ed.SetContent(ph.Target, nl+indent+doc.IndentUnit()+xmldoc.CDATA(payload)+nl+indent)
	} else {
		ed.AppendChild(ph.Element, "<Value>"+xmldoc.CDATA(payload)+"</Value>")
	}

	pre := sets.New(l.PreDeclared(doc, ph)...)
	for _, e := range m.Entries {
		if pre.Has(e.Value) {
			continue
		}
		if e.Origin == buildunit.OriginSiblingOutput {
			ed.AppendChild(ph.Element, param("scriptRef", e.Value))
			continue
		}
		ed.AppendChild(ph.Element, param("ref", l.render(e)))
	}

	if (unit.Precompile || unit.Library) && !hasParam(doc, ph.Element, "preCompile") {
		ed.AppendChild(ph.Element, param("preCompile", "true"))
	}
	if unit.Library && !hasParam(doc, ph.Element, "libraryName") {
		name := unit.LibraryName
		if name == "" {
			name = unit.Name
		}
		ed.AppendChild(ph.Element, param("libraryName", name))
	}
}

func (AutomationLayout) Finalize(*xmldoc.Editor) error { return nil }

// render turns a manifest entry into the path DataMiner loads it from.
func (l AutomationLayout) render(e imports.Entry) string {
	switch e.Root {
	case buildunit.RootDllImport:
		return joinWindows(l.DllImportDirectory, e.Value)
	case buildunit.RootProtocolScripts:
		return joinWindows(l.ProtocolScriptsDirectory, e.Value)
	default:
		return e.Value
	}
}

func joinWindows(dir, name string) string {
	if dir == "" {
		return name
	}
	return strings.TrimRight(dir, `\/`) + `\` + name
}

func param(typ, value string) string {
	return `<Param type="` + typ + `">` + xmldoc.EscapeText(value) + `</Param>`
}

func paramValue(doc *xmldoc.Document, exe *xmldoc.Element, typ string) (string, bool) {
	for _, p := range doc.Children(exe, "Param") {
		if t, _ := p.Attr("type"); t == typ {
			return strings.TrimSpace(p.Text()), true
		}
	}
	return "", false
}

func hasParam(doc *xmldoc.Document, exe *xmldoc.Element, typ string) bool {
	_, ok := paramValue(doc, exe, typ)
	return ok
}
