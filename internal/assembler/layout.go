package assembler

import (
	"git.home.luguber.info/inful/scriptassembler/internal/buildunit"
	"git.home.luguber.info/inful/scriptassembler/internal/config"
	"git.home.luguber.info/inful/scriptassembler/internal/foundation/errors"
	"git.home.luguber.info/inful/scriptassembler/internal/imports"
	"git.home.luguber.info/inful/scriptassembler/internal/xmldoc"
)

// Layout knows where a kind of template keeps its placeholders and how
// payloads and imports are written into them.
type Layout interface {
	// Kind names the layout in logs and metrics.
	Kind() string
	// ArtifactName names the artifact produced from doc.
	ArtifactName(doc *xmldoc.Document) string
	// Placeholders lists the injection targets of doc in document order.
	Placeholders(doc *xmldoc.Document) ([]*Placeholder, error)
	// DefaultImports are implicitly available on the target system.
	DefaultImports(policy *config.PolicyConfig) []string
	// PreDeclared returns the imports a placeholder already carries.
	PreDeclared(doc *xmldoc.Document, ph *Placeholder) []string
	// SiblingImport names the output of unit as seen from placeholder from.
	// Target is the placeholder unit is injected into, or nil.
	SiblingImport(from, target *Placeholder, unit *buildunit.Unit) buildunit.ImportCandidate
	// Inject records the payload and manifest of unit into ph.
	Inject(ed *xmldoc.Editor, ph *Placeholder, unit *buildunit.Unit, payload string, m *imports.Manifest)
	// Finalize records document-level changes after all units are injected.
	Finalize(ed *xmldoc.Editor) error
}

// Placeholder is an injection target: one element keyed by the unit that
// fills it.
type Placeholder struct {
	Key     string
	Display string
	ID      string
	// Scope is the name of the enclosing protocol or script.
	Scope string
	// Element is the keyed element; Target receives the payload and may be
	// nil when the template has no slot for it yet.
	Element *xmldoc.Element
	Target  *xmldoc.Element

	// Precompile and DllName come from the placeholder's own options.
	Precompile bool
	DllName    string

	template int
}

// Template is a parsed document together with its layout.
type Template struct {
	Doc    *xmldoc.Document
	Layout Layout
}

// NewTemplate picks the layout from the root element of doc.
func NewTemplate(doc *xmldoc.Document, cfg *config.Config) (*Template, error) {
	switch doc.Root().Name {
	case "Protocol":
		return &Template{Doc: doc, Layout: ProtocolLayout{}}, nil
	case "DMSScript":
		return &Template{Doc: doc, Layout: NewAutomationLayout(cfg)}, nil
	default:
		return nil, errors.ValidationError("unsupported template root element '" + doc.Root().Name + "'").
			WithContext("template", doc.Name()).
			Build()
	}
}

// LoadTemplate parses the file at path and picks its layout.
func LoadTemplate(path string, cfg *config.Config) (*Template, error) {
	doc, err := xmldoc.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return NewTemplate(doc, cfg)
}
