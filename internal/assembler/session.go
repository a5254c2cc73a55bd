package assembler

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/scriptassembler/internal/assemblyinfo"
	"git.home.luguber.info/inful/scriptassembler/internal/assets"
	"git.home.luguber.info/inful/scriptassembler/internal/buildunit"
	"git.home.luguber.info/inful/scriptassembler/internal/config"
	"git.home.luguber.info/inful/scriptassembler/internal/foundation/errors"
	"git.home.luguber.info/inful/scriptassembler/internal/imports"
	"git.home.luguber.info/inful/scriptassembler/internal/journal"
	"git.home.luguber.info/inful/scriptassembler/internal/logfields"
	"git.home.luguber.info/inful/scriptassembler/internal/metrics"
	"git.home.luguber.info/inful/scriptassembler/internal/observability"
	"git.home.luguber.info/inful/scriptassembler/internal/payload"
	"git.home.luguber.info/inful/scriptassembler/internal/unitgraph"
	"git.home.luguber.info/inful/scriptassembler/internal/util/sets"
	"git.home.luguber.info/inful/scriptassembler/internal/xmldoc"
)

// Stage names used in logs and metrics.
const (
	StageDiscover  = "discover"
	StageResolve   = "resolve"
	StageInject    = "inject"
	StageSerialize = "serialize"
)

// AssetReader reads the locked package closure of a unit.
type AssetReader interface {
	Read(unit *buildunit.Unit, targetFramework string) (*assets.Data, error)
}

// Options configures a Session. Zero values select defaults.
type Options struct {
	Config *config.Config
	// Concurrency bounds parallel unit resolution within one level.
	Concurrency int
	Assets      AssetReader
	Versions    assemblyinfo.VersionReader
	Recorder    metrics.Recorder
	Journal     journal.Store
	SessionID   string
}

// Session runs one assembly. It is not reusable.
type Session struct {
	id          string
	cfg         *config.Config
	concurrency int
	assets      AssetReader
	versions    assemblyinfo.VersionReader
	recorder    metrics.Recorder
	journal     journal.Store
	states      *stateTable
}

// NewSession creates a session from opts.
func NewSession(opts Options) *Session {
	s := &Session{
		id:          opts.SessionID,
		cfg:         opts.Config,
		concurrency: opts.Concurrency,
		assets:      opts.Assets,
		versions:    opts.Versions,
		recorder:    opts.Recorder,
		journal:     opts.Journal,
		states:      newStateTable(),
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}
	if s.cfg == nil {
		s.cfg = config.Default()
	}
	if s.concurrency <= 0 {
		s.concurrency = s.cfg.Build.Concurrency
	}
	if s.concurrency <= 0 {
		s.concurrency = 1
	}
	if s.assets == nil {
		s.assets = assets.NewReader(s.cfg)
	}
	if s.versions == nil {
		s.versions = assemblyinfo.NewCachingReader(assemblyinfo.PEReader{})
	}
	if s.recorder == nil {
		s.recorder = metrics.NoopRecorder{}
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// States returns the current state of every discovered unit.
func (s *Session) States() map[string]UnitState { return s.states.snapshot() }

// Build assembles a single template.
func Build(ctx context.Context, template *Template, units []*buildunit.Unit, opts Options) (map[string]*Artifact, error) {
	return NewSession(opts).Build(ctx, []*Template{template}, units)
}

type unitWork struct {
	payload   string
	manifests map[*Placeholder]*imports.Manifest
}

type run struct {
	templates    []*Template
	editors      []*xmldoc.Editor
	units        map[string]*buildunit.Unit
	index        map[string][]*Placeholder
	placeholders []*Placeholder
	graph        *unitgraph.Graph
	resolvers    map[string]*imports.Resolver

	mu       sync.Mutex
	work     map[string]*unitWork
	injected map[int][]*Placeholder
}

// Build assembles templates from units. It returns one artifact per
// template, keyed by artifact name, or an error and no artifacts.
func (s *Session) Build(ctx context.Context, templates []*Template, units []*buildunit.Unit) (map[string]*Artifact, error) {
	start := time.Now()
	ctx = observability.WithSessionID(ctx, s.id)
	s.recorder.SetResolveConcurrency(s.concurrency)

	names := make([]string, 0, len(templates))
	for _, t := range templates {
		if t != nil && t.Doc != nil {
			names = append(names, t.Doc.Name())
		}
	}
	started, err := journal.NewSessionStarted(s.id, names, len(units))
	s.record(ctx, started, err)
	observability.InfoContext(ctx, "Assembly session started",
		logfields.Count(len(units)))

	artifacts, err := s.build(ctx, templates, units)

	elapsed := time.Since(start)
	outcome := metrics.SessionSuccess
	switch {
	case err == nil:
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		outcome = metrics.SessionCanceled
	default:
		outcome = metrics.SessionFailed
	}
	s.recorder.ObserveSessionDuration(elapsed)
	s.recorder.IncSessionOutcome(outcome)
	finished, jerr := journal.NewSessionFinished(s.id, string(outcome), elapsed, err)
	s.record(ctx, finished, jerr)

	if err != nil {
		observability.ErrorContext(ctx, "Assembly session failed", logfields.Error(err))
		return nil, err
	}
	observability.InfoContext(ctx, "Assembly session finished",
		logfields.Count(len(artifacts)),
		logfields.DurationMS(float64(elapsed.Microseconds())/1000))
	return artifacts, nil
}

func (s *Session) build(ctx context.Context, templates []*Template, units []*buildunit.Unit) (map[string]*Artifact, error) {
	r := &run{
		templates: templates,
		editors:   make([]*xmldoc.Editor, len(templates)),
		units:     make(map[string]*buildunit.Unit, len(units)),
		index:     make(map[string][]*Placeholder),
		resolvers: make(map[string]*imports.Resolver),
		work:      make(map[string]*unitWork),
		injected:  make(map[int][]*Placeholder),
	}

	if err := s.stage(ctx, StageDiscover, func(ctx context.Context) error {
		return s.discover(ctx, r, units)
	}); err != nil {
		return nil, err
	}

	for _, level := range r.graph.Levels() {
		if err := ctx.Err(); err != nil {
			return nil, canceled(err)
		}
		work := r.pending(level)
		if len(work) == 0 {
			continue
		}
		if err := s.stage(ctx, StageResolve, func(ctx context.Context) error {
			return s.resolveLevel(ctx, r, work)
		}); err != nil {
			return nil, err
		}
		if err := s.stage(ctx, StageInject, func(ctx context.Context) error {
			return s.injectLevel(ctx, r, work)
		}); err != nil {
			return nil, err
		}
	}

	var artifacts map[string]*Artifact
	err := s.stage(ctx, StageSerialize, func(ctx context.Context) error {
		var serr error
		artifacts, serr = s.serialize(ctx, r)
		return serr
	})
	if err != nil {
		return nil, err
	}
	return artifacts, nil
}

func (s *Session) discover(ctx context.Context, r *run, units []*buildunit.Unit) error {
	for ti, t := range r.templates {
		if t == nil || t.Doc == nil || t.Layout == nil {
			return errors.ValidationError("template is missing a document or layout").Build()
		}
		phs, err := t.Layout.Placeholders(t.Doc)
		if err != nil {
			return err
		}
		seen := make(map[string]bool, len(phs))
		for _, ph := range phs {
			if seen[ph.Key] {
				return errors.ValidationError("duplicate placeholder '" + ph.Key + "'").
					WithContext("template", t.Doc.Name()).
					Build()
			}
			seen[ph.Key] = true
			ph.template = ti
			r.index[ph.Key] = append(r.index[ph.Key], ph)
			r.placeholders = append(r.placeholders, ph)
		}
		r.editors[ti] = t.Doc.Edit()
		if _, ok := r.resolvers[t.Layout.Kind()]; !ok {
			r.resolvers[t.Layout.Kind()] = imports.NewResolver(t.Layout.DefaultImports(&s.cfg.Policy), s.versions)
		}
	}

	for _, u := range units {
		r.units[u.Name] = u
	}
	for _, ph := range r.placeholders {
		if _, ok := r.units[ph.Key]; !ok {
			return errors.ReferenceError("Project with name '" + ph.Key + "' could not be found!").
				WithContext("template", r.templates[ph.template].Doc.Name()).
				Build()
		}
	}

	graph, err := unitgraph.New(units)
	if err != nil {
		return err
	}
	r.graph = graph

	for _, u := range units {
		if len(r.index[u.Name]) == 0 {
			observability.DebugContext(ctx, "Build unit has no placeholder", logfields.Unit(u.Name))
			continue
		}
		s.states.discover(u.Name)
		e, err := journal.NewUnitTransitioned(s.id, u.Name, "", string(StateDiscovered), "")
		s.record(ctx, e, err)
	}
	observability.DebugContext(ctx, "Placeholders indexed", logfields.Count(len(r.placeholders)))
	return nil
}

// pending returns the units of level that own at least one placeholder.
func (r *run) pending(level []string) []string {
	var out []string
	for _, name := range level {
		if len(r.index[name]) > 0 {
			out = append(out, name)
		}
	}
	return out
}

func (s *Session) resolveLevel(ctx context.Context, r *run, work []string) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, name := range work {
		unit := r.units[name]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return canceled(err)
			}
			uctx := observability.WithUnit(gctx, name)
			w, err := s.resolveUnit(uctx, r, unit)
			if err != nil {
				s.reject(uctx, name, err)
				return err
			}
			r.mu.Lock()
			r.work[name] = w
			r.mu.Unlock()
			return nil
		})
	}
	return g.Wait()
}

func (s *Session) resolveUnit(ctx context.Context, r *run, unit *buildunit.Unit) (*unitWork, error) {
	data, err := s.assets.Read(unit, s.cfg.TargetFramework)
	if err != nil {
		return nil, err
	}
	if err := s.transition(ctx, unit.Name, StateAssetsResolved); err != nil {
		return nil, err
	}

	w := &unitWork{
		payload:   payload.Aggregate(unit),
		manifests: make(map[*Placeholder]*imports.Manifest),
	}
	if err := s.transition(ctx, unit.Name, StatePayloadAggregated); err != nil {
		return nil, err
	}

	for _, ph := range r.index[unit.Name] {
		t := r.templates[ph.template]
		siblings := r.siblings(t.Layout, ph, unit)
		m := r.resolvers[t.Layout.Kind()].Resolve(t.Layout.PreDeclared(t.Doc, ph), unit, siblings, data)
		s.recorder.AddImportConflicts(m.Conflicts, m.Dropped)
		observability.DebugContext(ctx, "Imports resolved",
			logfields.Count(m.Len()),
			logfields.Artifact(t.Layout.ArtifactName(t.Doc)))
		w.manifests[ph] = m
	}
	return w, nil
}

// siblings names the outputs of the units referenced by unit as seen from ph.
func (r *run) siblings(layout Layout, ph *Placeholder, unit *buildunit.Unit) []buildunit.ImportCandidate {
	refs := sets.NewOrdered(unit.UnitReferences...)
	out := make([]buildunit.ImportCandidate, 0, refs.Len())
	for _, ref := range refs.Items() {
		out = append(out, layout.SiblingImport(ph, r.targetFor(ph, ref), r.units[ref]))
	}
	return out
}

// targetFor picks the placeholder of ref, preferring one in the template of from.
func (r *run) targetFor(from *Placeholder, ref string) *Placeholder {
	candidates := r.index[ref]
	for _, p := range candidates {
		if p.template == from.template {
			return p
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return nil
}

func (s *Session) injectLevel(ctx context.Context, r *run, work []string) error {
	inLevel := make(map[string]bool, len(work))
	for _, name := range work {
		inLevel[name] = true
	}

	for _, ph := range r.placeholders {
		if !inLevel[ph.Key] {
			continue
		}
		t := r.templates[ph.template]
		uctx := observability.WithUnit(observability.WithArtifact(ctx, t.Layout.ArtifactName(t.Doc)), ph.Key)

		if ph.Target != nil && !ph.Target.IsEmpty() {
			err := errors.InvariantError("Cannot replace "+ph.Display+", because the target XML node is not empty!").
				WithContext("unit", ph.Key).
				WithContext("template", t.Doc.Name()).
				Build()
			s.reject(uctx, ph.Key, err)
			s.recorder.IncUnitResult(t.Layout.Kind(), metrics.ResultRejected)
			return err
		}

		w := r.work[ph.Key]
		t.Layout.Inject(r.editors[ph.template], ph, r.units[ph.Key], w.payload, w.manifests[ph])
		r.injected[ph.template] = append(r.injected[ph.template], ph)
		observability.DebugContext(uctx, "Placeholder injected")
	}

	for _, name := range work {
		if err := s.transition(ctx, name, StateInjected); err != nil {
			return err
		}
		kind := r.templates[r.index[name][0].template].Layout.Kind()
		s.recorder.IncUnitResult(kind, metrics.ResultSuccess)
	}
	return nil
}

func (s *Session) serialize(ctx context.Context, r *run) (map[string]*Artifact, error) {
	suppressed := r.suppressed()
	artifacts := make(map[string]*Artifact, len(r.templates))

	for ti, t := range r.templates {
		name := t.Layout.ArtifactName(t.Doc)
		actx := observability.WithArtifact(ctx, name)
		if suppressed[ti] {
			observability.InfoContext(actx, "Library-only template suppressed")
			continue
		}

		ed := r.editors[ti]
		if err := t.Layout.Finalize(ed); err != nil {
			return nil, err
		}
		doc, err := ed.Bytes()
		if err != nil {
			return nil, err
		}
		if _, dup := artifacts[name]; dup {
			return nil, errors.ValidationError("duplicate artifact name '" + name + "'").
				WithContext("template", t.Doc.Name()).
				Build()
		}

		a := &Artifact{
			Name:      name,
			Layout:    t.Layout.Kind(),
			Template:  t.Doc.Name(),
			Document:  doc,
			Manifests: make(map[string]*imports.Manifest),
		}
		shipped := sets.New[string]()
		for _, ph := range r.injected[ti] {
			a.Units = append(a.Units, ph.Key)
			m := r.work[ph.Key].manifests[ph]
			a.Manifests[ph.Key] = m
			for _, asm := range m.Assemblies {
				key := asm.Path
				if key == "" {
					key = asm.Import
				}
				if shipped.Has(key) {
					continue
				}
				shipped.Add(key)
				a.Assemblies = append(a.Assemblies, asm)
			}
		}
		artifacts[name] = a

		files := make([]string, 0, len(a.Assemblies))
		for _, asm := range a.Assemblies {
			files = append(files, asm.Import)
		}
		e, jerr := journal.NewArtifactAssembled(s.id, name, a.Layout, a.Units, files, len(doc))
		s.record(actx, e, jerr)
		observability.InfoContext(actx, "Artifact assembled",
			logfields.Count(len(a.Units)),
			slog.Int("bytes", len(doc)))
	}
	return artifacts, nil
}

// suppressed marks templates whose every injected unit is a library that is
// also injected into a template that is not library-only itself.
func (r *run) suppressed() map[int]bool {
	libraryOnly := make(map[int]bool, len(r.templates))
	for ti := range r.templates {
		phs := r.injected[ti]
		if len(phs) == 0 {
			continue
		}
		only := true
		for _, ph := range phs {
			if !r.units[ph.Key].Library {
				only = false
				break
			}
		}
		libraryOnly[ti] = only
	}

	out := make(map[int]bool)
	for ti := range r.templates {
		if !libraryOnly[ti] {
			continue
		}
		nested := true
		for _, ph := range r.injected[ti] {
			if !r.injectedElsewhere(ph.Key, ti, libraryOnly) {
				nested = false
				break
			}
		}
		out[ti] = nested
	}
	return out
}

func (r *run) injectedElsewhere(key string, ti int, libraryOnly map[int]bool) bool {
	for _, p := range r.index[key] {
		if p.template != ti && !libraryOnly[p.template] {
			return true
		}
	}
	return false
}

func (s *Session) stage(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(observability.WithStage(ctx, name))
	s.recorder.ObserveStageDuration(name, time.Since(start))
	s.recorder.IncStageResult(name, resultLabel(err))
	return err
}

func (s *Session) transition(ctx context.Context, unit string, to UnitState) error {
	from, err := s.states.transition(unit, to)
	if err != nil {
		return err
	}
	observability.DebugContext(observability.WithUnit(ctx, unit), "Unit state changed",
		logfields.State(string(to)))
	e, jerr := journal.NewUnitTransitioned(s.id, unit, string(from), string(to), "")
	s.record(ctx, e, jerr)
	return nil
}

func (s *Session) reject(ctx context.Context, unit string, cause error) {
	from, err := s.states.transition(unit, StateRejected)
	if err != nil {
		return
	}
	observability.WarnContext(observability.WithUnit(ctx, unit), "Unit rejected", logfields.Error(cause))
	e, jerr := journal.NewUnitTransitioned(s.id, unit, string(from), string(StateRejected), cause.Error())
	s.record(ctx, e, jerr)
}

// record appends e to the journal. Journal failures never fail a session.
func (s *Session) record(ctx context.Context, e journal.Event, err error) {
	if s.journal == nil {
		return
	}
	if err == nil {
		err = journal.Record(ctx, s.journal, e)
	}
	if err != nil {
		observability.WarnContext(ctx, "Failed to journal session event", logfields.Error(err))
	}
}

func resultLabel(err error) metrics.ResultLabel {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return metrics.ResultCanceled
	case errors.HasCategory(err, errors.CategoryInvariant):
		return metrics.ResultRejected
	default:
		return metrics.ResultFatal
	}
}

func canceled(err error) error {
	return errors.WrapError(err, errors.CategoryInternal, "assembly session canceled").Build()
}
