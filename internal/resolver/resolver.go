package resolver

import (
	"fmt"

	"github.com/geocatalog/internal/secret"
	"github.com/geocatalog/pkg/catalog"
	apperrors "github.com/geocatalog/pkg/errors"
	"github.com/geocatalog/pkg/utils"
)

// Outcome describes what Resolve changed on a record that is still valid.
type Outcome struct {
	// Patches lists the fallbacks applied, one message each.
	Patches []string
}

// Patched reports whether any fallback was applied.
func (o Outcome) Patched() bool { return len(o.Patches) > 0 }

// Resolver binds references against the catalog built so far. It must only
// be used from the goroutine that mutates the catalog.
type Resolver struct {
	catalog   *catalog.Catalog
	policy    FallbackPolicy
	decrypter secret.Decrypter
	logger    utils.Logger

	outcome Outcome
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithFallbackPolicy sets the fallback style names.
func WithFallbackPolicy(p FallbackPolicy) Option {
	return func(r *Resolver) { r.policy = p }
}

// WithDecrypter sets the decrypter for encrypted store connection parameters.
func WithDecrypter(d secret.Decrypter) Option {
	return func(r *Resolver) { r.decrypter = d }
}

// WithLogger sets the logger.
func WithLogger(l utils.Logger) Option {
	return func(r *Resolver) { r.logger = utils.OrNull(l) }
}

// New returns a resolver over c.
func New(c *catalog.Catalog, opts ...Option) *Resolver {
	r := &Resolver{
		catalog:   c,
		policy:    DefaultFallbackPolicy(),
		decrypter: secret.NoKey{},
		logger:    &utils.NullLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve binds every reference of info in place. A missing required
// reference is returned as an error and the record must be dropped; missing
// or mis-scoped optional references are patched and reported in the Outcome.
func (r *Resolver) Resolve(info catalog.Info) (Outcome, error) {
	r.outcome = Outcome{}
	err := info.Accept(r)
	out := r.outcome
	r.outcome = Outcome{}
	return out, err
}

func (r *Resolver) patch(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	r.logger.Error("%s", msg)
	r.outcome.Patches = append(r.outcome.Patches, msg)
}

// ============================================================================
// Lookup
// ============================================================================

// lookup finds the live object a reference points to: by id in the declared
// kind, or by global name for name-only references.
func lookup[T catalog.Info](c *catalog.Catalog, ref *catalog.Ref[T]) (T, bool) {
	var zero T
	if ref == nil {
		return zero, false
	}
	if ref.Resolved() && c.Contains(ref.Get()) {
		return ref.Get(), true
	}
	if ref.ID != "" {
		return catalog.Lookup[T](c, ref.Kind, ref.ID)
	}
	var found catalog.Info
	switch ref.Kind {
	case catalog.KindWorkspace:
		if ws := c.WorkspaceByName(ref.Name); ws != nil {
			found = ws
		}
	case catalog.KindNamespace:
		if ns := c.NamespaceByPrefix(ref.Name); ns != nil {
			found = ns
		}
	case catalog.KindStyle:
		if s := c.StyleByName(ref.Name); s != nil {
			found = s
		}
	case catalog.KindLayerGroup:
		if lg := c.LayerGroupByName("", ref.Name); lg != nil {
			found = lg
		}
	}
	t, ok := found.(T)
	return t, ok
}

// bindRequired binds ref or fails with MISSING_REFERENCE. A nil ref is only
// an error when mandatory is set.
func bindRequired[T catalog.Info](r *Resolver, owner catalog.Info, field string, ref *catalog.Ref[T], mandatory bool) error {
	if ref == nil {
		if mandatory {
			return apperrors.Newf(apperrors.CodeValidation, "%s has no %s. Object ignored.", catalog.Describe(owner), field)
		}
		return nil
	}
	target, ok := lookup(r.catalog, ref)
	if !ok {
		return apperrors.Newf(apperrors.CodeMissingReference, "%s has a missing link to %s[%s]. Object ignored.",
			catalog.Describe(owner), ref.Kind, ref.Key())
	}
	ref.Bind(target)
	return nil
}

// ============================================================================
// Per-kind resolution
// ============================================================================

func (r *Resolver) VisitWorkspace(*catalog.Workspace) error { return nil }
func (r *Resolver) VisitNamespace(*catalog.Namespace) error { return nil }

func (r *Resolver) VisitStore(s *catalog.Store) error {
	if err := bindRequired(r, s, "workspace", s.Workspace, true); err != nil {
		return err
	}
	r.decryptParameters(s)
	return nil
}

// decryptParameters replaces encrypted connection parameters with their
// plaintext. A value that fails to decrypt disables the store.
func (r *Resolver) decryptParameters(s *catalog.Store) {
	for key, value := range s.ConnectionParameters {
		if !secret.IsEncrypted(value) {
			continue
		}
		plain, err := r.decrypter.Decrypt(value)
		if err != nil {
			s.Enabled = false
			r.patch("Store %s: cannot decrypt connection parameter %q, store disabled: %v", catalog.Describe(s), key, err)
			continue
		}
		s.ConnectionParameters[key] = plain
	}
}

func (r *Resolver) VisitResource(res *catalog.Resource) error {
	if err := bindRequired(r, res, "store", res.Store, true); err != nil {
		return err
	}
	return bindRequired(r, res, "namespace", res.Namespace, true)
}

func (r *Resolver) VisitStyle(s *catalog.Style) error {
	return bindRequired(r, s, "workspace", s.Workspace, false)
}

func (r *Resolver) VisitLayer(l *catalog.Layer) error {
	if err := bindRequired(r, l, "resource", l.Resource, true); err != nil {
		return err
	}
	res := l.Resource.Get()
	if res.StoreWorkspace() == nil {
		return apperrors.Newf(apperrors.CodeMissingReference,
			"%s has a resource without a resolved store workspace. Object ignored.", catalog.Describe(l))
	}
	r.resolveDefaultStyle(l)

	if len(l.Styles) == 0 {
		return nil
	}
	if res.Type.IsRemote() {
		r.keepResolvableStyles(l)
		return nil
	}
	seen := make(map[*catalog.Style]bool, len(l.Styles))
	styles := l.Styles[:0]
	for _, ref := range l.Styles {
		s := r.resolveLayerStyle(l, ref)
		if s == nil || seen[s] {
			continue
		}
		seen[s] = true
		styles = append(styles, catalog.RefTo(s))
	}
	l.Styles = styles
	return nil
}

// resolveDefaultStyle assigns the fallback style when the default style is
// absent, dangling or owned by another workspace.
func (r *Resolver) resolveDefaultStyle(l *catalog.Layer) {
	if l.DefaultStyle == nil {
		fb := r.fallbackFor(l)
		r.patch("Layer %s has no default style, assigned '%s'", l.PrefixedName(), styleName(fb))
		l.DefaultStyle = refOrNil(fb)
		return
	}
	if _, ok := lookup(r.catalog, l.DefaultStyle); !ok {
		fb := r.fallbackFor(l)
		r.patch("Layer %s has a dangling default style %s, assigned '%s'", l.PrefixedName(), l.DefaultStyle.Key(), styleName(fb))
		l.DefaultStyle = refOrNil(fb)
		return
	}
	l.DefaultStyle = refOrNil(r.resolveLayerStyle(l, l.DefaultStyle))
}

// resolveLayerStyle returns the style ref points to when it is global or in
// the layer's workspace, else the fallback style.
func (r *Resolver) resolveLayerStyle(l *catalog.Layer, ref *catalog.Ref[*catalog.Style]) *catalog.Style {
	s, ok := lookup(r.catalog, ref)
	if !ok {
		fb := r.fallbackFor(l)
		r.patch("Layer %s points to style (%s) which does not exist or belongs to another workspace. Assigning the generic style '%s'",
			l.PrefixedName(), ref.Key(), styleName(fb))
		return fb
	}
	styleWs := s.Workspace.Get()
	if styleWs == nil {
		return s
	}
	if layerWs := l.Workspace(); layerWs != nil && layerWs.Name == styleWs.Name {
		return s
	}
	fb := r.fallbackFor(l)
	r.patch("Layer %s points to style %s[%s] that belongs to another workspace. Assigning the generic style '%s'",
		l.PrefixedName(), s.PrefixedName(), s.ID, styleName(fb))
	return fb
}

// keepResolvableStyles binds the extra styles of a cascaded layer without
// fallbacks; entries that do not resolve are dropped.
func (r *Resolver) keepResolvableStyles(l *catalog.Layer) {
	styles := l.Styles[:0]
	for _, ref := range l.Styles {
		if s, ok := lookup(r.catalog, ref); ok {
			ref.Bind(s)
			styles = append(styles, ref)
			continue
		}
		r.patch("Layer %s: removed dangling style %s of a cascaded resource", l.PrefixedName(), ref.Key())
	}
	l.Styles = styles
}

// fallbackFor returns the fallback style for l, or nil when the catalog does
// not have it.
func (r *Resolver) fallbackFor(l *catalog.Layer) *catalog.Style {
	name := r.policy.StyleFor(l.Resource.Get())
	s := r.catalog.StyleByName(name)
	if s == nil {
		r.logger.Warn("Fallback style '%s' is not in the catalog", name)
	}
	return s
}

func styleName(s *catalog.Style) string {
	if s == nil {
		return "<none>"
	}
	return s.Name
}

func refOrNil(s *catalog.Style) *catalog.Ref[*catalog.Style] {
	if s == nil {
		return nil
	}
	return catalog.RefTo(s)
}

func (r *Resolver) VisitLayerGroup(lg *catalog.LayerGroup) error {
	if err := bindRequired(r, lg, "workspace", lg.Workspace, false); err != nil {
		return err
	}
	if err := bindRequired(r, lg, "rootLayer", lg.RootLayer, false); err != nil {
		return err
	}
	if err := bindRequired(r, lg, "rootLayerStyle", lg.RootLayerStyle, false); err != nil {
		return err
	}
	r.resolveMembers(lg.Layers)
	r.resolveGroupStyles(lg, lg.Layers, lg.Styles)
	for _, gs := range lg.GroupStyles {
		r.resolveMembers(gs.Layers)
		r.resolveGroupStyles(lg, gs.Layers, gs.Styles)
	}
	return nil
}

// resolveMembers binds the members that are already in the catalog. The
// others keep their placeholder, since nested groups may not be loaded yet;
// Catalog.Resolve revisits them once every phase is done.
func (r *Resolver) resolveMembers(members []*catalog.Ref[catalog.Published]) {
	for _, m := range members {
		if m == nil {
			continue
		}
		if p, ok := lookup(r.catalog, m); ok {
			m.Bind(p)
			continue
		}
		m.Unbind()
		r.logger.Debug("Keeping unresolved member %s[%s] for the final pass", m.Kind, m.Key())
	}
}

// resolveGroupStyles binds style overrides positionally. A name-only override
// of a nested group member names one of that group's styles and becomes a
// synthetic style. Overrides that do not resolve are cleared, so the member
// keeps its default style.
func (r *Resolver) resolveGroupStyles(lg *catalog.LayerGroup, members []*catalog.Ref[catalog.Published], styles []*catalog.Ref[*catalog.Style]) {
	for i, ref := range styles {
		if ref == nil {
			continue
		}
		if i < len(members) && members[i] != nil && members[i].Kind == catalog.KindLayerGroup && ref.IsNameOnly() {
			ref.Bind(catalog.NewNamedStyle(ref.Name))
			continue
		}
		if s, ok := lookup(r.catalog, ref); ok {
			ref.Bind(s)
			continue
		}
		styles[i] = nil
		r.patch("%s: style %s of member %d does not exist, using the member default", catalog.Describe(lg), ref.Key(), i)
	}
}

// ============================================================================
// Style scope
// ============================================================================

// CheckStyleScope verifies that a style loaded from the directory of
// expected (nil for the global styles directory) declares that workspace.
func CheckStyleScope(expected *catalog.Workspace, s *catalog.Style) error {
	declared := s.Workspace.Key()
	if expected == nil {
		if s.Workspace != nil {
			return apperrors.Newf(apperrors.CodeScopeViolation,
				"Style %s (%s) is expected to have no workspace but has workspace %s. Style ignored.", s.Name, s.ID, declared)
		}
		return nil
	}
	if s.Workspace == nil {
		return apperrors.Newf(apperrors.CodeScopeViolation,
			"Style %s[%s] should have workspace %s but has no workspace. Style ignored.", s.Name, s.ID, expected.Name)
	}
	if declared != expected.ID && declared != expected.Name {
		return apperrors.Newf(apperrors.CodeScopeViolation,
			"Style %s[%s] should have workspace %s but has workspace %s. Style ignored.", s.Name, s.ID, expected.Name, declared)
	}
	return nil
}
