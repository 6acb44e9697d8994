package catalog

import (
	"fmt"
	"strings"

	apperrors "github.com/geocatalog/pkg/errors"
)

// keyVisitor computes the natural key used for name uniqueness.
type keyVisitor struct{ key string }

func naturalKey(info Info) string {
	v := &keyVisitor{}
	_ = info.Accept(v)
	return v.key
}

func (v *keyVisitor) VisitWorkspace(ws *Workspace) error {
	v.key = strings.ToLower(ws.Name)
	return nil
}

func (v *keyVisitor) VisitNamespace(ns *Namespace) error {
	v.key = strings.ToLower(ns.Prefix)
	return nil
}

func (v *keyVisitor) VisitStore(s *Store) error {
	v.key = scopeKey(s.Workspace.Key(), s.Name)
	return nil
}

func (v *keyVisitor) VisitResource(r *Resource) error {
	v.key = scopeKey(r.Namespace.Key(), r.Name)
	return nil
}

func (v *keyVisitor) VisitLayer(l *Layer) error {
	scope := ""
	if res := l.Resource.Get(); res != nil {
		scope = res.Namespace.Key()
	}
	v.key = scopeKey(scope, l.Name)
	return nil
}

func (v *keyVisitor) VisitLayerGroup(lg *LayerGroup) error {
	v.key = scopeKey(lg.Workspace.Key(), lg.Name)
	return nil
}

func (v *keyVisitor) VisitStyle(s *Style) error {
	v.key = scopeKey(s.Workspace.Key(), s.Name)
	return nil
}

// linkVisitor enumerates the non-nil reference fields of an object.
type linkVisitor struct {
	links    []link
	required map[string]bool
}

func linksOf(info Info) ([]link, map[string]bool) {
	v := &linkVisitor{required: make(map[string]bool)}
	_ = info.Accept(v)
	return v.links, v.required
}

func addLink[T Info](v *linkVisitor, field string, r *Ref[T], required bool) {
	if required {
		v.required[field] = true
	}
	if r == nil {
		return
	}
	v.links = append(v.links, linkOf(field, r))
}

func addLinks[T Info](v *linkVisitor, field string, refs []*Ref[T]) {
	for i, r := range refs {
		addLink(v, fmt.Sprintf("%s[%d]", field, i), r, false)
	}
}

func (v *linkVisitor) VisitWorkspace(*Workspace) error { return nil }
func (v *linkVisitor) VisitNamespace(*Namespace) error { return nil }

func (v *linkVisitor) VisitStore(s *Store) error {
	addLink(v, "workspace", s.Workspace, true)
	return nil
}

func (v *linkVisitor) VisitResource(r *Resource) error {
	addLink(v, "store", r.Store, true)
	addLink(v, "namespace", r.Namespace, true)
	return nil
}

func (v *linkVisitor) VisitLayer(l *Layer) error {
	addLink(v, "resource", l.Resource, true)
	addLink(v, "defaultStyle", l.DefaultStyle, false)
	addLinks(v, "styles", l.Styles)
	return nil
}

func (v *linkVisitor) VisitLayerGroup(lg *LayerGroup) error {
	addLink(v, "workspace", lg.Workspace, false)
	addLink(v, "rootLayer", lg.RootLayer, false)
	addLink(v, "rootLayerStyle", lg.RootLayerStyle, false)
	addLinks(v, "layers", lg.Layers)
	addLinks(v, "styles", lg.Styles)
	for _, gs := range lg.GroupStyles {
		addLinks(v, gs.Name+".layers", gs.Layers)
		addLinks(v, gs.Name+".styles", gs.Styles)
	}
	return nil
}

func (v *linkVisitor) VisitStyle(s *Style) error {
	addLink(v, "workspace", s.Workspace, false)
	return nil
}

// checkLinksLocked reports the first problem with info's references: a
// missing required field, or a link that is not bound to a stored object.
// Links to synthetic named styles are accepted.
func (c *Catalog) checkLinksLocked(info Info) error {
	links, required := linksOf(info)
	present := make(map[string]bool, len(links))
	for _, l := range links {
		present[l.field] = true
		if s, ok := l.target.(*Style); ok && s.IsSynthetic() {
			continue
		}
		if l.target == nil || !c.containsLocked(l.target) {
			return apperrors.Newf(apperrors.CodeMissingReference,
				"%s has a missing link to %s[%s] in %s", Describe(info), l.kind, l.key, l.field)
		}
	}
	for field := range required {
		if !present[field] {
			return apperrors.Newf(apperrors.CodeValidation, "%s has no %s", Describe(info), field)
		}
	}
	return nil
}

// validate runs the extended integrity checks.
func (c *Catalog) validate(info Info) error {
	if strings.TrimSpace(info.GetName()) == "" {
		return apperrors.Newf(apperrors.CodeValidation, "%s has no name", Describe(info))
	}
	if err := c.checkLinksLocked(info); err != nil {
		return err
	}
	if lg, ok := info.(*LayerGroup); ok {
		if len(lg.Layers) == 0 && len(lg.GroupStyles) == 0 {
			return apperrors.Newf(apperrors.CodeValidation, "%s has no layers", Describe(lg))
		}
		if len(lg.Styles) > 0 && len(lg.Styles) != len(lg.Layers) {
			return apperrors.Newf(apperrors.CodeValidation,
				"%s has %d layers but %d styles", Describe(lg), len(lg.Layers), len(lg.Styles))
		}
		if err := checkGroupScope(lg); err != nil {
			return err
		}
		return checkGroupLoop(lg)
	}
	return nil
}

// checkGroupScope rejects a workspace group with members from another workspace.
func checkGroupScope(lg *LayerGroup) error {
	ws := lg.Workspace.Get()
	if ws == nil {
		return nil
	}
	for _, m := range groupMembers(lg) {
		var memberWs *Workspace
		switch p := m.Get().(type) {
		case *Layer:
			memberWs = p.Workspace()
		case *LayerGroup:
			memberWs = p.Workspace.Get()
		}
		if memberWs != nil && memberWs.ID != ws.ID {
			return apperrors.Newf(apperrors.CodeScopeViolation,
				"%s in workspace %s contains %s from workspace %s",
				Describe(lg), ws.Name, Describe(m.Get()), memberWs.Name)
		}
	}
	return nil
}

// checkGroupLoop rejects a group that contains itself, directly or through
// nested groups. Only bound members are followed.
func checkGroupLoop(lg *LayerGroup) error {
	seen := make(map[*LayerGroup]bool)
	var contains func(g *LayerGroup) bool
	contains = func(g *LayerGroup) bool {
		for _, m := range groupMembers(g) {
			child, ok := m.Get().(*LayerGroup)
			if !ok || child == nil {
				continue
			}
			if child == lg {
				return true
			}
			if seen[child] {
				continue
			}
			seen[child] = true
			if contains(child) {
				return true
			}
		}
		return false
	}
	if contains(lg) {
		return apperrors.Newf(apperrors.CodeValidation, "%s contains itself", Describe(lg))
	}
	return nil
}

func groupMembers(lg *LayerGroup) []*Ref[Published] {
	members := append([]*Ref[Published](nil), lg.Layers...)
	for _, gs := range lg.GroupStyles {
		members = append(members, gs.Layers...)
	}
	return members
}

// Eviction records an object removed by Resolve.
type Eviction struct {
	Info   Info
	Reason error
}

// Resolve is the whole-catalog consistency pass. It binds every reference
// that is still a proxy (or points to an object that is no longer stored)
// to the stored object with the same id, then evicts objects whose links
// still dangle, workspace groups holding members of other workspaces and
// groups that contain themselves.
// Eviction cascades until no more objects are removed.
func (c *Catalog) Resolve() []Eviction {
	var evicted []Eviction
	for {
		round := c.resolveRound()
		if len(round) == 0 {
			return evicted
		}
		for _, e := range round {
			done := c.observe("remove", e.Info)
			c.mu.Lock()
			_ = c.removeLocked(e.Info)
			c.mu.Unlock()
			done()
		}
		evicted = append(evicted, round...)
	}
}

func (c *Catalog) resolveRound() []Eviction {
	c.mu.Lock()
	defer c.mu.Unlock()

	var round []Eviction
	for _, kind := range Kinds {
		for _, info := range c.listLocked(kind) {
			links, _ := linksOf(info)
			for _, l := range links {
				if s, ok := l.target.(*Style); ok && s.IsSynthetic() {
					continue
				}
				if l.target != nil && c.containsLocked(l.target) {
					continue
				}
				if target := c.findLocked(l); target != nil {
					l.bind(target)
				}
			}
			if err := c.checkLinksLocked(info); err != nil {
				round = append(round, Eviction{Info: info, Reason: err})
				continue
			}
			if lg, ok := info.(*LayerGroup); ok {
				if err := checkGroupScope(lg); err != nil {
					round = append(round, Eviction{Info: info, Reason: err})
				} else if err := checkGroupLoop(lg); err != nil {
					round = append(round, Eviction{Info: info, Reason: err})
				}
			}
		}
	}
	return round
}

// findLocked looks a link's target up by id, or by global name for name-only refs.
func (c *Catalog) findLocked(l link) Info {
	kinds := []Kind{l.kind}
	switch l.kind {
	case KindLayer:
		kinds = append(kinds, KindLayerGroup)
	case KindLayerGroup:
		kinds = append(kinds, KindLayer)
	}
	for _, k := range kinds {
		if info, ok := c.objects[k][l.key]; ok {
			return info
		}
		if id, ok := c.names[k][scopeKey("", l.key)]; ok {
			return c.objects[k][id]
		}
	}
	return nil
}

// Dangling lists every reference of a stored object that does not point to
// a stored object. Synthetic named styles are not reported.
func (c *Catalog) Dangling() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []string
	for _, kind := range Kinds {
		for _, info := range c.listLocked(kind) {
			links, _ := linksOf(info)
			for _, l := range links {
				if s, ok := l.target.(*Style); ok && s.IsSynthetic() {
					continue
				}
				if l.target == nil || !c.containsLocked(l.target) {
					out = append(out, fmt.Sprintf("%s.%s -> %s[%s]", Describe(info), l.field, l.kind, l.key))
				}
			}
		}
	}
	return out
}
