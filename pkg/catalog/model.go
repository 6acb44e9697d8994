package catalog

import "strings"

// Workspace is a top level naming scope.
type Workspace struct {
	ID       string
	Name     string
	Isolated bool
}

func (w *Workspace) GetID() string          { return w.ID }
func (w *Workspace) GetName() string        { return w.Name }
func (w *Workspace) Kind() Kind             { return KindWorkspace }
func (w *Workspace) Accept(v Visitor) error { return v.VisitWorkspace(w) }

// Namespace pairs a workspace name (its prefix) with a URI.
type Namespace struct {
	ID       string
	Prefix   string
	URI      string
	Isolated bool
}

func (n *Namespace) GetID() string          { return n.ID }
func (n *Namespace) GetName() string        { return n.Prefix }
func (n *Namespace) Kind() Kind             { return KindNamespace }
func (n *Namespace) Accept(v Visitor) error { return v.VisitNamespace(n) }

// StoreType distinguishes the store flavours.
type StoreType string

const (
	StoreTypeData     StoreType = "dataStore"
	StoreTypeCoverage StoreType = "coverageStore"
	StoreTypeWMS      StoreType = "wmsStore"
	StoreTypeWMTS     StoreType = "wmtsStore"
)

// Store is a connection to a data source, owned by a workspace.
type Store struct {
	ID          string
	Name        string
	Description string
	Type        StoreType
	Enabled     bool
	Workspace   *Ref[*Workspace]
	// ConnectionParameters may hold encrypted values (see internal/secret).
	ConnectionParameters map[string]string
}

func (s *Store) GetID() string          { return s.ID }
func (s *Store) GetName() string        { return s.Name }
func (s *Store) Kind() Kind             { return KindStore }
func (s *Store) Accept(v Visitor) error { return v.VisitStore(s) }

// ResourceType distinguishes the resource flavours.
type ResourceType string

const (
	ResourceTypeFeature  ResourceType = "featureType"
	ResourceTypeCoverage ResourceType = "coverage"
	ResourceTypeWMS      ResourceType = "wmsLayer"
	ResourceTypeWMTS     ResourceType = "wmtsLayer"
)

// IsRemote reports whether the resource cascades a remote map service.
func (t ResourceType) IsRemote() bool {
	return t == ResourceTypeWMS || t == ResourceTypeWMTS
}

// Resource is a dataset published from a store.
type Resource struct {
	ID         string
	Name       string
	NativeName string
	Title      string
	Type       ResourceType
	Enabled    bool
	Namespace  *Ref[*Namespace]
	Store      *Ref[*Store]
}

func (r *Resource) GetID() string          { return r.ID }
func (r *Resource) GetName() string        { return r.Name }
func (r *Resource) Kind() Kind             { return KindResource }
func (r *Resource) Accept(v Visitor) error { return v.VisitResource(r) }

// StoreWorkspace returns the workspace of the resource's store when every hop is resolved.
func (r *Resource) StoreWorkspace() *Workspace {
	if r == nil || !r.Store.Resolved() {
		return nil
	}
	return r.Store.Get().Workspace.Get()
}

// Layer publishes a resource with a default style and optional extra styles.
type Layer struct {
	ID           string
	Name         string
	Enabled      bool
	Resource     *Ref[*Resource]
	DefaultStyle *Ref[*Style]
	Styles       []*Ref[*Style]
}

func (l *Layer) GetID() string          { return l.ID }
func (l *Layer) GetName() string        { return l.Name }
func (l *Layer) Kind() Kind             { return KindLayer }
func (l *Layer) Accept(v Visitor) error { return v.VisitLayer(l) }
func (l *Layer) published()             {}

// PrefixedName returns prefix:name when the resource namespace is resolved.
func (l *Layer) PrefixedName() string {
	if res := l.Resource.Get(); res != nil {
		if ns := res.Namespace.Get(); ns != nil {
			return ns.Prefix + ":" + l.Name
		}
	}
	return l.Name
}

// Workspace returns the layer's workspace through resource and store.
func (l *Layer) Workspace() *Workspace {
	return l.Resource.Get().StoreWorkspace()
}

// Style is a named rendering definition, global or owned by a workspace.
type Style struct {
	ID        string
	Name      string
	Filename  string
	Format    string
	Workspace *Ref[*Workspace]

	synthetic bool
}

// NewNamedStyle returns a style that only carries a name. It stands for a
// layer group style alias and is never stored in the catalog.
func NewNamedStyle(name string) *Style {
	return &Style{Name: name, synthetic: true}
}

func (s *Style) GetID() string          { return s.ID }
func (s *Style) GetName() string        { return s.Name }
func (s *Style) Kind() Kind             { return KindStyle }
func (s *Style) Accept(v Visitor) error { return v.VisitStyle(s) }

// IsSynthetic reports whether the style was built by NewNamedStyle.
func (s *Style) IsSynthetic() bool { return s != nil && s.synthetic }

// IsGlobal reports whether the style has no workspace.
func (s *Style) IsGlobal() bool { return s.Workspace == nil }

// PrefixedName returns workspace:name for workspace styles.
func (s *Style) PrefixedName() string {
	if ws := s.Workspace.Get(); ws != nil {
		return ws.Name + ":" + s.Name
	}
	return s.Name
}

// GroupStyle is an alternative member/style combination of a layer group.
type GroupStyle struct {
	Name   string
	Layers []*Ref[Published]
	Styles []*Ref[*Style]
}

// LayerGroup is an ordered list of published members with per-member styles.
type LayerGroup struct {
	ID             string
	Name           string
	Title          string
	Mode           string
	Workspace      *Ref[*Workspace]
	RootLayer      *Ref[*Layer]
	RootLayerStyle *Ref[*Style]
	// Layers and Styles are parallel lists; a nil style keeps the member default.
	Layers      []*Ref[Published]
	Styles      []*Ref[*Style]
	GroupStyles []*GroupStyle
}

func (g *LayerGroup) GetID() string          { return g.ID }
func (g *LayerGroup) GetName() string        { return g.Name }
func (g *LayerGroup) Kind() Kind             { return KindLayerGroup }
func (g *LayerGroup) Accept(v Visitor) error { return v.VisitLayerGroup(g) }
func (g *LayerGroup) published()             {}

// PrefixedName returns workspace:name for workspace groups.
func (g *LayerGroup) PrefixedName() string {
	if ws := g.Workspace.Get(); ws != nil {
		return ws.Name + ":" + g.Name
	}
	return g.Name
}

func scopeKey(ws string, name string) string {
	return ws + ":" + strings.ToLower(name)
}
