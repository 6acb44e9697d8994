// Package catalog holds the configuration catalog: workspaces, namespaces,
// stores, resources, layers, layer groups and styles, indexed by identifier
// and by natural key.
//
// Objects reference each other through Ref values. A freshly decoded object
// carries unresolved refs (identifier plus declared kind); the loader binds
// them to live catalog objects before insertion.
package catalog

import "fmt"

// Kind enumerates the catalog object kinds.
type Kind int

const (
	KindWorkspace Kind = iota + 1
	KindNamespace
	KindStore
	KindResource
	KindLayer
	KindLayerGroup
	KindStyle
)

// Kinds lists every kind in dependency order.
var Kinds = []Kind{
	KindWorkspace,
	KindNamespace,
	KindStyle,
	KindStore,
	KindResource,
	KindLayer,
	KindLayerGroup,
}

// String returns the type name used in log messages.
func (k Kind) String() string {
	switch k {
	case KindWorkspace:
		return "WorkspaceInfo"
	case KindNamespace:
		return "NamespaceInfo"
	case KindStore:
		return "StoreInfo"
	case KindResource:
		return "ResourceInfo"
	case KindLayer:
		return "LayerInfo"
	case KindLayerGroup:
		return "LayerGroupInfo"
	case KindStyle:
		return "StyleInfo"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Info is implemented by the seven catalog object kinds.
type Info interface {
	GetID() string
	GetName() string
	Kind() Kind
	// Accept dispatches to the Visitor method for the concrete kind.
	Accept(v Visitor) error
}

// Visitor has one method per catalog kind. Adding a kind adds a method here,
// which breaks every implementation until it handles the new kind.
type Visitor interface {
	VisitWorkspace(ws *Workspace) error
	VisitNamespace(ns *Namespace) error
	VisitStore(s *Store) error
	VisitResource(r *Resource) error
	VisitLayer(l *Layer) error
	VisitLayerGroup(lg *LayerGroup) error
	VisitStyle(s *Style) error
}

// Published is a layer group member: a Layer or a nested LayerGroup.
type Published interface {
	Info
	published()
}

// Describe renders an object as Kind[name|id] for log messages.
func Describe(info Info) string {
	if info == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s[%s|%s]", info.Kind(), info.GetName(), info.GetID())
}
