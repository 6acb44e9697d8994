package record

import (
	"fmt"
	"strings"

	"github.com/geocatalog/pkg/catalog"
)

// The DTOs below carry both xml and yaml tags so one mapping serves both codecs.

type refDTO struct {
	ID   string `xml:"id,omitempty" yaml:"id,omitempty"`
	Name string `xml:"name,omitempty" yaml:"name,omitempty"`
}

func (r refDTO) empty() bool { return r.ID == "" && r.Name == "" }

type entryDTO struct {
	Key   string `xml:"key,attr" yaml:"key"`
	Value string `xml:",chardata" yaml:"value"`
}

type workspaceDTO struct {
	ID       string `xml:"id" yaml:"id"`
	Name     string `xml:"name" yaml:"name"`
	Isolated bool   `xml:"isolated,omitempty" yaml:"isolated,omitempty"`
}

type namespaceDTO struct {
	ID       string `xml:"id" yaml:"id"`
	Prefix   string `xml:"prefix" yaml:"prefix"`
	URI      string `xml:"uri" yaml:"uri"`
	Isolated bool   `xml:"isolated,omitempty" yaml:"isolated,omitempty"`
}

type storeDTO struct {
	ID                   string     `xml:"id" yaml:"id"`
	Name                 string     `xml:"name" yaml:"name"`
	Description          string     `xml:"description,omitempty" yaml:"description,omitempty"`
	Enabled              bool       `xml:"enabled" yaml:"enabled"`
	Workspace            refDTO     `xml:"workspace" yaml:"workspace"`
	ConnectionParameters []entryDTO `xml:"connectionParameters>entry,omitempty" yaml:"connectionParameters,omitempty"`
}

type resourceDTO struct {
	ID         string `xml:"id" yaml:"id"`
	Name       string `xml:"name" yaml:"name"`
	NativeName string `xml:"nativeName,omitempty" yaml:"nativeName,omitempty"`
	Title      string `xml:"title,omitempty" yaml:"title,omitempty"`
	Enabled    bool   `xml:"enabled" yaml:"enabled"`
	Namespace  refDTO `xml:"namespace" yaml:"namespace"`
	Store      refDTO `xml:"store" yaml:"store"`
}

type layerDTO struct {
	ID           string   `xml:"id" yaml:"id"`
	Name         string   `xml:"name" yaml:"name"`
	Enabled      bool     `xml:"enabled" yaml:"enabled"`
	Resource     refDTO   `xml:"resource" yaml:"resource"`
	DefaultStyle *refDTO  `xml:"defaultStyle,omitempty" yaml:"defaultStyle,omitempty"`
	Styles       []refDTO `xml:"styles>style,omitempty" yaml:"styles,omitempty"`
}

type styleDTO struct {
	ID        string  `xml:"id" yaml:"id"`
	Name      string  `xml:"name" yaml:"name"`
	Workspace *refDTO `xml:"workspace,omitempty" yaml:"workspace,omitempty"`
	Format    string  `xml:"format,omitempty" yaml:"format,omitempty"`
	Filename  string  `xml:"filename,omitempty" yaml:"filename,omitempty"`
}

type publishedDTO struct {
	Type   string `xml:"type,attr" yaml:"type"`
	refDTO `yaml:",inline"`
}

type groupStyleDTO struct {
	Name         string         `xml:"name" yaml:"name"`
	Publishables []publishedDTO `xml:"publishables>published,omitempty" yaml:"publishables,omitempty"`
	Styles       []refDTO       `xml:"styles>style,omitempty" yaml:"styles,omitempty"`
}

type layerGroupDTO struct {
	ID             string          `xml:"id" yaml:"id"`
	Name           string          `xml:"name" yaml:"name"`
	Title          string          `xml:"title,omitempty" yaml:"title,omitempty"`
	Mode           string          `xml:"mode,omitempty" yaml:"mode,omitempty"`
	Workspace      *refDTO         `xml:"workspace,omitempty" yaml:"workspace,omitempty"`
	RootLayer      *refDTO         `xml:"rootLayer,omitempty" yaml:"rootLayer,omitempty"`
	RootLayerStyle *refDTO         `xml:"rootLayerStyle,omitempty" yaml:"rootLayerStyle,omitempty"`
	Publishables   []publishedDTO  `xml:"publishables>published,omitempty" yaml:"publishables,omitempty"`
	Styles         []refDTO        `xml:"styles>style,omitempty" yaml:"styles,omitempty"`
	GroupStyles    []groupStyleDTO `xml:"layerGroupStyles>layerGroupStyle,omitempty" yaml:"layerGroupStyles,omitempty"`
}

// Root element names. Store and resource roots double as their type names.
const (
	rootWorkspace  = "workspace"
	rootNamespace  = "namespace"
	rootLayer      = "layer"
	rootStyle      = "style"
	rootLayerGroup = "layerGroup"

	memberLayer      = "layer"
	memberLayerGroup = "layerGroup"
)

// newDTO returns an empty DTO for a root element name.
func newDTO(root string) (any, error) {
	switch root {
	case rootWorkspace:
		return &workspaceDTO{}, nil
	case rootNamespace:
		return &namespaceDTO{}, nil
	case string(catalog.StoreTypeData), string(catalog.StoreTypeCoverage),
		string(catalog.StoreTypeWMS), string(catalog.StoreTypeWMTS):
		return &storeDTO{}, nil
	case string(catalog.ResourceTypeFeature), string(catalog.ResourceTypeCoverage),
		string(catalog.ResourceTypeWMS), string(catalog.ResourceTypeWMTS):
		return &resourceDTO{}, nil
	case rootLayer:
		return &layerDTO{}, nil
	case rootStyle:
		return &styleDTO{}, nil
	case rootLayerGroup:
		return &layerGroupDTO{}, nil
	}
	return nil, fmt.Errorf("unknown record type %q", root)
}

// toInfo builds the catalog object for a decoded DTO. Every reference is
// left unresolved.
func toInfo(root string, dto any) (catalog.Info, error) {
	switch d := dto.(type) {
	case *workspaceDTO:
		return &catalog.Workspace{ID: d.ID, Name: d.Name, Isolated: d.Isolated}, nil
	case *namespaceDTO:
		return &catalog.Namespace{ID: d.ID, Prefix: d.Prefix, URI: d.URI, Isolated: d.Isolated}, nil
	case *storeDTO:
		s := &catalog.Store{
			ID:          d.ID,
			Name:        d.Name,
			Description: d.Description,
			Type:        catalog.StoreType(root),
			Enabled:     d.Enabled,
			Workspace:   ref[*catalog.Workspace](catalog.KindWorkspace, d.Workspace),
		}
		if len(d.ConnectionParameters) > 0 {
			s.ConnectionParameters = make(map[string]string, len(d.ConnectionParameters))
			for _, e := range d.ConnectionParameters {
				s.ConnectionParameters[e.Key] = strings.TrimSpace(e.Value)
			}
		}
		return s, nil
	case *resourceDTO:
		return &catalog.Resource{
			ID:         d.ID,
			Name:       d.Name,
			NativeName: d.NativeName,
			Title:      d.Title,
			Type:       catalog.ResourceType(root),
			Enabled:    d.Enabled,
			Namespace:  ref[*catalog.Namespace](catalog.KindNamespace, d.Namespace),
			Store:      ref[*catalog.Store](catalog.KindStore, d.Store),
		}, nil
	case *layerDTO:
		return &catalog.Layer{
			ID:           d.ID,
			Name:         d.Name,
			Enabled:      d.Enabled,
			Resource:     ref[*catalog.Resource](catalog.KindResource, d.Resource),
			DefaultStyle: optRef[*catalog.Style](catalog.KindStyle, d.DefaultStyle),
			Styles:       refs[*catalog.Style](catalog.KindStyle, d.Styles),
		}, nil
	case *styleDTO:
		return &catalog.Style{
			ID:        d.ID,
			Name:      d.Name,
			Filename:  d.Filename,
			Format:    d.Format,
			Workspace: optRef[*catalog.Workspace](catalog.KindWorkspace, d.Workspace),
		}, nil
	case *layerGroupDTO:
		lg := &catalog.LayerGroup{
			ID:             d.ID,
			Name:           d.Name,
			Title:          d.Title,
			Mode:           d.Mode,
			Workspace:      optRef[*catalog.Workspace](catalog.KindWorkspace, d.Workspace),
			RootLayer:      optRef[*catalog.Layer](catalog.KindLayer, d.RootLayer),
			RootLayerStyle: optRef[*catalog.Style](catalog.KindStyle, d.RootLayerStyle),
			Layers:         members(d.Publishables),
			Styles:         refs[*catalog.Style](catalog.KindStyle, d.Styles),
		}
		for _, gs := range d.GroupStyles {
			lg.GroupStyles = append(lg.GroupStyles, &catalog.GroupStyle{
				Name:   gs.Name,
				Layers: members(gs.Publishables),
				Styles: refs[*catalog.Style](catalog.KindStyle, gs.Styles),
			})
		}
		return lg, nil
	}
	return nil, fmt.Errorf("unsupported record %T", dto)
}

func ref[T catalog.Info](kind catalog.Kind, d refDTO) *catalog.Ref[T] {
	switch {
	case d.ID != "":
		r := catalog.NewRef[T](kind, d.ID)
		r.Name = d.Name
		return r
	case d.Name != "":
		return catalog.NewNameRef[T](kind, d.Name)
	}
	return nil
}

func optRef[T catalog.Info](kind catalog.Kind, d *refDTO) *catalog.Ref[T] {
	if d == nil {
		return nil
	}
	return ref[T](kind, *d)
}

// refs keeps empty entries as nil so positional lists stay aligned.
func refs[T catalog.Info](kind catalog.Kind, ds []refDTO) []*catalog.Ref[T] {
	if len(ds) == 0 {
		return nil
	}
	out := make([]*catalog.Ref[T], len(ds))
	for i, d := range ds {
		out[i] = ref[T](kind, d)
	}
	return out
}

func members(ds []publishedDTO) []*catalog.Ref[catalog.Published] {
	if len(ds) == 0 {
		return nil
	}
	out := make([]*catalog.Ref[catalog.Published], len(ds))
	for i, d := range ds {
		kind := catalog.KindLayer
		if d.Type == memberLayerGroup {
			kind = catalog.KindLayerGroup
		}
		out[i] = ref[catalog.Published](kind, d.refDTO)
	}
	return out
}

// dtoVisitor maps a catalog object back to its root element name and DTO.
type dtoVisitor struct {
	root string
	dto  any
}

func fromInfo(info catalog.Info) (string, any, error) {
	v := &dtoVisitor{}
	if err := info.Accept(v); err != nil {
		return "", nil, err
	}
	return v.root, v.dto, nil
}

func (v *dtoVisitor) VisitWorkspace(ws *catalog.Workspace) error {
	v.root, v.dto = rootWorkspace, &workspaceDTO{ID: ws.ID, Name: ws.Name, Isolated: ws.Isolated}
	return nil
}

func (v *dtoVisitor) VisitNamespace(ns *catalog.Namespace) error {
	v.root, v.dto = rootNamespace, &namespaceDTO{ID: ns.ID, Prefix: ns.Prefix, URI: ns.URI, Isolated: ns.Isolated}
	return nil
}

func (v *dtoVisitor) VisitStore(s *catalog.Store) error {
	d := &storeDTO{
		ID:          s.ID,
		Name:        s.Name,
		Description: s.Description,
		Enabled:     s.Enabled,
		Workspace:   toRefDTO(s.Workspace),
	}
	for _, k := range sortedKeys(s.ConnectionParameters) {
		d.ConnectionParameters = append(d.ConnectionParameters, entryDTO{Key: k, Value: s.ConnectionParameters[k]})
	}
	v.root, v.dto = string(s.Type), d
	return nil
}

func (v *dtoVisitor) VisitResource(r *catalog.Resource) error {
	v.root, v.dto = string(r.Type), &resourceDTO{
		ID:         r.ID,
		Name:       r.Name,
		NativeName: r.NativeName,
		Title:      r.Title,
		Enabled:    r.Enabled,
		Namespace:  toRefDTO(r.Namespace),
		Store:      toRefDTO(r.Store),
	}
	return nil
}

func (v *dtoVisitor) VisitLayer(l *catalog.Layer) error {
	v.root, v.dto = rootLayer, &layerDTO{
		ID:           l.ID,
		Name:         l.Name,
		Enabled:      l.Enabled,
		Resource:     toRefDTO(l.Resource),
		DefaultStyle: toOptRefDTO(l.DefaultStyle),
		Styles:       toRefDTOs(l.Styles),
	}
	return nil
}

func (v *dtoVisitor) VisitLayerGroup(lg *catalog.LayerGroup) error {
	d := &layerGroupDTO{
		ID:             lg.ID,
		Name:           lg.Name,
		Title:          lg.Title,
		Mode:           lg.Mode,
		Workspace:      toOptRefDTO(lg.Workspace),
		RootLayer:      toOptRefDTO(lg.RootLayer),
		RootLayerStyle: toOptRefDTO(lg.RootLayerStyle),
		Publishables:   toPublishedDTOs(lg.Layers),
		Styles:         toRefDTOs(lg.Styles),
	}
	for _, gs := range lg.GroupStyles {
		d.GroupStyles = append(d.GroupStyles, groupStyleDTO{
			Name:         gs.Name,
			Publishables: toPublishedDTOs(gs.Layers),
			Styles:       toRefDTOs(gs.Styles),
		})
	}
	v.root, v.dto = rootLayerGroup, d
	return nil
}

func (v *dtoVisitor) VisitStyle(s *catalog.Style) error {
	v.root, v.dto = rootStyle, &styleDTO{
		ID:        s.ID,
		Name:      s.Name,
		Workspace: toOptRefDTO(s.Workspace),
		Format:    s.Format,
		Filename:  s.Filename,
	}
	return nil
}

func toRefDTO[T catalog.Info](r *catalog.Ref[T]) refDTO {
	if r == nil {
		return refDTO{}
	}
	if r.ID != "" {
		return refDTO{ID: r.ID}
	}
	return refDTO{Name: r.Name}
}

func toOptRefDTO[T catalog.Info](r *catalog.Ref[T]) *refDTO {
	if r == nil {
		return nil
	}
	d := toRefDTO(r)
	return &d
}

func toRefDTOs[T catalog.Info](rs []*catalog.Ref[T]) []refDTO {
	if len(rs) == 0 {
		return nil
	}
	out := make([]refDTO, len(rs))
	for i, r := range rs {
		out[i] = toRefDTO(r)
	}
	return out
}

func toPublishedDTOs(rs []*catalog.Ref[catalog.Published]) []publishedDTO {
	if len(rs) == 0 {
		return nil
	}
	out := make([]publishedDTO, len(rs))
	for i, r := range rs {
		t := memberLayer
		if r != nil && r.Kind == catalog.KindLayerGroup {
			t = memberLayerGroup
		}
		out[i] = publishedDTO{Type: t, refDTO: toRefDTO(r)}
	}
	return out
}
