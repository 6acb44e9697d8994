package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/geocatalog/pkg/catalog"
)

// CatalogObject represents the catalog_objects table: one row per catalog
// object, keyed by kind and id.
type CatalogObject struct {
	ID          string    `gorm:"column:id;primaryKey;type:varchar(128)"`
	Kind        string    `gorm:"column:kind;primaryKey;type:varchar(32)"`
	Name        string    `gorm:"column:name;type:varchar(255);index"`
	WorkspaceID *string   `gorm:"column:workspace_id;type:varchar(128);index"`
	ParentID    *string   `gorm:"column:parent_id;type:varchar(128)"`
	Payload     JSONField `gorm:"column:payload;type:json"`
}

// TableName returns the table name for CatalogObject.
func (CatalogObject) TableName() string {
	return "catalog_objects"
}

// ExportRun represents the catalog_exports table, one row per export.
type ExportRun struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	ExportedAt time.Time `gorm:"column:exported_at"`
	Objects    int       `gorm:"column:objects"`
	Version    string    `gorm:"column:version;type:varchar(32)"`
}

// TableName returns the table name for ExportRun.
func (ExportRun) TableName() string {
	return "catalog_exports"
}

// ============================================================================
// Catalog to rows
// ============================================================================

type refPayload struct {
	ID   string `json:"id,omitempty"`
	Kind string `json:"kind,omitempty"`
	Name string `json:"name,omitempty"`
}

func toRefPayload[T catalog.Info](r *catalog.Ref[T]) *refPayload {
	if r == nil {
		return nil
	}
	p := &refPayload{ID: r.ID, Kind: r.Kind.String(), Name: r.Name}
	if r.Resolved() {
		target := r.Get()
		p.ID = target.GetID()
		p.Name = target.GetName()
	}
	return p
}

func toRefPayloads[T catalog.Info](rs []*catalog.Ref[T]) []*refPayload {
	if len(rs) == 0 {
		return nil
	}
	out := make([]*refPayload, len(rs))
	for i, r := range rs {
		out[i] = toRefPayload(r)
	}
	return out
}

// rowVisitor builds the row of one object. Namespaces are linked to the
// workspace of the same name through the catalog.
type rowVisitor struct {
	catalog *catalog.Catalog
	row     CatalogObject
	payload map[string]any
}

// Rows converts every object of c into a row, in dependency order and by id
// within a kind.
func Rows(c *catalog.Catalog) ([]CatalogObject, error) {
	var rows []CatalogObject
	for _, kind := range catalog.Kinds {
		for _, info := range c.List(kind) {
			v := &rowVisitor{
				catalog: c,
				row:     CatalogObject{ID: info.GetID(), Kind: kind.String(), Name: info.GetName()},
				payload: map[string]any{},
			}
			if err := info.Accept(v); err != nil {
				return nil, err
			}
			data, err := json.Marshal(v.payload)
			if err != nil {
				return nil, fmt.Errorf("failed to encode %s: %w", catalog.Describe(info), err)
			}
			v.row.Payload = data
			rows = append(rows, v.row)
		}
	}
	return rows, nil
}

func idOf[T catalog.Info](r *catalog.Ref[T]) *string {
	if r == nil {
		return nil
	}
	id := r.Key()
	if r.Resolved() {
		id = r.Get().GetID()
	}
	return &id
}

func wsID(ws *catalog.Workspace) *string {
	if ws == nil {
		return nil
	}
	return &ws.ID
}

func (v *rowVisitor) VisitWorkspace(ws *catalog.Workspace) error {
	v.payload["isolated"] = ws.Isolated
	return nil
}

func (v *rowVisitor) VisitNamespace(ns *catalog.Namespace) error {
	v.row.WorkspaceID = wsID(v.catalog.WorkspaceByName(ns.Prefix))
	v.payload["uri"] = ns.URI
	v.payload["isolated"] = ns.Isolated
	return nil
}

func (v *rowVisitor) VisitStore(s *catalog.Store) error {
	v.row.WorkspaceID = idOf(s.Workspace)
	v.row.ParentID = idOf(s.Workspace)
	v.payload["type"] = string(s.Type)
	v.payload["enabled"] = s.Enabled
	v.payload["description"] = s.Description
	// Connection parameters may hold decrypted credentials; only the keys are exported.
	keys := make([]string, 0, len(s.ConnectionParameters))
	for k := range s.ConnectionParameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	v.payload["connectionParameters"] = keys
	return nil
}

func (v *rowVisitor) VisitResource(r *catalog.Resource) error {
	v.row.WorkspaceID = wsID(r.StoreWorkspace())
	v.row.ParentID = idOf(r.Store)
	v.payload["type"] = string(r.Type)
	v.payload["nativeName"] = r.NativeName
	v.payload["title"] = r.Title
	v.payload["enabled"] = r.Enabled
	v.payload["namespace"] = toRefPayload(r.Namespace)
	return nil
}

func (v *rowVisitor) VisitLayer(l *catalog.Layer) error {
	if l.Resource.Resolved() {
		v.row.WorkspaceID = wsID(l.Workspace())
	}
	v.row.ParentID = idOf(l.Resource)
	v.payload["enabled"] = l.Enabled
	v.payload["defaultStyle"] = toRefPayload(l.DefaultStyle)
	v.payload["styles"] = toRefPayloads(l.Styles)
	return nil
}

func (v *rowVisitor) VisitLayerGroup(lg *catalog.LayerGroup) error {
	v.row.WorkspaceID = idOf(lg.Workspace)
	v.row.ParentID = idOf(lg.RootLayer)
	v.payload["title"] = lg.Title
	v.payload["mode"] = lg.Mode
	v.payload["layers"] = toRefPayloads(lg.Layers)
	v.payload["styles"] = toRefPayloads(lg.Styles)
	if lg.RootLayerStyle != nil {
		v.payload["rootLayerStyle"] = toRefPayload(lg.RootLayerStyle)
	}
	if len(lg.GroupStyles) > 0 {
		groups := make([]map[string]any, len(lg.GroupStyles))
		for i, gs := range lg.GroupStyles {
			groups[i] = map[string]any{
				"name":   gs.Name,
				"layers": toRefPayloads(gs.Layers),
				"styles": toRefPayloads(gs.Styles),
			}
		}
		v.payload["groupStyles"] = groups
	}
	return nil
}

func (v *rowVisitor) VisitStyle(s *catalog.Style) error {
	v.row.WorkspaceID = idOf(s.Workspace)
	v.payload["filename"] = s.Filename
	v.payload["format"] = s.Format
	return nil
}

// JSONField is a custom type for handling JSON fields in GORM.
type JSONField []byte

// Value implements driver.Valuer interface.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner interface.
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
		return nil
	case string:
		*j = []byte(v)
		return nil
	default:
		return errors.New("unsupported type for JSONField")
	}
}

// MarshalJSON implements json.Marshaler interface.
func (j JSONField) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler interface.
func (j *JSONField) UnmarshalJSON(data []byte) error {
	if data == nil || string(data) == "null" {
		*j = nil
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}
