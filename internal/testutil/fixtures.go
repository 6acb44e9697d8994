// Package testutil provides utilities for testing.
package testutil

import (
	"fmt"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/geocatalog/internal/record"
	"github.com/geocatalog/pkg/catalog"
)

// TempDir creates a temporary directory for testing and returns its path.
// The directory is automatically cleaned up when the test completes.
func TempDir(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "geocatalog-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() {
		os.RemoveAll(dir)
	})
	return dir
}

// DataDir builds a data directory in memory, one record at a time. Record
// identifiers are derived from names so tests can refer to them directly:
// "ws-<ws>", "ns-<ws>", "store-<ws>-<store>", "res-<ws>-<layer>",
// "layer-<ws>-<layer>", "style-<scope>-<style>", "lg-<scope>-<group>", with
// scope "global" outside workspaces.
type DataDir struct {
	t      *testing.T
	FS     billy.Filesystem
	Format record.Format
	parser *record.Parser
}

// NewDataDir returns an empty in-memory data directory.
func NewDataDir(t *testing.T, format record.Format) *DataDir {
	t.Helper()
	if format == "" {
		format = record.FormatXML
	}
	return &DataDir{t: t, FS: memfs.New(), Format: format, parser: record.NewParser(format)}
}

// NewDataDirOnDisk returns an empty data directory rooted at a fresh
// temporary directory, for code that opens the directory by path.
func NewDataDirOnDisk(t *testing.T, format record.Format) (*DataDir, string) {
	t.Helper()
	dir := TempDir(t)
	d := NewDataDir(t, format)
	d.FS = osfs.New(dir)
	return d, dir
}

// Put writes info at name, adding the format extension.
func (d *DataDir) Put(name string, info catalog.Info) {
	d.t.Helper()
	if err := d.parser.Persist(d.FS, info, name+d.Format.Ext()); err != nil {
		d.t.Fatalf("failed to write %s: %v", name, err)
	}
}

// PutRaw writes data as is at name.
func (d *DataDir) PutRaw(name string, data []byte) {
	d.t.Helper()
	if err := d.FS.MkdirAll(path.Dir(name), 0o755); err != nil {
		d.t.Fatalf("failed to create %s: %v", path.Dir(name), err)
	}
	if err := util.WriteFile(d.FS, name, data, 0o644); err != nil {
		d.t.Fatalf("failed to write %s: %v", name, err)
	}
}

// Exists reports whether name exists.
func (d *DataDir) Exists(name string) bool {
	_, err := d.FS.Stat(name)
	return err == nil
}

// Workspace writes the workspace and namespace records of ws.
func (d *DataDir) Workspace(ws string) *catalog.Workspace {
	d.t.Helper()
	w := &catalog.Workspace{ID: "ws-" + ws, Name: ws}
	d.Put(path.Join("workspaces", ws, "workspace"), w)
	d.Put(path.Join("workspaces", ws, "namespace"), &catalog.Namespace{
		ID:     "ns-" + ws,
		Prefix: ws,
		URI:    "http://example.com/" + ws,
	})
	return w
}

// DefaultWorkspace writes the default workspace marker pointing at ws.
func (d *DataDir) DefaultWorkspace(ws string) {
	d.t.Helper()
	d.Put(path.Join("workspaces", "default"), &catalog.Workspace{ID: "ws-" + ws, Name: ws})
}

// Store writes a store record of the given type in ws.
func (d *DataDir) Store(ws, name string, typ catalog.StoreType) *catalog.Store {
	d.t.Helper()
	s := &catalog.Store{
		ID:                   fmt.Sprintf("store-%s-%s", ws, name),
		Name:                 name,
		Type:                 typ,
		Enabled:              true,
		Workspace:            catalog.NewRef[*catalog.Workspace](catalog.KindWorkspace, "ws-"+ws),
		ConnectionParameters: map[string]string{"dbtype": "memory"},
	}
	d.Put(path.Join("workspaces", ws, name, storeFile(typ)), s)
	return s
}

// Layer writes the resource and layer records of a layer in store. An empty
// style leaves the layer without a default style; style ids are used as is.
func (d *DataDir) Layer(ws, store string, typ catalog.ResourceType, name, defaultStyleID string, styleIDs ...string) *catalog.Layer {
	d.t.Helper()
	res := &catalog.Resource{
		ID:         fmt.Sprintf("res-%s-%s", ws, name),
		Name:       name,
		NativeName: name,
		Type:       typ,
		Enabled:    true,
		Namespace:  catalog.NewRef[*catalog.Namespace](catalog.KindNamespace, "ns-"+ws),
		Store:      catalog.NewRef[*catalog.Store](catalog.KindStore, fmt.Sprintf("store-%s-%s", ws, store)),
	}
	l := &catalog.Layer{
		ID:       fmt.Sprintf("layer-%s-%s", ws, name),
		Name:     name,
		Enabled:  true,
		Resource: catalog.NewRef[*catalog.Resource](catalog.KindResource, res.ID),
	}
	if defaultStyleID != "" {
		l.DefaultStyle = catalog.NewRef[*catalog.Style](catalog.KindStyle, defaultStyleID)
	}
	for _, id := range styleIDs {
		l.Styles = append(l.Styles, catalog.NewRef[*catalog.Style](catalog.KindStyle, id))
	}
	dir := path.Join("workspaces", ws, store, name)
	d.Put(path.Join(dir, strings.ToLower(string(typ))), res)
	d.Put(path.Join(dir, "layer"), l)
	return l
}

// Style writes a style record. An empty ws writes a global style.
func (d *DataDir) Style(ws, name string) *catalog.Style {
	d.t.Helper()
	s := newStyle(ws, name)
	d.Put(path.Join(scopeDir(ws), "styles", name), s)
	return s
}

// StyleIn writes a style declaring workspace ws into the styles directory of
// dirWs, which may differ from ws.
func (d *DataDir) StyleIn(dirWs, ws, name string) *catalog.Style {
	d.t.Helper()
	s := newStyle(ws, name)
	d.Put(path.Join(scopeDir(dirWs), "styles", name), s)
	return s
}

// LayerGroup writes a layer group record. An empty ws writes a global group.
func (d *DataDir) LayerGroup(ws, name string, members []*catalog.Ref[catalog.Published], styles []*catalog.Ref[*catalog.Style]) *catalog.LayerGroup {
	d.t.Helper()
	lg := &catalog.LayerGroup{
		ID:     fmt.Sprintf("lg-%s-%s", scopeName(ws), name),
		Name:   name,
		Mode:   "SINGLE",
		Layers: members,
		Styles: styles,
	}
	if ws != "" {
		lg.Workspace = catalog.NewRef[*catalog.Workspace](catalog.KindWorkspace, "ws-"+ws)
	}
	d.Put(path.Join(scopeDir(ws), "layergroups", name), lg)
	return lg
}

// StyleID returns the identifier Style assigns.
func StyleID(ws, name string) string {
	return fmt.Sprintf("style-%s-%s", scopeName(ws), name)
}

// LayerID returns the identifier Layer assigns.
func LayerID(ws, name string) string {
	return fmt.Sprintf("layer-%s-%s", ws, name)
}

// Member returns a layer group member reference to a layer.
func Member(ws, layer string) *catalog.Ref[catalog.Published] {
	return catalog.NewRef[catalog.Published](catalog.KindLayer, LayerID(ws, layer))
}

// GroupMember returns a layer group member reference to a nested group.
func GroupMember(ws, group string) *catalog.Ref[catalog.Published] {
	return catalog.NewRef[catalog.Published](catalog.KindLayerGroup, fmt.Sprintf("lg-%s-%s", scopeName(ws), group))
}

func newStyle(ws, name string) *catalog.Style {
	s := &catalog.Style{ID: StyleID(ws, name), Name: name, Filename: name + ".sld", Format: "sld"}
	if ws != "" {
		s.Workspace = catalog.NewRef[*catalog.Workspace](catalog.KindWorkspace, "ws-"+ws)
	}
	return s
}

func scopeName(ws string) string {
	if ws == "" {
		return "global"
	}
	return ws
}

func scopeDir(ws string) string {
	if ws == "" {
		return ""
	}
	return path.Join("workspaces", ws)
}

func storeFile(typ catalog.StoreType) string {
	switch typ {
	case catalog.StoreTypeCoverage:
		return "coveragestore"
	case catalog.StoreTypeWMS:
		return "wmsstore"
	case catalog.StoreTypeWMTS:
		return "wmtsstore"
	default:
		return "datastore"
	}
}
