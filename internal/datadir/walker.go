// Package datadir enumerates and reads the files of a catalog data directory.
//
// Layout, relative to the directory root (".xml" or ".yaml" depending on the
// record format):
//
//	styles/<style>.xml                               global styles
//	layergroups/<group>.xml                          global layer groups
//	workspaces/default.xml                           default workspace marker
//	workspaces/<ws>/workspace.xml, namespace.xml
//	workspaces/<ws>/styles/<style>.xml
//	workspaces/<ws>/layergroups/<group>.xml
//	workspaces/<ws>/<store>/datastore.xml            or coveragestore, wmsstore, wmtsstore
//	workspaces/<ws>/<store>/<layer>/featuretype.xml  or coverage, wmslayer, wmtslayer
//	workspaces/<ws>/<store>/<layer>/layer.xml
package datadir

import (
	"os"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/geocatalog/internal/record"
	"github.com/geocatalog/pkg/utils"
)

const (
	StylesDir      = "styles"
	LayerGroupsDir = "layergroups"
	WorkspacesDir  = "workspaces"
)

var (
	storeFiles    = []string{"datastore", "coveragestore", "wmsstore", "wmtsstore"}
	resourceFiles = []string{"featuretype", "coverage", "wmslayer", "wmtslayer"}
)

// Walker lists the record files of a data directory. Every level is read
// only when asked for, so producers can start on the first workspace before
// the others are listed.
type Walker struct {
	fs     billy.Filesystem
	format record.Format
	logger utils.Logger
}

// NewWalker returns a walker over fs.
func NewWalker(fs billy.Filesystem, format record.Format, logger utils.Logger) *Walker {
	if format == "" {
		format = record.FormatXML
	}
	return &Walker{fs: fs, format: format, logger: utils.OrNull(logger)}
}

// FS returns the underlying filesystem.
func (w *Walker) FS() billy.Filesystem { return w.fs }

// Format returns the record format.
func (w *Walker) Format() record.Format { return w.format }

// GlobalStyles lists the global style records.
func (w *Walker) GlobalStyles() []string {
	return w.records(StylesDir)
}

// GlobalLayerGroups lists the global layer group records.
func (w *Walker) GlobalLayerGroups() []string {
	return w.records(LayerGroupsDir)
}

// DefaultWorkspaceFile is the path of the default workspace marker.
func (w *Walker) DefaultWorkspaceFile() string {
	return path.Join(WorkspacesDir, "default"+w.format.Ext())
}

// Workspaces lists the workspace directories, sorted by name.
func (w *Walker) Workspaces() []WorkspaceDir {
	var out []WorkspaceDir
	for _, name := range w.subdirs(WorkspacesDir) {
		out = append(out, WorkspaceDir{Name: name, Path: path.Join(WorkspacesDir, name), w: w})
	}
	return out
}

// WorkspaceDir is one workspaces/<ws> directory.
type WorkspaceDir struct {
	Name string
	Path string
	w    *Walker
}

// WorkspaceFile is the path of the workspace record.
func (d WorkspaceDir) WorkspaceFile() string {
	return path.Join(d.Path, "workspace"+d.w.format.Ext())
}

// NamespaceFile is the path of the namespace record.
func (d WorkspaceDir) NamespaceFile() string {
	return path.Join(d.Path, "namespace"+d.w.format.Ext())
}

// Styles lists the workspace style records.
func (d WorkspaceDir) Styles() []string {
	return d.w.records(path.Join(d.Path, StylesDir))
}

// LayerGroups lists the workspace layer group records.
func (d WorkspaceDir) LayerGroups() []string {
	return d.w.records(path.Join(d.Path, LayerGroupsDir))
}

// Stores lists the store directories of the workspace. A subdirectory is a
// store when it holds one of the store record files.
func (d WorkspaceDir) Stores() []StoreDir {
	var out []StoreDir
	for _, name := range d.w.subdirs(d.Path) {
		if name == StylesDir || name == LayerGroupsDir {
			continue
		}
		dir := path.Join(d.Path, name)
		file := d.w.firstExisting(dir, storeFiles)
		if file == "" {
			d.w.logger.Debug("Skipping %s: no store record", dir)
			continue
		}
		out = append(out, StoreDir{Name: name, Path: dir, File: file, w: d.w})
	}
	return out
}

// StoreDir is one workspaces/<ws>/<store> directory.
type StoreDir struct {
	Name string
	Path string
	// File is the store record.
	File string
	w    *Walker
}

// Layers lists the layer directories of the store. A subdirectory is a layer
// when it holds one of the resource record files.
func (d StoreDir) Layers() []LayerDir {
	var out []LayerDir
	for _, name := range d.w.subdirs(d.Path) {
		dir := path.Join(d.Path, name)
		res := d.w.firstExisting(dir, resourceFiles)
		if res == "" {
			d.w.logger.Debug("Skipping %s: no resource record", dir)
			continue
		}
		out = append(out, LayerDir{
			Name:         name,
			Path:         dir,
			ResourceFile: res,
			LayerFile:    path.Join(dir, "layer"+d.w.format.Ext()),
		})
	}
	return out
}

// LayerDir is one workspaces/<ws>/<store>/<layer> directory.
type LayerDir struct {
	Name         string
	Path         string
	ResourceFile string
	LayerFile    string
}

func (w *Walker) readDir(dir string) []os.FileInfo {
	entries, err := w.fs.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Warn("Failed to list %s: %v", dir, err)
		}
		return nil
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries
}

func (w *Walker) subdirs(dir string) []string {
	var out []string
	for _, e := range w.readDir(dir) {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			out = append(out, e.Name())
		}
	}
	return out
}

// records lists the record files directly under dir.
func (w *Walker) records(dir string) []string {
	ext := w.format.Ext()
	var out []string
	for _, e := range w.readDir(dir) {
		if !e.IsDir() && strings.EqualFold(path.Ext(e.Name()), ext) {
			out = append(out, path.Join(dir, e.Name()))
		}
	}
	return out
}

func (w *Walker) firstExisting(dir string, bases []string) string {
	for _, base := range bases {
		p := path.Join(dir, base+w.format.Ext())
		if fi, err := w.fs.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}
