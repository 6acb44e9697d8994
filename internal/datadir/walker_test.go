package datadir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geocatalog/internal/record"
	"github.com/geocatalog/internal/testutil"
	"github.com/geocatalog/pkg/catalog"
)

func TestWalker_Layout(t *testing.T) {
	for _, format := range []record.Format{record.FormatXML, record.FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			dd := testutil.NewDataDir(t, format)
			ext := format.Ext()
			dd.Style("", "roads")
			dd.Style("", "lakes")
			dd.LayerGroup("", "basemap", nil, nil)
			dd.Workspace("topp")
			dd.Workspace("sf")
			dd.Style("topp", "states")
			dd.LayerGroup("topp", "overview", nil, nil)
			dd.Store("topp", "pg", catalog.StoreTypeData)
			dd.Store("topp", "dem", catalog.StoreTypeCoverage)
			dd.Layer("topp", "pg", catalog.ResourceTypeFeature, "states", "")
			dd.Layer("topp", "pg", catalog.ResourceTypeFeature, "cities", "")
			dd.Layer("topp", "dem", catalog.ResourceTypeCoverage, "srtm", "")
			dd.PutRaw("workspaces/topp/pg/notes/readme.txt", []byte("x"))
			dd.PutRaw("workspaces/topp/scratch/readme.txt", []byte("x"))
			dd.PutRaw("workspaces/.git/config", []byte("x"))
			dd.PutRaw("styles/roads.sld", []byte("<sld/>"))

			w := NewWalker(dd.FS, format, nil)
			assert.Equal(t, []string{"styles/lakes" + ext, "styles/roads" + ext}, w.GlobalStyles())
			assert.Equal(t, []string{"layergroups/basemap" + ext}, w.GlobalLayerGroups())
			assert.Equal(t, "workspaces/default"+ext, w.DefaultWorkspaceFile())

			wss := w.Workspaces()
			require.Len(t, wss, 2)
			assert.Equal(t, "sf", wss[0].Name)
			topp := wss[1]
			assert.Equal(t, "workspaces/topp/workspace"+ext, topp.WorkspaceFile())
			assert.Equal(t, "workspaces/topp/namespace"+ext, topp.NamespaceFile())
			assert.Equal(t, []string{"workspaces/topp/styles/states" + ext}, topp.Styles())
			assert.Equal(t, []string{"workspaces/topp/layergroups/overview" + ext}, topp.LayerGroups())

			stores := topp.Stores()
			require.Len(t, stores, 2)
			assert.Equal(t, "dem", stores[0].Name)
			assert.Equal(t, "workspaces/topp/dem/coveragestore"+ext, stores[0].File)
			assert.Equal(t, "workspaces/topp/pg/datastore"+ext, stores[1].File)

			layers := stores[1].Layers()
			require.Len(t, layers, 2)
			assert.Equal(t, "cities", layers[0].Name)
			assert.Equal(t, "workspaces/topp/pg/cities/featuretype"+ext, layers[0].ResourceFile)
			assert.Equal(t, "workspaces/topp/pg/cities/layer"+ext, layers[0].LayerFile)

			srtm := stores[0].Layers()
			require.Len(t, srtm, 1)
			assert.Equal(t, "workspaces/topp/dem/srtm/coverage"+ext, srtm[0].ResourceFile)
		})
	}
}

func TestWalker_EmptyDirectory(t *testing.T) {
	dd := testutil.NewDataDir(t, "")
	w := NewWalker(dd.FS, "", nil)

	assert.Equal(t, record.FormatXML, w.Format())
	assert.Empty(t, w.GlobalStyles())
	assert.Empty(t, w.GlobalLayerGroups())
	assert.Empty(t, w.Workspaces())
}
