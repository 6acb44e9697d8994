package loader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geocatalog/internal/datadir"
	"github.com/geocatalog/internal/mock"
	"github.com/geocatalog/internal/record"
	"github.com/geocatalog/internal/resolver"
	"github.com/geocatalog/internal/secret"
	"github.com/geocatalog/internal/testutil"
	"github.com/geocatalog/pkg/catalog"
	apperrors "github.com/geocatalog/pkg/errors"
	"github.com/geocatalog/pkg/utils"
)

// run loads dd into a fresh catalog and returns the catalog, the report,
// the log output and the load error.
func run(t *testing.T, dd *testutil.DataDir, opts ...Option) (*catalog.Catalog, *Report, string, error) {
	t.Helper()
	return runCtx(t, context.Background(), catalog.New(), dd, opts...)
}

func runCtx(t *testing.T, ctx context.Context, c *catalog.Catalog, dd *testutil.DataDir, opts ...Option) (*catalog.Catalog, *Report, string, error) {
	t.Helper()
	var logs bytes.Buffer
	logger := utils.NewDefaultLogger(utils.LevelDebug, &logs)
	w := datadir.NewWalker(dd.FS, dd.Format, logger)
	opts = append([]Option{WithLogger(logger), WithExecutorFactory(NewExecutorFactory("4", logger))}, opts...)
	report, err := New(c, w, opts...).Load(ctx)
	return c, report, logs.String(), err
}

func requireConsistent(t *testing.T, c *catalog.Catalog, r *Report) {
	t.Helper()
	require.Equal(t, r.Decoded+r.Seeded-len(r.Dropped), c.Size(), "catalog size does not match the report")
	require.Equal(t, c.Size(), r.TotalAdded()-evictions(r))
	testutil.AssertNoDangling(t, c)
}

func evictions(r *Report) int {
	n := 0
	for _, d := range r.Dropped {
		if d.Phase == PhaseFinalResolve {
			n++
		}
	}
	return n
}

func layer(t *testing.T, c *catalog.Catalog, ws, name string) *catalog.Layer {
	t.Helper()
	l, ok := catalog.Lookup[*catalog.Layer](c, catalog.KindLayer, testutil.LayerID(ws, name))
	require.True(t, ok, "layer %s:%s not loaded", ws, name)
	return l
}

type recorderFunc func(*Report, error)

func (f recorderFunc) Record(r *Report, err error) { f(r, err) }

func TestLoad_DataDirectory(t *testing.T) {
	for _, format := range []record.Format{record.FormatXML, record.FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			dd := testutil.NewDataDir(t, format)
			dd.Style("", "population")
			dd.Workspace("topp")
			dd.Style("topp", "topp_local")
			dd.Store("topp", "states_ds", catalog.StoreTypeData)
			dd.Layer("topp", "states_ds", catalog.ResourceTypeFeature, "states", testutil.StyleID("", "population"))
			dd.Layer("topp", "states_ds", catalog.ResourceTypeFeature, "roads", "")
			dd.Workspace("nurc")
			dd.Store("nurc", "dem_cs", catalog.StoreTypeCoverage)
			dd.Layer("nurc", "dem_cs", catalog.ResourceTypeCoverage, "dem", "")

			c, report, logs, err := run(t, dd)
			require.NoError(t, err)

			testutil.AssertCounts(t, c, map[catalog.Kind]int{
				catalog.KindWorkspace: 2,
				catalog.KindNamespace: 2,
				catalog.KindStore:     2,
				catalog.KindResource:  3,
				catalog.KindLayer:     3,
				catalog.KindStyle:     2 + len(resolver.DefaultStyles),
			})

			assert.Equal(t, 14, report.Decoded)
			assert.Equal(t, len(resolver.DefaultStyles), report.Seeded)
			assert.Empty(t, report.Dropped)
			assert.Empty(t, report.Failures())
			requireConsistent(t, c, report)

			testutil.AssertDefaultStyle(t, layer(t, c, "topp", "states"), "population")
			testutil.AssertDefaultStyle(t, layer(t, c, "topp", "roads"), resolver.StyleGeneric)
			testutil.AssertDefaultStyle(t, layer(t, c, "nurc", "dem"), resolver.StyleRaster)
			assert.Len(t, report.Patched, 2)
			testutil.AssertLogged(t, logs, utils.LevelError, "Layer topp:roads has no default style, assigned 'generic'")

			require.Len(t, report.Phases, len(Phases))
			for i, p := range Phases {
				assert.Equal(t, p, report.Phases[i].Phase)
			}
			timing, ok := report.Timing(PhaseWorkspaces)
			require.True(t, ok)
			assert.Equal(t, 13, timing.Records)

			require.NotNil(t, c.DefaultWorkspace())
			assert.True(t, dd.Exists("workspaces/default"+format.Ext()))
			for _, ds := range resolver.DefaultStyles {
				assert.True(t, dd.Exists(path.Join("styles", ds.Filename)), ds.Filename)
			}
			assert.True(t, c.ExtendedValidation())
			assert.Positive(t, report.Pool.CompletedTasks)
		})
	}
}

func TestLoad_EmptyDirectory(t *testing.T) {
	c, report, _, err := run(t, testutil.NewDataDir(t, ""))
	require.NoError(t, err)

	assert.Len(t, report.Phases, len(Phases))
	assert.Zero(t, report.Decoded)
	assert.Equal(t, len(resolver.DefaultStyles), report.Seeded)
	assert.Equal(t, len(resolver.DefaultStyles), c.Size())
	assert.Nil(t, c.DefaultWorkspace())
	requireConsistent(t, c, report)
}

func TestLoad_DefaultStylesAreNotDuplicated(t *testing.T) {
	dd := testutil.NewDataDir(t, "")
	dd.Style("", resolver.StyleGeneric)

	c, report, logs, err := run(t, dd)
	require.NoError(t, err)

	testutil.AssertNotLogged(t, logs, utils.LevelError)
	assert.Equal(t, len(resolver.DefaultStyles)-1, report.Seeded)
	assert.Equal(t, testutil.StyleID("", resolver.StyleGeneric), c.StyleByName(resolver.StyleGeneric).ID)
	assert.False(t, dd.Exists("styles/default_generic.sld"))
}

func TestLoad_StyleFallbacks(t *testing.T) {
	dd := testutil.NewDataDir(t, "")
	dd.Workspace("a")
	dd.Workspace("b")
	dd.Style("a", "local")
	dd.Store("b", "ds", catalog.StoreTypeData)
	dd.Store("b", "cs", catalog.StoreTypeCoverage)
	dd.Layer("b", "ds", catalog.ResourceTypeFeature, "missing", testutil.StyleID("", "nope"))
	dd.Layer("b", "ds", catalog.ResourceTypeFeature, "foreign", testutil.StyleID("a", "local"))
	dd.Layer("b", "cs", catalog.ResourceTypeCoverage, "grid", testutil.StyleID("", "nope"))

	c, report, logs, err := run(t, dd)
	require.NoError(t, err)

	testutil.AssertDefaultStyle(t, layer(t, c, "b", "missing"), resolver.StyleGeneric)
	testutil.AssertDefaultStyle(t, layer(t, c, "b", "foreign"), resolver.StyleGeneric)
	testutil.AssertDefaultStyle(t, layer(t, c, "b", "grid"), resolver.StyleRaster)
	assert.Len(t, report.Patched, 3)
	assert.Contains(t, logs, "[ERROR] Layer b:missing has a dangling default style style-global-nope, assigned 'generic'")
	requireConsistent(t, c, report)
}

func TestLoad_StyleScope(t *testing.T) {
	dd := testutil.NewDataDir(t, "")
	dd.Workspace("ws1")
	dd.Workspace("ws2")
	dd.StyleIn("ws2", "ws1", "intruder")
	dd.StyleIn("", "ws1", "misplaced")
	dd.Style("ws2", "own")

	c, report, logs, err := run(t, dd)
	require.NoError(t, err)

	require.Len(t, report.Dropped, 2)
	for _, d := range report.Dropped {
		assert.Equal(t, catalog.KindStyle, d.Kind)
		assert.True(t, apperrors.IsScopeViolation(d.Err), d.Err)
	}
	phases := []Phase{report.Dropped[0].Phase, report.Dropped[1].Phase}
	assert.ElementsMatch(t, []Phase{PhaseGlobalStyles, PhaseWorkspaces}, phases)

	assert.NotNil(t, c.StyleByScopedName("ws-ws2", "own"))
	assert.Nil(t, c.StyleByScopedName("ws-ws1", "intruder"))
	assert.Nil(t, c.StyleByScopedName("ws-ws1", "misplaced"))
	assert.Contains(t, logs, "should have workspace ws2 but has workspace ws-ws1")
	requireConsistent(t, c, report)
}

func TestLoad_LayerGroups(t *testing.T) {
	setup := func(t *testing.T) *testutil.DataDir {
		dd := testutil.NewDataDir(t, "")
		dd.Style("", "s1")
		dd.Workspace("topp")
		dd.Workspace("other")
		dd.Store("topp", "ds", catalog.StoreTypeData)
		dd.Layer("topp", "ds", catalog.ResourceTypeFeature, "l1", "")
		dd.Layer("topp", "ds", catalog.ResourceTypeFeature, "l2", "")
		return dd
	}

	t.Run("PositionalStyles", func(t *testing.T) {
		dd := setup(t)
		dd.LayerGroup("", "lg",
			[]*catalog.Ref[catalog.Published]{testutil.Member("topp", "l1"), testutil.Member("topp", "l2")},
			[]*catalog.Ref[*catalog.Style]{catalog.NewRef[*catalog.Style](catalog.KindStyle, testutil.StyleID("", "s1")), nil})

		c, report, _, err := run(t, dd)
		require.NoError(t, err)

		lg := c.LayerGroupByName("", "lg")
		require.NotNil(t, lg)
		require.Len(t, lg.Layers, 2)
		assert.Equal(t, testutil.LayerID("topp", "l1"), lg.Layers[0].Get().GetID())
		assert.Equal(t, testutil.LayerID("topp", "l2"), lg.Layers[1].Get().GetID())
		require.Len(t, lg.Styles, 2)
		assert.Equal(t, "s1", lg.Styles[0].Get().Name)
		assert.Nil(t, lg.Styles[1])
		requireConsistent(t, c, report)
	})

	t.Run("WorkspaceGroup", func(t *testing.T) {
		dd := setup(t)
		dd.LayerGroup("topp", "local", []*catalog.Ref[catalog.Published]{testutil.Member("topp", "l1")}, nil)

		c, report, _, err := run(t, dd)
		require.NoError(t, err)

		lg := c.LayerGroupByName("ws-topp", "local")
		require.NotNil(t, lg)
		assert.True(t, lg.Layers[0].Resolved())
		requireConsistent(t, c, report)
	})

	t.Run("NestedAndEvicted", func(t *testing.T) {
		dd := setup(t)
		dd.LayerGroup("", "outer", []*catalog.Ref[catalog.Published]{testutil.GroupMember("", "inner")}, nil)
		dd.LayerGroup("", "inner", []*catalog.Ref[catalog.Published]{testutil.Member("topp", "l1")}, nil)
		dd.LayerGroup("", "broken", []*catalog.Ref[catalog.Published]{testutil.Member("topp", "nope")}, nil)
		dd.LayerGroup("", "parent", []*catalog.Ref[catalog.Published]{testutil.GroupMember("", "broken")}, nil)
		dd.LayerGroup("other", "mixed", []*catalog.Ref[catalog.Published]{testutil.Member("topp", "l2")}, nil)

		c, report, logs, err := run(t, dd)
		require.NoError(t, err)

		outer := c.LayerGroupByName("", "outer")
		require.NotNil(t, outer)
		assert.Same(t, c.LayerGroupByName("", "inner"), outer.Layers[0].Get())

		assert.Nil(t, c.LayerGroupByName("", "broken"))
		assert.Nil(t, c.LayerGroupByName("", "parent"))
		assert.Nil(t, c.LayerGroupByName("ws-other", "mixed"))

		var evicted []string
		for _, d := range report.Dropped {
			assert.Equal(t, PhaseFinalResolve, d.Phase)
			assert.Equal(t, catalog.KindLayerGroup, d.Kind)
			evicted = append(evicted, d.Object)
		}
		assert.ElementsMatch(t, []string{
			"LayerGroupInfo[broken|lg-global-broken]",
			"LayerGroupInfo[parent|lg-global-parent]",
			"LayerGroupInfo[mixed|lg-other-mixed]",
		}, evicted)
		assert.Contains(t, logs, "Removed LayerGroupInfo[broken|lg-global-broken] from the catalog")
		requireConsistent(t, c, report)
	})
}

func TestLoad_DefaultWorkspaceMarker(t *testing.T) {
	t.Run("WrittenThenRead", func(t *testing.T) {
		dd := testutil.NewDataDir(t, "")
		dd.Workspace("only")

		_, _, logs, err := run(t, dd)
		require.NoError(t, err)
		require.True(t, dd.Exists("workspaces/default.xml"))
		assert.Contains(t, logs, "Persisted only as the default workspace")

		dd.Workspace("later")
		c, _, _, err := run(t, dd)
		require.NoError(t, err)
		assert.Equal(t, "only", c.DefaultWorkspace().Name)
		assert.Equal(t, "only", c.DefaultNamespace().Prefix)
	})

	t.Run("SelectsMarkedWorkspace", func(t *testing.T) {
		dd := testutil.NewDataDir(t, record.FormatYAML)
		for _, ws := range []string{"alpha", "beta", "sf"} {
			dd.Workspace(ws)
		}
		dd.DefaultWorkspace("sf")

		c, _, _, err := run(t, dd)
		require.NoError(t, err)
		assert.Equal(t, "sf", c.DefaultWorkspace().Name)
		assert.Equal(t, "sf", c.DefaultNamespace().Prefix)
	})

	t.Run("UnknownWorkspaceIsReplaced", func(t *testing.T) {
		dd := testutil.NewDataDir(t, "")
		dd.Workspace("alpha")
		dd.DefaultWorkspace("ghost")

		c, _, logs, err := run(t, dd)
		require.NoError(t, err)
		assert.Equal(t, "alpha", c.DefaultWorkspace().Name)
		assert.Contains(t, logs, "[WARN] The default workspace marker points to WorkspaceInfo[ghost|ws-ghost]")

		c2, _, _, err := run(t, dd)
		require.NoError(t, err)
		assert.Equal(t, "alpha", c2.DefaultWorkspace().Name)
	})
}

func TestLoad_Failures(t *testing.T) {
	dd := testutil.NewDataDir(t, "")
	dd.PutRaw("styles/bad.xml", []byte("<style><name>bad"))
	dd.PutRaw("styles/odd.xml", []byte("<unknownThing/>"))
	dd.Workspace("topp")
	dd.Store("topp", "ds", catalog.StoreTypeData)
	dd.Layer("topp", "ds", catalog.ResourceTypeFeature, "ok", "")
	dd.Layer("topp", "ds", catalog.ResourceTypeFeature, "torn", "")
	dd.PutRaw("workspaces/topp/ds/torn/layer.xml", []byte("<layer>"))
	dd.Put("workspaces/topp/ds/odd/featuretype", &catalog.Workspace{ID: "ws-odd", Name: "odd"})
	dd.Put("workspaces/topp/ds/odd/layer", &catalog.Workspace{ID: "ws-odd2", Name: "odd2"})
	dd.Workspace("halfway")
	require.NoError(t, dd.FS.Remove("workspaces/halfway/namespace.xml"))

	c, report, logs, err := run(t, dd)
	require.NoError(t, err)

	var paths []string
	for _, f := range report.Failures() {
		paths = append(paths, f.Path)
	}
	assert.ElementsMatch(t, []string{
		"styles/bad.xml",
		"styles/odd.xml",
		"workspaces/topp/ds/torn/layer.xml",
		"workspaces/topp/ds/odd/featuretype.xml",
		"workspaces/topp/ds/odd/layer.xml",
		"workspaces/halfway/namespace.xml",
	}, paths)

	layer(t, c, "topp", "ok")
	assert.Equal(t, 1, c.Count(catalog.KindLayer))
	assert.Equal(t, 1, c.Count(catalog.KindResource))
	assert.Nil(t, c.WorkspaceByName("halfway"))
	assert.Contains(t, logs, "Failed to parse styles/bad.xml")
	assert.Contains(t, logs, "Ignoring workspace directory workspaces/halfway")
	requireConsistent(t, c, report)
}

func TestLoad_EncryptedConnectionParameters(t *testing.T) {
	box, err := secret.NewBox("s3cret")
	require.NoError(t, err)
	enc, err := box.Encrypt("hunter2")
	require.NoError(t, err)

	dd := testutil.NewDataDir(t, "")
	dd.Workspace("topp")
	s := dd.Store("topp", "secure", catalog.StoreTypeData)
	s.ConnectionParameters["passwd"] = enc
	dd.Put("workspaces/topp/secure/datastore", s)

	t.Run("Decrypted", func(t *testing.T) {
		c, report, _, err := run(t, dd, WithResolverOptions(resolver.WithDecrypter(box)))
		require.NoError(t, err)

		got := c.StoreByName("ws-topp", "secure")
		require.NotNil(t, got)
		assert.True(t, got.Enabled)
		assert.Equal(t, "hunter2", got.ConnectionParameters["passwd"])
		assert.Empty(t, report.Patched)
	})

	t.Run("NoKey", func(t *testing.T) {
		c, report, logs, err := run(t, dd)
		require.NoError(t, err)

		got := c.StoreByName("ws-topp", "secure")
		require.NotNil(t, got)
		assert.False(t, got.Enabled)
		assert.Equal(t, enc, got.ConnectionParameters["passwd"])
		require.Len(t, report.Patched, 1)
		assert.Contains(t, logs, "store disabled")
	})
}

func TestLoad_ResourceStore(t *testing.T) {
	t.Run("CopiesBundledStyles", func(t *testing.T) {
		store := &mock.MockStorage{}
		store.ExpectAnyExists(false, nil)
		store.ExpectAnyUpload(nil)

		c, _, _, err := run(t, testutil.NewDataDir(t, ""), WithResourceStore(store))
		require.NoError(t, err)

		assert.Equal(t, len(resolver.DefaultStyles), c.Count(catalog.KindStyle))
		store.AssertNumberOfCalls(t, "Upload", len(resolver.DefaultStyles))
		content, ok := store.UploadedContent("styles/default_raster.sld")
		require.True(t, ok)
		assert.Contains(t, content, "StyledLayerDescriptor")
	})

	t.Run("SkipsExisting", func(t *testing.T) {
		store := &mock.MockStorage{}
		store.ExpectAnyExists(true, nil)

		_, _, _, err := run(t, testutil.NewDataDir(t, ""), WithResourceStore(store))
		require.NoError(t, err)
		store.AssertNumberOfCalls(t, "Upload", 0)
	})

	t.Run("UploadErrorsAreLogged", func(t *testing.T) {
		store := &mock.MockStorage{}
		store.ExpectAnyExists(false, nil)
		store.ExpectAnyUpload(errors.New("disk full"))

		c, report, logs, err := run(t, testutil.NewDataDir(t, ""), WithResourceStore(store))
		require.NoError(t, err)

		assert.Equal(t, len(resolver.DefaultStyles), report.Seeded)
		assert.Equal(t, len(resolver.DefaultStyles), c.Count(catalog.KindStyle))
		assert.Contains(t, logs, "Failed to copy default style default_point.sld: disk full")
	})

	t.Run("LookupErrorsSkipTheCopy", func(t *testing.T) {
		store := &mock.MockStorage{}
		store.ExpectAnyExists(false, errors.New("timeout"))

		_, _, logs, err := run(t, testutil.NewDataDir(t, ""), WithResourceStore(store))
		require.NoError(t, err)
		store.AssertNumberOfCalls(t, "Upload", 0)
		assert.Contains(t, logs, "Failed to look up styles/default_line.sld in the resource store: timeout")
	})
}

func TestLoad_SingleWriter(t *testing.T) {
	dd := testutil.NewDataDir(t, "")
	dd.Style("", "shared")
	for w := 0; w < 10; w++ {
		ws := fmt.Sprintf("ws%02d", w)
		dd.Workspace(ws)
		dd.Style(ws, "local")
		dd.Store(ws, "ds", catalog.StoreTypeData)
		for l := 0; l < 20; l++ {
			dd.Layer(ws, "ds", catalog.ResourceTypeFeature, fmt.Sprintf("l%02d", l),
				testutil.StyleID(ws, "local"), testutil.StyleID("", "shared"))
		}
		dd.LayerGroup(ws, "all", []*catalog.Ref[catalog.Published]{testutil.Member(ws, "l00")}, nil)
	}

	c := catalog.New()
	var inFlight, maxInFlight, adds atomic.Int32
	c.SetMutationHook(func(op string, info catalog.Info, enter bool) {
		if !enter {
			inFlight.Add(-1)
			return
		}
		if op == "add" {
			adds.Add(1)
		}
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
	})

	_, report, _, err := runCtx(t, context.Background(), c, dd, WithQueueCapacity(4))
	require.NoError(t, err)

	assert.Equal(t, int32(1), maxInFlight.Load())
	assert.Equal(t, int32(c.Size()), adds.Load())
	assert.Equal(t, 200, c.Count(catalog.KindLayer))
	assert.Equal(t, 10, c.Count(catalog.KindLayerGroup))
	for _, l := range c.Layers() {
		assert.Equal(t, "local", l.DefaultStyle.Get().Name, l.ID)
		assert.Equal(t, l.Workspace().ID, l.DefaultStyle.Get().Workspace.Get().ID)
	}
	assert.Empty(t, report.Patched)
	requireConsistent(t, c, report)
}

func TestLoad_Interrupted(t *testing.T) {
	t.Run("CancelledBeforeStart", func(t *testing.T) {
		dd := testutil.NewDataDir(t, "")
		dd.Workspace("topp")

		var recorded error
		calls := 0
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		c, _, _, err := runCtx(t, ctx, catalog.New(), dd, WithRecorder(recorderFunc(func(_ *Report, err error) {
			calls++
			recorded = err
		})))
		require.Error(t, err)
		assert.True(t, apperrors.IsInterrupted(err), err)
		assert.True(t, c.ExtendedValidation())
		assert.Equal(t, 1, calls)
		assert.Equal(t, err, recorded)
	})

	t.Run("CancelledDuringWorkspaces", func(t *testing.T) {
		dd := testutil.NewDataDir(t, "")
		for w := 0; w < 20; w++ {
			ws := fmt.Sprintf("ws%02d", w)
			dd.Workspace(ws)
			dd.Store(ws, "ds", catalog.StoreTypeData)
			for l := 0; l < 20; l++ {
				dd.Layer(ws, "ds", catalog.ResourceTypeFeature, fmt.Sprintf("l%02d", l), "")
			}
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		c := catalog.New()
		var layers atomic.Int32
		c.SetMutationHook(func(op string, info catalog.Info, enter bool) {
			if enter && info.Kind() == catalog.KindLayer && layers.Add(1) == 10 {
				cancel()
			}
		})

		_, report, _, err := runCtx(t, ctx, c, dd, WithQueueCapacity(2))
		require.Error(t, err)
		assert.True(t, apperrors.IsInterrupted(err), err)
		assert.Less(t, c.Count(catalog.KindLayer), 400)
		assert.True(t, c.ExtendedValidation())
		assert.NotEmpty(t, report.Phases)
	})
}

func TestLoad_Recorder(t *testing.T) {
	var got *Report
	_, report, _, err := run(t, testutil.NewDataDir(t, ""), WithRecorder(recorderFunc(func(r *Report, err error) {
		assert.NoError(t, err)
		got = r
	})))
	require.NoError(t, err)
	assert.Same(t, report, got)
	assert.Positive(t, got.Elapsed)
	assert.Equal(t, 4, got.Parallelism)
}

func TestLoad_PhaseTimings(t *testing.T) {
	clock := utils.NewSteppingClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), time.Millisecond)
	_, report, logs, err := run(t, testutil.NewDataDir(t, ""), WithClock(clock))
	require.NoError(t, err)

	require.Len(t, report.Phases, len(Phases))
	for _, p := range report.Phases {
		assert.Equal(t, time.Millisecond, p.Duration, p.Phase.String())
	}
	assert.GreaterOrEqual(t, report.Elapsed, time.Duration(len(Phases))*time.Millisecond)
	assert.Contains(t, logs, "Phase 6 - final_resolve: 1ms")
}

func TestLoad_LargeDataDirectory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large data directory in short mode")
	}

	const workspaces, perWorkspace = 50, 200
	dd := testutil.NewDataDir(t, "")
	broken := 0
	for w := 0; w < workspaces; w++ {
		ws := fmt.Sprintf("ws%02d", w)
		dd.Workspace(ws)
		dd.Store(ws, "ds", catalog.StoreTypeData)
		for l := 0; l < perWorkspace; l++ {
			name := fmt.Sprintf("layer%03d", l)
			dd.Layer(ws, "ds", catalog.ResourceTypeFeature, name, "")
			if (w*perWorkspace+l)%97 == 0 {
				dd.PutRaw(path.Join("workspaces", ws, "ds", name, "layer.xml"), []byte("<layer><name>"))
				broken++
			}
		}
	}

	c, report, _, err := run(t, dd, WithExecutorFactory(NewExecutorFactory("8", nil)))
	require.NoError(t, err)

	total := workspaces * perWorkspace
	assert.Equal(t, 8, report.Parallelism)
	assert.Equal(t, total-broken, c.Count(catalog.KindLayer))
	assert.Equal(t, total-broken, c.Count(catalog.KindResource))
	assert.Len(t, report.Failures(), broken)
	assert.Len(t, report.Patched, total-broken)
	assert.Empty(t, report.Dropped)
	requireConsistent(t, c, report)
}
