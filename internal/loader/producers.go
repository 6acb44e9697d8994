package loader

import (
	"context"

	"github.com/geocatalog/internal/datadir"
	"github.com/geocatalog/internal/pipeline"
	"github.com/geocatalog/internal/resolver"
	"github.com/geocatalog/pkg/catalog"
	apperrors "github.com/geocatalog/pkg/errors"
	"github.com/geocatalog/pkg/parallel"
)

// item is one unit queued for the consumer.
type item struct {
	path string
	info catalog.Info
	// namespace accompanies a workspace; both are added together.
	namespace *catalog.Namespace
	// checkScope marks style records; scope is the workspace whose
	// directory held the record, nil for the global styles directory.
	checkScope bool
	scope      *catalog.Workspace
}

// decode reads and parses the record at path. A nil object with a nil error
// means the record was skipped and the failure already reported.
func (r *loadRun) decode(ctx context.Context, path string) (catalog.Info, error) {
	data, ok := r.bytes.Load(ctx, path)
	if !ok {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.Interrupted("interrupted while reading "+path, err)
		}
		r.report.fail(path, apperrors.Newf(apperrors.CodeIOError, "cannot read %s", path))
		return nil, nil
	}
	info, err := r.parsers.For(ctx).Parse(data)
	if err != nil {
		r.logger.Error("Failed to parse %s: %v", path, err)
		r.report.fail(path, err)
		return nil, nil
	}
	return info, nil
}

// decodeAs decodes the record at path and checks it holds a T.
func decodeAs[T catalog.Info](ctx context.Context, r *loadRun, path string) (T, bool, error) {
	var zero T
	info, err := r.decode(ctx, path)
	if err != nil || info == nil {
		return zero, false, err
	}
	t, ok := info.(T)
	if !ok {
		err := apperrors.Newf(apperrors.CodeParseError, "%s holds an unexpected %s record", path, info.Kind())
		r.logger.Error("%v", err)
		r.report.fail(path, err)
		return zero, false, nil
	}
	return t, true, nil
}

func (r *loadRun) goStyle(g *parallel.Group, out *pipeline.Pipeline[item], path string, scope *catalog.Workspace) {
	g.Go(func(ctx context.Context) error {
		s, ok, err := decodeAs[*catalog.Style](ctx, r, path)
		if !ok {
			return err
		}
		return out.Put(ctx, item{path: path, info: s, checkScope: true, scope: scope})
	})
}

func (r *loadRun) goLayerGroup(g *parallel.Group, out *pipeline.Pipeline[item], path string) {
	g.Go(func(ctx context.Context) error {
		lg, ok, err := decodeAs[*catalog.LayerGroup](ctx, r, path)
		if !ok {
			return err
		}
		return out.Put(ctx, item{path: path, info: lg})
	})
}

func (r *loadRun) loadGlobalStyles(ctx context.Context) error {
	return r.drain(ctx, func(g *parallel.Group, out *pipeline.Pipeline[item]) {
		for _, path := range r.walker.GlobalStyles() {
			r.goStyle(g, out, path, nil)
		}
	})
}

func (r *loadRun) loadGlobalLayerGroups(ctx context.Context) error {
	return r.drain(ctx, func(g *parallel.Group, out *pipeline.Pipeline[item]) {
		for _, path := range r.walker.GlobalLayerGroups() {
			r.goLayerGroup(g, out, path)
		}
	})
}

func (r *loadRun) loadWorkspaces(ctx context.Context) error {
	return r.drain(ctx, func(g *parallel.Group, out *pipeline.Pipeline[item]) {
		for _, d := range r.walker.Workspaces() {
			d := d
			g.Go(func(ctx context.Context) error {
				return r.loadWorkspace(ctx, g, out, d)
			})
		}
	})
}

// loadWorkspace queues the workspace and its namespace, then the workspace
// styles, then stores and layers, and the workspace layer groups last. A
// step is spawned once the previous one has queued everything, so the
// consumer always sees referenced objects before the objects referring to
// them.
func (r *loadRun) loadWorkspace(ctx context.Context, g *parallel.Group, out *pipeline.Pipeline[item], d datadir.WorkspaceDir) error {
	ws, okWs, err := decodeAs[*catalog.Workspace](ctx, r, d.WorkspaceFile())
	if err != nil {
		return err
	}
	ns, okNs, err := decodeAs[*catalog.Namespace](ctx, r, d.NamespaceFile())
	if err != nil {
		return err
	}
	if !okWs || !okNs {
		r.logger.Error("Ignoring workspace directory %s: it needs both a workspace and a namespace record", d.Path)
		return nil
	}
	if err := out.Put(ctx, item{path: d.WorkspaceFile(), info: ws, namespace: ns}); err != nil {
		return err
	}

	styles := g.Sub()
	for _, path := range d.Styles() {
		r.goStyle(styles, out, path, ws)
	}
	styles.Then(func(err error) {
		if err != nil {
			return
		}
		stores := g.Sub()
		for _, sd := range d.Stores() {
			sd := sd
			stores.Go(func(ctx context.Context) error {
				return r.loadStore(ctx, stores, out, sd)
			})
		}
		stores.Then(func(err error) {
			if err != nil {
				return
			}
			for _, path := range d.LayerGroups() {
				r.goLayerGroup(g, out, path)
			}
		})
		stores.Close()
	})
	styles.Close()
	return nil
}

// loadStore queues the store, then spawns one task per layer directory.
func (r *loadRun) loadStore(ctx context.Context, g *parallel.Group, out *pipeline.Pipeline[item], d datadir.StoreDir) error {
	s, ok, err := decodeAs[*catalog.Store](ctx, r, d.File)
	if !ok {
		return err
	}
	if err := out.Put(ctx, item{path: d.File, info: s}); err != nil {
		return err
	}
	for _, ld := range d.Layers() {
		ld := ld
		g.Go(func(ctx context.Context) error {
			return r.loadLayer(ctx, out, ld)
		})
	}
	return nil
}

// loadLayer queues a resource and its layer. Both records are required.
func (r *loadRun) loadLayer(ctx context.Context, out *pipeline.Pipeline[item], d datadir.LayerDir) error {
	res, okRes, err := decodeAs[*catalog.Resource](ctx, r, d.ResourceFile)
	if err != nil {
		return err
	}
	layer, okLayer, err := decodeAs[*catalog.Layer](ctx, r, d.LayerFile)
	if err != nil {
		return err
	}
	if !okRes || !okLayer {
		r.logger.Error("Ignoring layer directory %s: it needs both a resource and a layer record", d.Path)
		return nil
	}
	if err := out.Put(ctx, item{path: d.ResourceFile, info: res}); err != nil {
		return err
	}
	return out.Put(ctx, item{path: d.LayerFile, info: layer})
}

// ============================================================================
// Consumer
// ============================================================================

// consume resolves and adds one queued item. It runs on the goroutine that
// called Load.
func (r *loadRun) consume(it item) {
	r.report.Decoded++
	r.consumed++
	if it.namespace != nil {
		r.report.Decoded++
		r.consumed++
	}

	if s, ok := it.info.(*catalog.Style); ok && it.checkScope {
		if err := resolver.CheckStyleScope(it.scope, s); err != nil {
			r.drop(it.path, it.info, err)
			return
		}
	}
	if !r.add(it.path, it.info) {
		if it.namespace != nil {
			r.drop(it.path, it.namespace, apperrors.Newf(apperrors.CodeMissingReference,
				"%s was not added. Object ignored.", catalog.Describe(it.info)))
		}
		return
	}
	if it.namespace != nil {
		r.add(it.path, it.namespace)
	}
}

func (r *loadRun) add(path string, info catalog.Info) bool {
	out, err := r.resolver.Resolve(info)
	if err == nil {
		err = r.catalog.Add(info)
	}
	if err != nil {
		r.drop(path, info, err)
		return false
	}
	r.report.Added[info.Kind()]++
	if out.Patched() {
		r.report.Patched = append(r.report.Patched, Patch{Path: path, Object: catalog.Describe(info), Messages: out.Patches})
	}
	return true
}

func (r *loadRun) drop(path string, info catalog.Info, err error) {
	r.logger.Error("Dropping %s loaded from %s: %v", catalog.Describe(info), path, err)
	r.report.Dropped = append(r.report.Dropped, Drop{
		Phase:  r.phase,
		Path:   path,
		Object: catalog.Describe(info),
		Kind:   info.Kind(),
		Err:    err,
	})
}
