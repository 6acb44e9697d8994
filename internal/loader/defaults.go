package loader

import (
	"bytes"
	"context"
	"embed"
	"path"

	"github.com/google/uuid"

	"github.com/geocatalog/internal/datadir"
	"github.com/geocatalog/internal/record"
	"github.com/geocatalog/internal/resolver"
	"github.com/geocatalog/pkg/catalog"
	apperrors "github.com/geocatalog/pkg/errors"
)

//go:embed styles/*.sld
var bundledStyles embed.FS

// initializeDefaultStyles adds the well-known styles the data directory does
// not define, copying their bundled definitions into the resource store.
func (r *loadRun) initializeDefaultStyles(ctx context.Context) error {
	for _, ds := range resolver.DefaultStyles {
		if r.catalog.StyleByName(ds.Name) != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return apperrors.Interrupted("interrupted while adding default styles", err)
		}
		r.copyBundledStyle(ctx, ds.Filename)

		s := &catalog.Style{
			ID:       "style-" + uuid.NewString(),
			Name:     ds.Name,
			Filename: ds.Filename,
			Format:   "sld",
		}
		if err := r.catalog.Add(s); err != nil {
			r.logger.Error("Failed to add default style %s: %v", ds.Name, err)
			continue
		}
		r.report.Seeded++
		r.report.Added[catalog.KindStyle]++
		r.logger.Info("Added default style %s", ds.Name)
	}
	return nil
}

// copyBundledStyle copies a bundled style file to styles/<file> unless the
// store already has it. Failures are logged; the style is registered anyway.
func (r *loadRun) copyBundledStyle(ctx context.Context, file string) {
	key := path.Join(datadir.StylesDir, file)
	exists, err := r.store.Exists(ctx, key)
	if err != nil {
		r.logger.Error("Failed to look up %s in the resource store: %v", key, err)
		return
	}
	if exists {
		return
	}
	data, err := bundledStyles.ReadFile("styles/" + file)
	if err != nil {
		r.logger.Error("No bundled definition for %s: %v", file, err)
		return
	}
	if err := r.store.Upload(ctx, key, bytes.NewReader(data)); err != nil {
		r.logger.Error("Failed to copy default style %s: %v", file, err)
	}
}

// setDefaultWorkspace applies the default workspace marker. Without a usable
// marker the catalog keeps its current default and a marker is written for it.
func (r *loadRun) setDefaultWorkspace(ctx context.Context) error {
	marker := r.walker.DefaultWorkspaceFile()
	parser := record.NewParser(r.walker.Format())

	if _, err := r.walker.FS().Stat(marker); err == nil {
		if ws := r.readMarker(ctx, parser, marker); ws != nil {
			if err := r.catalog.SetDefaultWorkspace(ws); err != nil {
				r.logger.Error("Failed to set default workspace %s: %v", ws.Name, err)
			}
			if ns := r.catalog.NamespaceByPrefix(ws.Name); ns != nil {
				if err := r.catalog.SetDefaultNamespace(ns); err != nil {
					r.logger.Error("Failed to set default namespace %s: %v", ns.Prefix, err)
				}
			}
			return nil
		}
	}
	if err := ctx.Err(); err != nil {
		return apperrors.Interrupted("interrupted while reading the default workspace", err)
	}

	current := r.catalog.DefaultWorkspace()
	if current == nil {
		r.logger.Debug("No default workspace to persist")
		return nil
	}
	if err := parser.Persist(r.walker.FS(), current, marker); err != nil {
		r.logger.Error("Failed to persist the default workspace %s: %v", current.Name, err)
		return nil
	}
	r.logger.Info("Persisted %s as the default workspace", current.Name)
	return nil
}

func (r *loadRun) readMarker(ctx context.Context, parser *record.Parser, marker string) *catalog.Workspace {
	data, ok := r.bytes.Load(ctx, marker)
	if !ok {
		return nil
	}
	info, err := parser.Parse(data)
	if err != nil {
		r.logger.Error("Failed to parse the default workspace marker %s: %v", marker, err)
		return nil
	}
	declared, ok := info.(*catalog.Workspace)
	if !ok {
		r.logger.Error("The default workspace marker %s holds a %s record", marker, info.Kind())
		return nil
	}
	ws := r.catalog.Workspace(declared.ID)
	if ws == nil {
		ws = r.catalog.WorkspaceByName(declared.Name)
	}
	if ws == nil {
		r.logger.Warn("The default workspace marker points to %s, which is not in the catalog", catalog.Describe(declared))
	}
	return ws
}

// finalResolve runs the catalog consistency pass and reports what it evicted.
func (r *loadRun) finalResolve(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Interrupted("interrupted before the final resolve", err)
	}
	for _, ev := range r.catalog.Resolve() {
		r.logger.Error("Removed %s from the catalog: %v", catalog.Describe(ev.Info), ev.Reason)
		r.report.Dropped = append(r.report.Dropped, Drop{
			Phase:  PhaseFinalResolve,
			Object: catalog.Describe(ev.Info),
			Kind:   ev.Info.Kind(),
			Err:    ev.Reason,
		})
	}
	if dangling := r.catalog.Dangling(); len(dangling) > 0 {
		return apperrors.Newf(apperrors.CodePhaseFailure, "%d references still dangle after the final resolve, first: %s",
			len(dangling), dangling[0])
	}
	return nil
}
