// Package resolver binds the references of freshly decoded records to live
// catalog objects, patching optional references that cannot be bound.
package resolver

import "github.com/geocatalog/pkg/catalog"

// Well-known style names.
const (
	StylePoint   = "point"
	StyleLine    = "line"
	StylePolygon = "polygon"
	StyleRaster  = "raster"
	StyleGeneric = "generic"
)

// DefaultStyle is a bundled style seeded into every catalog.
type DefaultStyle struct {
	Name     string
	Filename string
}

// DefaultStyles lists the bundled styles in seeding order.
var DefaultStyles = []DefaultStyle{
	{Name: StylePoint, Filename: "default_point.sld"},
	{Name: StyleLine, Filename: "default_line.sld"},
	{Name: StylePolygon, Filename: "default_polygon.sld"},
	{Name: StyleRaster, Filename: "default_raster.sld"},
	{Name: StyleGeneric, Filename: "default_generic.sld"},
}

// FallbackPolicy names the styles assigned to layers whose style is missing
// or belongs to another workspace.
type FallbackPolicy struct {
	// Raster is used for coverage backed layers.
	Raster string
	// Generic is used for every other layer.
	Generic string
}

// DefaultFallbackPolicy uses the bundled raster and generic styles.
func DefaultFallbackPolicy() FallbackPolicy {
	return FallbackPolicy{Raster: StyleRaster, Generic: StyleGeneric}
}

// StyleFor returns the fallback style name for a layer backed by res.
func (p FallbackPolicy) StyleFor(res *catalog.Resource) string {
	if res != nil && res.Type == catalog.ResourceTypeCoverage {
		return p.Raster
	}
	return p.Generic
}
