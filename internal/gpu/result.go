//go:build !nogpu

package gpu

// MatchResult is the device-independent outcome of one matching call:
// the winning cell translated back into texture coordinates per the
// configured ResultOrigin, its cost, and the full cost surface for callers
// that want more than the single best match.
type MatchResult struct {
	X, Y          int
	Cost          float32
	CostSurface   []float32
	SurfaceWidth  int
	SurfaceHeight int
}

// assembleResult translates an ArgminResult (in cost-surface coordinates)
// back into texture coordinates. The kernel dispatch adds geo.PivotX/PivotY
// to the cost-surface index to find the texture pixel sampled at the
// kernel's pivot (see accumulate() in shaders.go), so the reverse mapping
// is the same offset: the origin convention is already baked into
// PivotX/PivotY by ResolveGeometry.
func assembleResult(win ArgminResult, geo Geometry) MatchResult {
	return MatchResult{X: win.X + geo.PivotX, Y: win.Y + geo.PivotY, Cost: win.Value}
}
