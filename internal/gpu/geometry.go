//go:build !nogpu

package gpu

import (
	"fmt"
	"math"
)

// Overlap is the (left, right, top, bottom) margin by which the rotated
// kernel extends beyond a query pixel.
type Overlap struct {
	Left, Right, Top, Bottom int
}

// Geometry is the resolved rotation geometry for one match call: the
// rotated kernel bounding box, its overlap vector, and the resulting output
// (cost surface) size.
type Geometry struct {
	BBoxWidth, BBoxHeight int
	PivotX, PivotY        int // new pivot in bbox coordinates
	Overlap               Overlap
	OutputWidth           int
	OutputHeight          int

	// centerX/centerY and minX/minY are the continuous kernel-center offset
	// and rotated-corner minimum this geometry was derived from. The mask
	// eroder (4.G) reuses them to rasterize a rotated kernel-mask
	// structuring element into this same bbox/pivot coordinate frame.
	centerX, centerY float64
	minX, minY       float64
}

// ResolveGeometry implements spec.md 4.D: given kernel size, rotation angle
// (radians) and pivot policy, compute the rotated bounding box, overlap
// vector and output cost-surface size. Returns ErrInvalidDimensions if the
// rotated kernel does not fit within the texture.
func ResolveGeometry(textureW, textureH, kernelW, kernelH int, theta float64, origin ResultOrigin) (Geometry, error) {
	var px, py float64
	if origin == ResultOriginCenter {
		// Matches the original's integer (cols-1)/2 + 0.5 pivot: for odd
		// kernel sizes this is the same as kernelW/2, but for even sizes the
		// floor division truncates before the 0.5 is added, which shifts the
		// pivot half a pixel left/up of kernelW/2 and reverses which side of
		// the overlap vector carries the extra margin.
		px = float64((kernelW-1)/2) + 0.5
		py = float64((kernelH-1)/2) + 0.5
	}

	corners := [4][2]float64{
		{0.5 - px, 0.5 - py},
		{float64(kernelW) - 0.5 - px, 0.5 - py},
		{0.5 - px, float64(kernelH) - 0.5 - py},
		{float64(kernelW) - 0.5 - px, float64(kernelH) - 0.5 - py},
	}

	sin, cos := math.Sin(theta), math.Cos(theta)
	minX, maxX := math.Inf(1), math.Inf(-1)
	minY, maxY := math.Inf(1), math.Inf(-1)
	for _, c := range corners {
		rx := c[0]*cos - c[1]*sin
		ry := c[0]*sin + c[1]*cos
		minX, maxX = math.Min(minX, rx), math.Max(maxX, rx)
		minY, maxY = math.Min(minY, ry), math.Max(maxY, ry)
	}

	bboxW := int(math.Floor(maxX)) - int(math.Floor(minX)) + 1
	bboxH := int(math.Floor(maxY)) - int(math.Floor(minY)) + 1

	pivotX := int(math.Floor(-minX + 0.5))
	pivotY := int(math.Floor(-minY + 0.5))

	overlap := Overlap{
		Left:   pivotX,
		Right:  bboxW - 1 - pivotX,
		Top:    pivotY,
		Bottom: bboxH - 1 - pivotY,
	}

	outW := textureW - overlap.Left - overlap.Right
	outH := textureH - overlap.Top - overlap.Bottom
	if outW < 1 || outH < 1 {
		return Geometry{}, fmt.Errorf("%w: rotated kernel %dx%d does not fit texture %dx%d at theta=%v", ErrInvalidDimensions, kernelW, kernelH, textureW, textureH, theta)
	}

	return Geometry{
		BBoxWidth:    bboxW,
		BBoxHeight:   bboxH,
		PivotX:       pivotX,
		PivotY:       pivotY,
		Overlap:      overlap,
		OutputWidth:  outW,
		OutputHeight: outH,
		centerX:      px,
		centerY:      py,
		minX:         minX,
		minY:         minY,
	}, nil
}

// RasterizeKernelMaskSE rotates kernelMask (spec.md 4.G's masked structuring
// element) by theta into geo's bbox/pivot coordinate frame, the same frame
// erode.go's masked erosion dispatch addresses via se_pivot. Each
// kernel-local pixel center is rotated exactly as ResolveGeometry rotated
// the kernel's four corners, then floored into a bbox cell; cells two
// source pixels both round into keep the larger (more permissive) value.
func RasterizeKernelMaskSE(kernelMask []float32, kernelW, kernelH int, geo Geometry, theta float64) []float32 {
	se := make([]float32, geo.BBoxWidth*geo.BBoxHeight)
	sin, cos := math.Sin(theta), math.Cos(theta)
	minFloorX, minFloorY := math.Floor(geo.minX), math.Floor(geo.minY)
	for v := 0; v < kernelH; v++ {
		for u := 0; u < kernelW; u++ {
			val := kernelMask[v*kernelW+u]
			cx := float64(u) + 0.5 - geo.centerX
			cy := float64(v) + 0.5 - geo.centerY
			rx := cx*cos - cy*sin
			ry := cx*sin + cy*cos
			bx := int(math.Floor(rx) - minFloorX)
			by := int(math.Floor(ry) - minFloorY)
			if bx < 0 || by < 0 || bx >= geo.BBoxWidth || by >= geo.BBoxHeight {
				continue
			}
			idx := by*geo.BBoxWidth + bx
			if val > se[idx] {
				se[idx] = val
			}
		}
	}
	return se
}
