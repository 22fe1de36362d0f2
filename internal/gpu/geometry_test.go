//go:build !nogpu

package gpu

import (
	"math"
	"testing"
)

func TestResolveGeometryZeroRotation(t *testing.T) {
	geo, err := ResolveGeometry(100, 80, 10, 6, 0, ResultOriginUpperLeft)
	if err != nil {
		t.Fatalf("ResolveGeometry: %v", err)
	}
	if geo.BBoxWidth != 10 || geo.BBoxHeight != 6 {
		t.Fatalf("unrotated bbox = %dx%d, want 10x6", geo.BBoxWidth, geo.BBoxHeight)
	}
	wantOutW := 100 - (geo.Overlap.Left + geo.Overlap.Right)
	wantOutH := 80 - (geo.Overlap.Top + geo.Overlap.Bottom)
	if geo.OutputWidth != wantOutW || geo.OutputHeight != wantOutH {
		t.Fatalf("output = %dx%d, want %dx%d", geo.OutputWidth, geo.OutputHeight, wantOutW, wantOutH)
	}
}

func TestResolveGeometry90DegreesSwapsFootprint(t *testing.T) {
	geo, err := ResolveGeometry(100, 100, 10, 4, math.Pi/2, ResultOriginUpperLeft)
	if err != nil {
		t.Fatalf("ResolveGeometry: %v", err)
	}
	// A 10x4 kernel rotated 90 degrees occupies a 4x10 footprint.
	if geo.BBoxWidth != 4 || geo.BBoxHeight != 10 {
		t.Fatalf("90-degree rotation should swap the footprint: bbox = %dx%d, want 4x10", geo.BBoxWidth, geo.BBoxHeight)
	}
}

func TestResolveGeometryDoesNotFitReturnsInvalidDimensions(t *testing.T) {
	_, err := ResolveGeometry(5, 5, 10, 10, 0, ResultOriginUpperLeft)
	if err == nil {
		t.Fatal("expected ErrInvalidDimensions, got nil")
	}
}

func TestResolveGeometryCenterOriginFootprintDiffersFromUpperLeft(t *testing.T) {
	ul, err := ResolveGeometry(100, 100, 11, 7, math.Pi/6, ResultOriginUpperLeft)
	if err != nil {
		t.Fatalf("ResolveGeometry upper-left: %v", err)
	}
	ctr, err := ResolveGeometry(100, 100, 11, 7, math.Pi/6, ResultOriginCenter)
	if err != nil {
		t.Fatalf("ResolveGeometry center: %v", err)
	}
	// The bbox is floor(max)-floor(min)+1 over corners taken relative to the
	// pivot, so moving the pivot can change the footprint by a pixel: an
	// 11x7 kernel at 30 degrees is 12x11 about its upper-left pixel and
	// 12x12 about its centre.
	if ul.BBoxWidth != 12 || ul.BBoxHeight != 11 || ctr.BBoxWidth != 12 || ctr.BBoxHeight != 12 {
		t.Fatalf("rotated footprint: upper-left=%dx%d center=%dx%d, want 12x11 and 12x12",
			ul.BBoxWidth, ul.BBoxHeight, ctr.BBoxWidth, ctr.BBoxHeight)
	}
}

func TestResolveGeometryCenterOriginEvenKernelPivotIsFloorBased(t *testing.T) {
	// A 4x4 kernel at theta=0 under ResultOriginCenter must use the
	// original's floor((cols-1)/2)+0.5 pivot, which for an even size sits
	// half a pixel off center and produces an asymmetric (1,2,1,2) overlap
	// — not the naive kernelW/2 pivot's mirrored (2,1,2,1).
	geo, err := ResolveGeometry(20, 20, 4, 4, 0, ResultOriginCenter)
	if err != nil {
		t.Fatalf("ResolveGeometry: %v", err)
	}
	want := Overlap{Left: 1, Right: 2, Top: 1, Bottom: 2}
	if geo.Overlap != want {
		t.Fatalf("overlap = %+v, want %+v", geo.Overlap, want)
	}
}

func TestResultOriginString(t *testing.T) {
	if ResultOriginUpperLeft.String() != "UpperLeft" {
		t.Fatalf("ResultOriginUpperLeft.String() = %q", ResultOriginUpperLeft.String())
	}
	if ResultOriginCenter.String() != "Center" {
		t.Fatalf("ResultOriginCenter.String() = %q", ResultOriginCenter.String())
	}
}
