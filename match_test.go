package rotmatch

import (
	"errors"
	"testing"
)

func TestMatchExactOnTinyGrayscale(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()

	tex := Texture{
		Planes: []Plane{grayPlane(8, 8, 0, 2, 3, 3, 3, 255)},
		Width:  8, Height: 8,
	}
	kernel := Kernel{Planes: []Plane{onesPlane(3, 3)}, Width: 3, Height: 3}

	id, err := e.RegisterTexture(tex)
	if err != nil {
		t.Fatalf("RegisterTexture: %v", err)
	}

	w, h, err := e.OutputShape(8, 8, 3, 3, 0)
	if err != nil {
		t.Fatalf("OutputShape: %v", err)
	}
	if w != 6 || h != 6 {
		t.Fatalf("output shape = %dx%d, want 6x6", w, h)
	}

	m, err := e.Match(id, tex, kernel, 0)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if m.X != 2 || m.Y != 3 {
		t.Fatalf("Match position = (%d, %d), want (2, 3)", m.X, m.Y)
	}
	if m.Cost != 0 {
		t.Fatalf("Match cost = %v, want 0", m.Cost)
	}
}

func TestMatchTwoFeatureMapsPerfectZeroCost(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()

	p0 := grayPlane(4, 4, 10, 0, 0, 1, 1, 10)
	p1 := grayPlane(4, 4, 200, 0, 0, 1, 1, 200)
	tex := Texture{Planes: []Plane{p0, p1}, Width: 4, Height: 4}
	kernel := Kernel{Planes: []Plane{p0, p1}, Width: 4, Height: 4}

	id, err := e.RegisterTexture(tex)
	if err != nil {
		t.Fatalf("RegisterTexture: %v", err)
	}

	m, err := e.Match(id, tex, kernel, 0)
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if m.Cost != 0 {
		t.Fatalf("identical texture/kernel cost = %v, want 0", m.Cost)
	}
	if m.X != 0 || m.Y != 0 {
		t.Fatalf("Match position = (%d, %d), want (0, 0)", m.X, m.Y)
	}
}

func TestMatchTextureMaskAvoidsMaskedRegion(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()

	// Zero-cost location would be the 3x3 block at (5,5), but tex.Mask
	// excludes it.
	texPlane := grayPlane(12, 12, 0, 5, 5, 3, 3, 255)
	mask := onesPlane(12, 12)
	for y := 5; y < 8; y++ {
		for x := 5; x < 8; x++ {
			mask.Data[y*12+x] = 0
		}
	}
	tex := Texture{Planes: []Plane{texPlane}, Width: 12, Height: 12, Mask: &mask}
	kernel := Kernel{Planes: []Plane{onesPlane(3, 3)}, Width: 3, Height: 3}

	id, err := e.RegisterTexture(tex)
	if err != nil {
		t.Fatalf("RegisterTexture: %v", err)
	}

	m, err := e.MatchTextureMask(id, tex, kernel, 0)
	if err != nil {
		t.Fatalf("MatchTextureMask: %v", err)
	}
	if m.X == 5 && m.Y == 5 {
		t.Fatal("MatchTextureMask reported the masked-out zero-cost location")
	}
}

func TestMatchTextureMaskRequiresMask(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()

	tex := Texture{Planes: []Plane{onesPlane(4, 4)}, Width: 4, Height: 4}
	kernel := Kernel{Planes: []Plane{onesPlane(2, 2)}, Width: 2, Height: 2}
	id, err := e.RegisterTexture(tex)
	if err != nil {
		t.Fatalf("RegisterTexture: %v", err)
	}
	if _, err := e.MatchTextureMask(id, tex, kernel, 0); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("MatchTextureMask without tex.Mask: err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestMatchKernelMaskRequiresMask(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()

	tex := Texture{Planes: []Plane{onesPlane(4, 4)}, Width: 4, Height: 4}
	kernel := Kernel{Planes: []Plane{onesPlane(2, 2)}, Width: 2, Height: 2}
	id, err := e.RegisterTexture(tex)
	if err != nil {
		t.Fatalf("RegisterTexture: %v", err)
	}
	if _, err := e.MatchKernelMask(id, tex, kernel, 0); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("MatchKernelMask without kernel.Mask: err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestMatchBothMasksRequiresBoth(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()

	mask := onesPlane(4, 4)
	tex := Texture{Planes: []Plane{onesPlane(4, 4)}, Width: 4, Height: 4, Mask: &mask}
	kernel := Kernel{Planes: []Plane{onesPlane(2, 2)}, Width: 2, Height: 2}
	id, err := e.RegisterTexture(tex)
	if err != nil {
		t.Fatalf("RegisterTexture: %v", err)
	}
	if _, err := e.MatchBothMasks(id, tex, kernel, 0); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("MatchBothMasks with only tex.Mask: err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestMatchBothMasksFindsUnmaskedZeroCostLocation(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()

	// Two identical 3x3 blocks of value 255: one at (2,2), one at (7,7).
	// tex.Mask excludes the (7,7) decoy, so only (2,2) is a legal zero-cost
	// match. kernel.Mask is a full (all-ones) structuring element, which
	// still routes through the masked-SE erosion path (ChooseErodeVariant
	// sees req.KernelMask != nil) even though it excludes nothing.
	texPlane := grayPlane(12, 12, 0, 2, 2, 3, 3, 255)
	for y := 7; y < 10; y++ {
		for x := 7; x < 10; x++ {
			texPlane.Data[y*12+x] = 255
		}
	}
	texMask := onesPlane(12, 12)
	for y := 7; y < 10; y++ {
		for x := 7; x < 10; x++ {
			texMask.Data[y*12+x] = 0
		}
	}
	kernelMask := onesPlane(3, 3)

	tex := Texture{Planes: []Plane{texPlane}, Width: 12, Height: 12, Mask: &texMask}
	kernel := Kernel{Planes: []Plane{onesPlane(3, 3)}, Width: 3, Height: 3, Mask: &kernelMask}

	id, err := e.RegisterTexture(tex)
	if err != nil {
		t.Fatalf("RegisterTexture: %v", err)
	}

	m, err := e.MatchBothMasks(id, tex, kernel, 0)
	if err != nil {
		t.Fatalf("MatchBothMasks: %v", err)
	}
	if m.X != 2 || m.Y != 2 {
		t.Fatalf("MatchBothMasks position = (%d, %d), want (2, 2)", m.X, m.Y)
	}
	if m.Cost != 0 {
		t.Fatalf("MatchBothMasks cost = %v, want 0", m.Cost)
	}
}

func TestCacheReuseNoNewAllocationsOnSecondMatch(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()

	tex := Texture{Planes: []Plane{grayPlane(8, 8, 0, 2, 3, 3, 3, 255)}, Width: 8, Height: 8}
	kernel := Kernel{Planes: []Plane{onesPlane(3, 3)}, Width: 3, Height: 3}

	id, err := e.RegisterTexture(tex)
	if err != nil {
		t.Fatalf("RegisterTexture: %v", err)
	}
	if _, err := e.Match(id, tex, kernel, 0); err != nil {
		t.Fatalf("first Match: %v", err)
	}
	before := e.driver.Cache().SlotCount()

	if _, err := e.Match(id, tex, kernel, 0); err != nil {
		t.Fatalf("second Match: %v", err)
	}
	after := e.driver.Cache().SlotCount()
	if after != before {
		t.Fatalf("second Match with the same texture id grew the slot table: before=%d after=%d", before, after)
	}
}

func TestOutputDTypeIsAlwaysFloat32(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	if got := e.OutputDType(); got != DTypeFloat32 {
		t.Fatalf("OutputDType() = %v, want DTypeFloat32", got)
	}
}

func TestInvalidateUnknownID(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()
	if err := e.Invalidate(123456); !errors.Is(err, ErrUnknownID) {
		t.Fatalf("Invalidate(unknown id): err = %v, want ErrUnknownID", err)
	}
}

func TestMatchRotationsReturnsOnePerAngle(t *testing.T) {
	e := newTestEngine(t)
	defer e.Close()

	tex := Texture{Planes: []Plane{grayPlane(16, 16, 0, 6, 6, 4, 4, 255)}, Width: 16, Height: 16}
	kernel := Kernel{Planes: []Plane{onesPlane(4, 4)}, Width: 4, Height: 4}
	id, err := e.RegisterTexture(tex)
	if err != nil {
		t.Fatalf("RegisterTexture: %v", err)
	}

	angles := []float64{0, 0.1, -0.1}
	results, err := e.MatchRotations(id, tex, kernel, angles)
	if err != nil {
		t.Fatalf("MatchRotations: %v", err)
	}
	if len(results) != len(angles) {
		t.Fatalf("MatchRotations returned %d results, want %d", len(results), len(angles))
	}
}
