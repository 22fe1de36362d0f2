//go:build !nogpu

package gpu

import "testing"

// packGray packs a single-channel w x h grayscale plane (one byte per
// pixel, 0 or 255) into the RGBA-float32 layout PackPlanes produces for a
// single-plane texture/kernel.
func packGray(w, h int, fill byte, rx, ry, rw, rh int, block byte) [][]float32 {
	data := make([]byte, w*h)
	for i := range data {
		data[i] = fill
	}
	for y := ry; y < ry+rh; y++ {
		for x := rx; x < rx+rw; x++ {
			data[y*w+x] = block
		}
	}
	packed, err := PackPlanes([]Plane{{DType: DTypeUint8, Data: data}}, w, h)
	if err != nil {
		panic(err)
	}
	return packed
}

func onesGray(w, h int) [][]float32 {
	return packGray(w, h, 255, 0, 0, 0, 0, 255)
}

// packGrayN builds n identical single-channel planes (each laid out as in
// packGray) and packs them together, producing ceil(n/4) RGBA float32
// packed planes — used to exercise the multi-pass ping-pong dispatch.
func packGrayN(n, w, h int, fill byte, rx, ry, rw, rh int, block byte) [][]float32 {
	data := make([]byte, w*h)
	for i := range data {
		data[i] = fill
	}
	for y := ry; y < ry+rh; y++ {
		for x := rx; x < rx+rw; x++ {
			data[y*w+x] = block
		}
	}
	planes := make([]Plane, n)
	for i := range planes {
		planes[i] = Plane{DType: DTypeUint8, Data: data}
	}
	packed, err := PackPlanes(planes, w, h)
	if err != nil {
		panic(err)
	}
	return packed
}

func TestDriverRunExactMatchOnTinyGrayscale(t *testing.T) {
	b := newTestBackend(t)
	defer b.Close()
	requireHAL(t, b)

	d := NewDriver(b)
	defer d.Close()

	tex := packGray(8, 8, 0, 2, 3, 3, 3, 255)
	kernel := onesGray(3, 3)

	req := MatchRequest{
		TextureID:     1,
		TexturePacked: tex,
		TextureW:      8, TextureH: 8,
		KernelPacked: kernel,
		KernelW:      3, KernelH: 3,
		Origin: ResultOriginUpperLeft,
		Limits: testLimits(),
	}
	res, err := d.Run(req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.SurfaceWidth != 6 || res.SurfaceHeight != 6 {
		t.Fatalf("surface shape = %dx%d, want 6x6", res.SurfaceWidth, res.SurfaceHeight)
	}
	if res.X != 2 || res.Y != 3 {
		t.Fatalf("Run position = (%d, %d), want (2, 3)", res.X, res.Y)
	}
	if res.Cost != 0 {
		t.Fatalf("Run cost = %v, want 0", res.Cost)
	}
}

func TestDriverRunWithTextureMaskAvoidsExcludedRegion(t *testing.T) {
	b := newTestBackend(t)
	defer b.Close()
	requireHAL(t, b)

	d := NewDriver(b)
	defer d.Close()

	tex := packGray(12, 12, 0, 5, 5, 3, 3, 255)
	kernel := onesGray(3, 3)

	mask := make([]float32, 12*12)
	for i := range mask {
		mask[i] = 1
	}
	for y := 5; y < 8; y++ {
		for x := 5; x < 8; x++ {
			mask[y*12+x] = 0
		}
	}

	req := MatchRequest{
		TextureID:     2,
		TexturePacked: tex,
		TextureW:      12, TextureH: 12,
		KernelPacked: kernel,
		KernelW:      3, KernelH: 3,
		TextureMask: mask,
		Origin:      ResultOriginUpperLeft,
		Limits:      testLimits(),
	}
	res, err := d.Run(req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.X == 5 && res.Y == 5 {
		t.Fatal("Run reported the masked-out zero-cost location")
	}
}

// TestDriverRunMultiChannelPingPongMatchesSingleChannel exercises the
// ceil(N/4) multi-pass dispatch spec.md scenario 3 describes (a 5-channel
// match needs two packed planes, so the running total has to survive a
// physical ping-pong between surfaceA and surfaceB between pass 1 and 2).
func TestDriverRunMultiChannelPingPongMatchesSingleChannel(t *testing.T) {
	b := newTestBackend(t)
	defer b.Close()
	requireHAL(t, b)

	d := NewDriver(b)
	defer d.Close()

	const channels = 5
	tex := packGrayN(channels, 8, 8, 0, 2, 3, 3, 3, 255)
	kernel := packGrayN(channels, 3, 3, 255, 0, 0, 0, 0, 255)

	req := MatchRequest{
		TextureID:     1,
		TexturePacked: tex,
		TextureW:      8, TextureH: 8,
		KernelPacked: kernel,
		KernelW:      3, KernelH: 3,
		Origin: ResultOriginUpperLeft,
		Limits: testLimits(),
	}
	res, err := d.Run(req)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.X != 2 || res.Y != 3 {
		t.Fatalf("Run position = (%d, %d), want (2, 3)", res.X, res.Y)
	}
	if res.Cost != 0 {
		t.Fatalf("Run cost = %v, want 0 (every one of %d channels matches exactly)", res.Cost, channels)
	}
}

func TestDriverRunRejectsKernelLargerThanTexture(t *testing.T) {
	b := newTestBackend(t)
	defer b.Close()
	requireHAL(t, b)

	d := NewDriver(b)
	defer d.Close()

	req := MatchRequest{
		TextureID:     3,
		TexturePacked: onesGray(4, 4),
		TextureW:      4, TextureH: 4,
		KernelPacked: onesGray(8, 8),
		KernelW:      8, KernelH: 8,
		Origin: ResultOriginUpperLeft,
		Limits: testLimits(),
	}
	if _, err := d.Run(req); err == nil {
		t.Fatal("expected ErrInvalidDimensions for a kernel that doesn't fit the texture")
	}
}
