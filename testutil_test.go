package rotmatch

import (
	"testing"

	_ "github.com/gogpu/wgpu/hal/noop"
)

// newTestEngine builds an Engine for tests, skipping when no real GPU
// backend is available (the facade falls back to a mock adapter in
// headless/CI environments; see _examples/gogpu-wgpu/wgpu_test.go's
// requireHAL for the same pattern at the facade level).
func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	cfg, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	e, err := NewEngine(cfg)
	if err != nil {
		t.Skipf("skipping: NewEngine failed (no GPU backend available): %v", err)
	}
	return e
}

// grayPlane builds a DTypeUint8 Plane of shape (w, h) filled with fill,
// except for a wxRect block of value block.
func grayPlane(w, h int, fill byte, rx, ry, rw, rh int, block byte) Plane {
	data := make([]byte, w*h)
	for i := range data {
		data[i] = fill
	}
	for y := ry; y < ry+rh; y++ {
		for x := rx; x < rx+rw; x++ {
			data[y*w+x] = block
		}
	}
	return Plane{DType: DTypeUint8, Data: data}
}

func onesPlane(w, h int) Plane {
	data := make([]byte, w*h)
	for i := range data {
		data[i] = 255
	}
	return Plane{DType: DTypeUint8, Data: data}
}
