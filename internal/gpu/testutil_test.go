//go:build !nogpu

package gpu

import (
	"testing"

	_ "github.com/gogpu/wgpu/hal/noop"
)

// newTestBackend builds an initialized Backend for tests. Device-dependent
// tests call requireHAL afterward to skip when no real GPU backend is
// available (mirrors _examples/gogpu-wgpu/wgpu_test.go's requireHAL).
func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b := NewBackend()
	if err := b.Init(FirstSuitable); err != nil {
		t.Skipf("skipping: backend init failed: %v", err)
	}
	return b
}

func requireHAL(t *testing.T, b *Backend) {
	t.Helper()
	if b.Queue() == nil {
		t.Skip("skipping: device has no HAL integration (mock adapter; no real GPU backend available)")
	}
}

func testLimits() ChooserLimits {
	return ChooserLimits{
		ConstantKernelMaxPixels: 256,
		LocalBufferMaxPixels:    1024,
		ConfiguredScratchpad:    true,
		LocalBlockSize:          16,
		MaxConstantBufferBytes:  64 << 10,
		LocalMemBytes:           16 << 10,
		KernelStaticLocalUsage:  0,
		MaxWorkgroupInvocations: 256,
	}
}
