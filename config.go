package rotmatch

import (
	"fmt"

	"github.com/gogpu/rotmatch/internal/gpu"
)

// DeviceSelection controls which physical adapter Engine requests from the
// platform's GPU backend.
type DeviceSelection = gpu.DeviceSelection

const (
	// FirstSuitable accepts whatever adapter the platform offers first.
	FirstSuitable = gpu.FirstSuitable
	// MostComputeUnits prefers a high-performance adapter. The underlying
	// facade cannot enumerate and rank adapters by physical compute-unit
	// count, so this and MostGPUThreads both resolve to a high-performance
	// power-preference hint; see DESIGN.md.
	MostComputeUnits = gpu.MostComputeUnits
	// MostGPUThreads is an alias of MostComputeUnits for the same reason.
	MostGPUThreads = gpu.MostGPUThreads
)

// ResultOrigin selects whether a reported match position is the rotated
// template's upper-left corner or its centre, in texture coordinates.
type ResultOrigin = gpu.ResultOrigin

const (
	// ResultOriginUpperLeft anchors matches at the template's upper-left corner.
	ResultOriginUpperLeft = gpu.ResultOriginUpperLeft
	// ResultOriginCenter anchors matches at the template's centre.
	ResultOriginCenter = gpu.ResultOriginCenter
)

// Config holds the tunables spec.md's External Interfaces section assigns
// to engine construction. Zero-value Config is invalid; use NewConfig to
// get a validated, defaulted instance.
type Config struct {
	// DeviceSelection controls adapter choice. Default FirstSuitable.
	DeviceSelection DeviceSelection
	// ResultOrigin controls how matches are reported. Default ResultOriginUpperLeft.
	ResultOrigin ResultOrigin
	// LocalBlockSize is the configured square workgroup tile edge the
	// kernel chooser may shrink to fit device limits. Default 16.
	LocalBlockSize int
	// ConstantKernelMaxPixels bounds how large a template may be before the
	// constant-memory kernel variant is skipped. Default 256.
	ConstantKernelMaxPixels int
	// LocalBufferMaxPixels bounds the workgroup-shared scratchpad tile.
	// Default 1024.
	LocalBufferMaxPixels int
	// UseLocalForMatching enables the scratchpad variants of the
	// squared-difference kernels when device limits allow. Default true.
	UseLocalForMatching bool
	// UseLocalForErode is not read: whether the erosion kernels use their
	// scratchpad variants follows UseLocalForMatching. Default true.
	UseLocalForErode bool
	// MaxTextureCacheMemory is an advisory budget in bytes. The resource
	// cache never evicts to respect it (see DESIGN.md), and Engine does not
	// read it.
	MaxTextureCacheMemory uint64
	// MaxPipelinedMatchingPasses must be positive but is not otherwise read:
	// MatchRotations runs and reads back one match per angle. Default 16.
	MaxPipelinedMatchingPasses int
}

// NewConfig returns a Config with spec.md's documented defaults applied,
// then validates it.
func NewConfig() (Config, error) {
	c := Config{
		DeviceSelection:            FirstSuitable,
		ResultOrigin:               ResultOriginUpperLeft,
		LocalBlockSize:             16,
		ConstantKernelMaxPixels:    256,
		LocalBufferMaxPixels:       1024,
		UseLocalForMatching:        true,
		UseLocalForErode:           true,
		MaxTextureCacheMemory:      256 << 20,
		MaxPipelinedMatchingPasses: 16,
	}
	return c, c.validate()
}

func (c Config) validate() error {
	if c.LocalBlockSize <= 0 {
		return fmt.Errorf("%w: LocalBlockSize must be positive, got %d", ErrInvalidConfiguration, c.LocalBlockSize)
	}
	if c.ConstantKernelMaxPixels < 0 {
		return fmt.Errorf("%w: ConstantKernelMaxPixels must be non-negative, got %d", ErrInvalidConfiguration, c.ConstantKernelMaxPixels)
	}
	if c.LocalBufferMaxPixels < 0 {
		return fmt.Errorf("%w: LocalBufferMaxPixels must be non-negative, got %d", ErrInvalidConfiguration, c.LocalBufferMaxPixels)
	}
	if c.MaxPipelinedMatchingPasses <= 0 {
		return fmt.Errorf("%w: MaxPipelinedMatchingPasses must be positive, got %d", ErrInvalidConfiguration, c.MaxPipelinedMatchingPasses)
	}
	return nil
}

func (c Config) chooserLimits(backend *gpu.Backend) gpu.ChooserLimits {
	return gpu.ChooserLimits{
		ConstantKernelMaxPixels: c.ConstantKernelMaxPixels,
		LocalBufferMaxPixels:    c.LocalBufferMaxPixels,
		ConfiguredScratchpad:    c.UseLocalForMatching,
		LocalBlockSize:          c.LocalBlockSize,
		MaxConstantBufferBytes:  backend.MaxConstantBufferSize(),
		LocalMemBytes:           backend.LocalMemSize(),
		KernelStaticLocalUsage:  0,
		MaxWorkgroupInvocations: backend.MaxWorkgroupInvocations(),
	}
}
