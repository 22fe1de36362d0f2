//go:build !nogpu

package gpu

// Variant is the tagged-union dispatch decision spec.md §9 calls for,
// replacing the source's ad-hoc branching with a pure function of (kernel
// size, kernel-mask presence, device constants, configuration) looked up
// once per call.
type Variant struct {
	UseConstantKernel bool
	UseScratchpad     bool
	Masked            bool
	WorkgroupTile     int
}

// ErodeVariant selects among the 5 erosion kernel entry points spec.md §6
// names: plain bbox erosion, its scratchpad variant, mask-buffer-backed
// erosion, its constant-memory-backed sibling, and the masked scratchpad
// variant (which does not distinguish constant vs. buffer-backed masks).
type ErodeVariant struct {
	Masked        bool // erosion uses the kernel mask as structuring element, not the bbox
	ConstantMask  bool // the mask fits in constant memory (only meaningful when Masked)
	UseScratchpad bool
}

// ChooserLimits bundles the device/config constants the kernel chooser
// needs; it is a narrow view over Config and Backend.Limits so variant.go
// has no dependency on either.
type ChooserLimits struct {
	ConstantKernelMaxPixels int
	LocalBufferMaxPixels    int
	ConfiguredScratchpad    bool
	LocalBlockSize          int
	MaxConstantBufferBytes  uint64
	LocalMemBytes           uint32
	KernelStaticLocalUsage  uint32
	MaxWorkgroupInvocations uint32
}

// ChooseVariant implements spec.md 4.E.
func ChooseVariant(kernelW, kernelH, featureMapCount int, kernelMaskPresent bool, ov Overlap, lim ChooserLimits) Variant {
	kernelPixels := kernelW * kernelH
	packedPlanes := PackedPlaneCount(featureMapCount)
	totalPackedBytes := uint64(packedPlanes) * uint64(kernelW) * uint64(kernelH) * 16
	if kernelMaskPresent {
		totalPackedBytes += uint64(kernelW) * uint64(kernelH) * 4
	}

	useConstant := kernelPixels <= lim.ConstantKernelMaxPixels && totalPackedBytes <= lim.MaxConstantBufferBytes

	tileSide := largestPowerOfTwoTile(lim.LocalBlockSize, lim.MaxWorkgroupInvocations)

	tilePixels := (ov.Left + tileSide + ov.Right) * (ov.Top + tileSide + ov.Bottom)
	tileBytes := uint32(tilePixels) * 16 // RGBA float32 per texel, matches packed plane layout
	maxOverlap := maxInt(maxInt(ov.Left, ov.Right), maxInt(ov.Top, ov.Bottom))

	useScratchpad := lim.ConfiguredScratchpad &&
		tilePixels <= lim.LocalBufferMaxPixels &&
		tileBytes <= (lim.LocalMemBytes-lim.KernelStaticLocalUsage) &&
		maxOverlap <= tileSide

	return Variant{
		UseConstantKernel: useConstant,
		UseScratchpad:     useScratchpad,
		Masked:            kernelMaskPresent,
		WorkgroupTile:     tileSide,
	}
}

// ChooseErodeVariant implements the erosion half of spec.md 4.E: one of 5
// programs selected by (masked-SE?, mask-fits-constant-memory?,
// use_scratchpad).
func ChooseErodeVariant(maskedByKernelMask bool, maskFitsConstantMemory bool, lim ChooserLimits, ov Overlap) ErodeVariant {
	tileSide := largestPowerOfTwoTile(lim.LocalBlockSize, lim.MaxWorkgroupInvocations)
	maxOverlap := maxInt(maxInt(ov.Left, ov.Right), maxInt(ov.Top, ov.Bottom))
	tilePixels := (ov.Left + tileSide + ov.Right) * (ov.Top + tileSide + ov.Bottom)

	useScratchpad := lim.ConfiguredScratchpad &&
		tilePixels <= lim.LocalBufferMaxPixels &&
		maxOverlap <= tileSide

	return ErodeVariant{
		Masked:        maskedByKernelMask,
		ConstantMask:  maskedByKernelMask && maskFitsConstantMemory,
		UseScratchpad: useScratchpad,
	}
}

// largestPowerOfTwoTile returns the largest power-of-two T <= configured
// such that T*T <= maxInvocations.
func largestPowerOfTwoTile(configured int, maxInvocations uint32) int {
	t := 1
	for next := t * 2; next <= configured && uint32(next*next) <= maxInvocations; next *= 2 {
		t = next
	}
	return t
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// KernelName returns the shader entry-point name spec.md §6 assigns to this
// squared-difference variant, distinguishing the first pass (no previous
// accumulator to read) from subsequent passes.
func (v Variant) KernelName(firstPass bool) string {
	switch {
	case v.UseConstantKernel && v.UseScratchpad && v.Masked:
		if firstPass {
			return kernelSqdiffConstantMaskedLocal
		}
		return kernelSqdiffConstantMaskedLocalNthPass
	case v.UseConstantKernel && v.UseScratchpad:
		if firstPass {
			return kernelSqdiffConstantLocal
		}
		return kernelSqdiffConstantLocalNthPass
	case v.UseConstantKernel && v.Masked:
		if firstPass {
			return kernelSqdiffConstantMasked
		}
		return kernelSqdiffConstantMaskedNthPass
	case v.UseConstantKernel:
		if firstPass {
			return kernelSqdiffConstant
		}
		return kernelSqdiffConstantNthPass
	case v.UseScratchpad && v.Masked:
		if firstPass {
			return kernelSqdiffNaiveMaskedLocal
		}
		return kernelSqdiffNaiveMaskedLocalNthPass
	case v.UseScratchpad:
		if firstPass {
			return kernelSqdiffNaiveLocal
		}
		return kernelSqdiffNaiveLocalNthPass
	case v.Masked:
		if firstPass {
			return kernelSqdiffNaiveMasked
		}
		return kernelSqdiffNaiveMaskedNthPass
	default:
		if firstPass {
			return kernelSqdiffNaive
		}
		return kernelSqdiffNaiveNthPass
	}
}

// KernelName returns the shader entry-point name for this erosion variant.
func (v ErodeVariant) KernelName() string {
	switch {
	case v.Masked && v.UseScratchpad:
		return kernelErodeMaskedLocal
	case v.Masked && v.ConstantMask:
		return kernelErodeConstantMasked
	case v.Masked:
		return kernelErodeMasked
	case v.UseScratchpad:
		return kernelErodeLocal
	default:
		return kernelErode
	}
}
