//go:build !nogpu

package gpu

import (
	"fmt"
	"math"

	"github.com/gogpu/wgpu"
)

// sqdiffParams mirrors the Params uniform struct the sqdiff_* WGSL
// programs declare (see shaders.go). Layout must match field-for-field.
type sqdiffParams struct {
	textureW, textureH uint32
	kernelW, kernelH   uint32
	outW, outH         uint32
	planeCount         uint32
	pivotX, pivotY     int32
	sinTheta, cosTheta float32
}

const sqdiffParamsSize = 44

func encodeSqdiffParams(p sqdiffParams) []byte {
	buf := make([]byte, sqdiffParamsSize)
	putU32(buf[0:4], p.textureW)
	putU32(buf[4:8], p.textureH)
	putU32(buf[8:12], p.kernelW)
	putU32(buf[12:16], p.kernelH)
	putU32(buf[16:20], p.outW)
	putU32(buf[20:24], p.outH)
	putU32(buf[24:28], p.planeCount)
	putI32(buf[28:32], p.pivotX)
	putI32(buf[32:36], p.pivotY)
	putU32(buf[36:40], math.Float32bits(p.sinTheta))
	putU32(buf[40:44], math.Float32bits(p.cosTheta))
	return buf
}

// Driver orchestrates one end-to-end match call: upload, geometry and
// variant resolution, ping-pong dispatch, argmin, and result assembly.
// Besides the shared Cache (spec.md 4.C) and PipelineCache, it owns two
// accumulator surfaces (surfaceA/surfaceB) reused across every Run call and
// only ever grown, never released and reallocated per call, per invariant 4.
type Driver struct {
	backend *Backend
	cache   *Cache
	pipes   *PipelineCache
	eroder  *Eroder
	reducer *Reducer

	surfaceA, surfaceB *wgpu.Buffer
	surfaceCap         uint64
}

// NewDriver builds a Driver over an initialized Backend.
func NewDriver(backend *Backend) *Driver {
	pipes := NewPipelineCache(backend.Device())
	return &Driver{
		backend: backend,
		cache:   NewCache(backend.Device()),
		pipes:   pipes,
		eroder:  NewEroder(backend, pipes),
		reducer: NewReducer(backend, pipes),
	}
}

// ensureSurfaces grows the two accumulator buffers to at least outLen
// cells, reallocating both together so they stay the same size. Existing
// buffers below the required size are released and replaced; a surface
// already large enough from a prior, bigger Run call is left untouched.
func (d *Driver) ensureSurfaces(outLen int) error {
	need := uint64(outLen) * 4
	if d.surfaceA != nil && d.surfaceB != nil && d.surfaceCap >= need {
		return nil
	}
	size := need
	if d.surfaceCap > size {
		size = d.surfaceCap
	}
	usage := wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst
	a, err := d.backend.Device().CreateBuffer(&wgpu.BufferDescriptor{Label: "cost-surface-a", Size: size, Usage: usage})
	if err != nil {
		return fmt.Errorf("%w: cost surface A: %v", ErrResourceLimitExceeded, err)
	}
	b, err := d.backend.Device().CreateBuffer(&wgpu.BufferDescriptor{Label: "cost-surface-b", Size: size, Usage: usage})
	if err != nil {
		a.Release()
		return fmt.Errorf("%w: cost surface B: %v", ErrResourceLimitExceeded, err)
	}
	if d.surfaceA != nil {
		d.surfaceA.Release()
	}
	if d.surfaceB != nil {
		d.surfaceB.Release()
	}
	d.surfaceA, d.surfaceB, d.surfaceCap = a, b, size
	return nil
}

// Cache exposes the driver's resource cache for Engine.Invalidate and
// cache-warming calls.
func (d *Driver) Cache() *Cache { return d.cache }

// MatchRequest bundles one call's inputs: a texture (already packed into
// RGBA planes by the caller), a kernel, the rotation to test, and optional
// masks.
type MatchRequest struct {
	TextureID          uint64
	TexturePacked      [][]float32
	TextureW, TextureH int

	KernelPacked     [][]float32
	KernelW, KernelH int

	KernelMask  []float32 // optional: same shape as kernel, one channel
	TextureMask []float32 // optional: same shape as texture, one channel

	ThetaRadians float64
	Origin       ResultOrigin
	Limits       ChooserLimits
}

// Run executes one match call end to end, implementing spec.md 4.F.
func (d *Driver) Run(req MatchRequest) (MatchResult, error) {
	geo, err := ResolveGeometry(req.TextureW, req.TextureH, req.KernelW, req.KernelH, req.ThetaRadians, req.Origin)
	if err != nil {
		return MatchResult{}, err
	}

	if len(req.TexturePacked) != len(req.KernelPacked) {
		return MatchResult{}, fmt.Errorf("%w: texture has %d packed planes, kernel has %d", ErrInvalidDimensions, len(req.TexturePacked), len(req.KernelPacked))
	}
	numPasses := len(req.TexturePacked)

	planeCount := numPasses * 4
	variant := ChooseVariant(req.KernelW, req.KernelH, planeCount, req.KernelMask != nil, geo.Overlap, req.Limits)

	// The full concatenated buffer is still kept in Cache, keyed by
	// TextureID, so repeat Match calls against the same id reuse its slot
	// (spec.md 4.C); each pass below instead uploads the one packed plane
	// it dispatches against, directly from req.TexturePacked/KernelPacked.
	if _, err := d.cache.Ensure(req.TextureID, PackConstantBuffer(req.TexturePacked), req.TextureW, req.TextureH, len(req.TexturePacked)); err != nil {
		return MatchResult{}, err
	}

	outW, outH := geo.OutputWidth, geo.OutputHeight
	outLen := outW * outH

	if err := d.ensureSurfaces(outLen); err != nil {
		return MatchResult{}, err
	}

	params := sqdiffParams{
		textureW: uint32(req.TextureW), textureH: uint32(req.TextureH),
		kernelW: uint32(req.KernelW), kernelH: uint32(req.KernelH),
		outW: uint32(outW), outH: uint32(outH),
		planeCount: uint32(planeCount),
		pivotX:     int32(geo.PivotX), pivotY: int32(geo.PivotY),
		sinTheta: float32(math.Sin(req.ThetaRadians)), cosTheta: float32(math.Cos(req.ThetaRadians)),
	}
	paramsBuf, err := d.backend.Device().CreateBuffer(&wgpu.BufferDescriptor{
		Label: "sqdiff-params", Size: sqdiffParamsSize, Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return MatchResult{}, fmt.Errorf("%w: sqdiff params: %v", ErrResourceLimitExceeded, err)
	}
	defer paramsBuf.Release()
	if err := d.backend.Device().Queue().WriteBuffer(paramsBuf, 0, encodeSqdiffParams(params)); err != nil {
		return MatchResult{}, fmt.Errorf("%w: sqdiff params upload: %v", ErrDeviceFailure, err)
	}

	// The mask binding is part of every sqdiff_* bind-group layout
	// regardless of whether the selected entry point reads it (the module
	// declares it once at @binding(4)); a tiny dummy buffer keeps the
	// unmasked path's bind group structurally valid.
	maskLen := uint64(req.KernelW*req.KernelH) * 4
	maskData := req.KernelMask
	if maskData == nil {
		maskLen = 4
		maskData = []float32{0}
	}
	maskBuf, err := d.backend.Device().CreateBuffer(&wgpu.BufferDescriptor{
		Label: "kernel-mask", Size: maskLen,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return MatchResult{}, fmt.Errorf("%w: kernel mask buffer: %v", ErrResourceLimitExceeded, err)
	}
	defer maskBuf.Release()
	if err := d.backend.Device().Queue().WriteBuffer(maskBuf, 0, Float32SliceToBytes(maskData)); err != nil {
		return MatchResult{}, fmt.Errorf("%w: kernel mask upload: %v", ErrDeviceFailure, err)
	}

	// One dispatch per packed RGBA plane (spec.md 4.F steps 3-5, invariant
	// 6): the first pass writes straight into cur; every later pass copies
	// the running total from alt into cur first, then accumulates onto cur
	// in place, so the total physically alternates between surfaceA and
	// surfaceB each pass rather than living in one buffer the whole time.
	cur, alt := d.surfaceA, d.surfaceB
	for p := 0; p < numPasses; p++ {
		firstPass := p == 0

		texBuf, err := d.uploadPlane(fmt.Sprintf("texture-plane-%d", p), req.TexturePacked[p])
		if err != nil {
			return MatchResult{}, err
		}
		kernBuf, err := d.uploadPlane(fmt.Sprintf("kernel-plane-%d", p), req.KernelPacked[p])
		if err != nil {
			texBuf.Release()
			return MatchResult{}, err
		}

		if !firstPass {
			if err := d.copyBuffer(alt, cur, uint64(outLen)*4); err != nil {
				texBuf.Release()
				kernBuf.Release()
				return MatchResult{}, err
			}
		}

		kernelName := variant.KernelName(firstPass)
		pipeline, layout, err := d.pipes.Get(kernelName)
		if err != nil {
			texBuf.Release()
			kernBuf.Release()
			return MatchResult{}, err
		}
		entries := []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: texBuf, Size: texBuf.Size()},
			{Binding: 1, Buffer: kernBuf, Size: kernBuf.Size()},
			{Binding: 2, Buffer: cur, Size: uint64(outLen) * 4},
			{Binding: 3, Buffer: paramsBuf, Size: sqdiffParamsSize},
			{Binding: 4, Buffer: maskBuf, Size: maskLen},
		}
		bg, err := d.backend.Device().CreateBindGroup(&wgpu.BindGroupDescriptor{Label: kernelName + "-bindgroup", Layout: layout, Entries: entries})
		if err != nil {
			texBuf.Release()
			kernBuf.Release()
			return MatchResult{}, fmt.Errorf("%w: sqdiff bind group: %v", ErrDeviceFailure, err)
		}

		err = dispatch2D(d.backend.Device(), pipeline, bg, outW, outH, 8, 8)
		bg.Release()
		texBuf.Release()
		kernBuf.Release()
		if err != nil {
			return MatchResult{}, err
		}

		cur, alt = alt, cur
	}
	finalSurface := alt

	costBytes := make([]byte, uint64(outLen)*4)
	if err := d.backend.Device().Queue().ReadBuffer(finalSurface, 0, costBytes); err != nil {
		return MatchResult{}, fmt.Errorf("%w: cost surface readback: %v", ErrDeviceFailure, err)
	}
	cost := BytesToFloat32Slice(costBytes)

	var erodedMask []float32
	if req.TextureMask != nil {
		erodeVariant := ChooseErodeVariant(req.KernelMask != nil, req.KernelW*req.KernelH <= req.Limits.ConstantKernelMaxPixels, req.Limits, geo.Overlap)
		var eroded []float32
		if erodeVariant.Masked {
			eroded, err = d.eroder.ErodeMaskedSE(req.TextureMask, req.TextureW, req.TextureH, req.KernelMask, req.KernelW, req.KernelH, geo, req.ThetaRadians, erodeVariant)
		} else {
			eroded, err = d.eroder.ErodeBBox(req.TextureMask, req.TextureW, req.TextureH, geo.Overlap, erodeVariant)
		}
		if err != nil {
			return MatchResult{}, err
		}
		erodedMask = cropToOutput(eroded, req.TextureW, outW, outH, geo.Overlap)
	}

	blockSize := variant.WorkgroupTile * variant.WorkgroupTile
	win, err := d.reducer.Reduce(cost, outW, outH, erodedMask, blockSize)
	if err != nil {
		return MatchResult{}, err
	}
	result := assembleResult(win, geo)
	result.CostSurface = cost
	result.SurfaceWidth = outW
	result.SurfaceHeight = outH
	return result, nil
}

// cropToOutput extracts the outW x outH region starting at
// (overlap.Left, overlap.Top) from a textureW-wide row-major buffer, so
// the eroded mask aligns 1:1 with cost-surface indices.
func cropToOutput(full []float32, textureW, outW, outH int, overlap Overlap) []float32 {
	out := make([]float32, outW*outH)
	for y := 0; y < outH; y++ {
		srcRow := (y + overlap.Top) * textureW
		copy(out[y*outW:(y+1)*outW], full[srcRow+overlap.Left:srcRow+overlap.Left+outW])
	}
	return out
}

// uploadPlane creates a small device buffer holding exactly one packed
// RGBA plane and uploads it. Each sqdiff_* pass binds one such buffer, so a
// multi-channel match dispatches ceil(N/4) of these rather than one buffer
// holding every plane concatenated.
func (d *Driver) uploadPlane(label string, plane []float32) (*wgpu.Buffer, error) {
	buf, err := d.backend.Device().CreateBuffer(&wgpu.BufferDescriptor{
		Label: label, Size: uint64(len(plane)) * 4,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrResourceLimitExceeded, label, err)
	}
	if err := d.backend.Device().Queue().WriteBuffer(buf, 0, Float32SliceToBytes(plane)); err != nil {
		return nil, fmt.Errorf("%w: %s upload: %v", ErrDeviceFailure, label, err)
	}
	return buf, nil
}

// copyBuffer records and submits a one-shot device-to-device copy of size
// bytes from src to dst, used to seed the ping-pong accumulator that is
// about to receive an nth-pass accumulation with the running total held by
// the other surface.
func (d *Driver) copyBuffer(src, dst *wgpu.Buffer, size uint64) error {
	device := d.backend.Device()
	enc, err := device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "rotmatch-pingpong-copy"})
	if err != nil {
		return fmt.Errorf("%w: ping-pong copy encoder: %v", ErrDeviceFailure, err)
	}
	enc.CopyBufferToBuffer(src, 0, dst, 0, size)
	cmd, err := enc.Finish()
	if err != nil {
		return fmt.Errorf("%w: ping-pong copy finish: %v", ErrDeviceFailure, err)
	}
	if err := device.Queue().Submit(cmd); err != nil {
		return fmt.Errorf("%w: ping-pong copy submit: %v", ErrDeviceFailure, err)
	}
	return nil
}

// Close releases the driver's resource cache, pipeline cache, and the two
// persistent accumulator surfaces.
func (d *Driver) Close() {
	d.cache.Close()
	d.pipes.Close()
	if d.surfaceA != nil {
		d.surfaceA.Release()
	}
	if d.surfaceB != nil {
		d.surfaceB.Release()
	}
}
