//go:build !nogpu

package gpu

import (
	"fmt"

	"github.com/gogpu/wgpu"
)

// erodeParams mirrors the Params uniform struct the bbox-SE erode/erode_local
// WGSL programs declare. Field order and size must match the std140-ish
// layout those shaders expect; see shaders.go.
type erodeParams struct {
	maskW, maskH              uint32
	overlapLeft, overlapRight int32
	overlapTop, overlapBottom int32
	tileOriginX, tileOriginY  int32
}

// erodeMaskedParams mirrors the Params uniform struct erode_masked and
// erode_constant_masked declare: the se buffer already lives in geo's
// bbox/pivot frame (see RasterizeKernelMaskSE), so se_size is the bbox size
// and se_pivot the bbox pivot, not the kernel mask's own dimensions.
type erodeMaskedParams struct {
	maskW, maskH       uint32
	seW, seH           uint32
	sePivotX, sePivotY int32
}

// erodeMaskedLocalParams additionally carries the scratchpad tile's origin,
// mirroring erode_masked_local's Params struct.
type erodeMaskedLocalParams struct {
	erodeMaskedParams
	tileOriginX, tileOriginY int32
}

// constantSEMaxElements is the length of erode_constant_masked's
// `se_const: array<f32, 1024>` uniform binding.
const constantSEMaxElements = 1024

// Eroder runs the mask-erosion pass of spec.md 4.G: producing a mask
// surface where a query pixel is 1 only if every structuring-element
// offset around it was also 1 in the source mask (or, for the bbox
// variant, only if the rotated kernel's overlap box is entirely inside the
// source mask).
type Eroder struct {
	backend *Backend
	pipes   *PipelineCache
}

// NewEroder builds an Eroder sharing backend's device and pipeline cache.
func NewEroder(backend *Backend, pipes *PipelineCache) *Eroder {
	return &Eroder{backend: backend, pipes: pipes}
}

// ErodeBBox runs the plain bounding-box structuring-element variant
// (kernelErode / kernelErodeLocal) over a w x h mask, given the rotated
// kernel's overlap vector.
func (e *Eroder) ErodeBBox(mask []float32, w, h int, overlap Overlap, variant ErodeVariant) ([]float32, error) {
	device := e.backend.Device()
	byteLen := uint64(w * h * 4)

	inBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{Label: "erode-in", Size: byteLen, Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst})
	if err != nil {
		return nil, fmt.Errorf("%w: erode input buffer: %v", ErrResourceLimitExceeded, err)
	}
	defer inBuf.Release()
	outBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{Label: "erode-out", Size: byteLen, Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc})
	if err != nil {
		return nil, fmt.Errorf("%w: erode output buffer: %v", ErrResourceLimitExceeded, err)
	}
	defer outBuf.Release()

	if err := device.Queue().WriteBuffer(inBuf, 0, Float32SliceToBytes(mask)); err != nil {
		return nil, fmt.Errorf("%w: erode upload: %v", ErrDeviceFailure, err)
	}

	params := erodeParams{
		maskW: uint32(w), maskH: uint32(h),
		overlapLeft: int32(overlap.Left), overlapRight: int32(overlap.Right),
		overlapTop: int32(overlap.Top), overlapBottom: int32(overlap.Bottom),
		// erode_local's tile load starts overlap.Left/Top pixels before each
		// workgroup's first column/row; the plain "erode" entry point never
		// reads these trailing bytes.
		tileOriginX: -int32(overlap.Left), tileOriginY: -int32(overlap.Top),
	}
	paramsBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{Label: "erode-params", Size: 32, Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst})
	if err != nil {
		return nil, fmt.Errorf("%w: erode params buffer: %v", ErrResourceLimitExceeded, err)
	}
	defer paramsBuf.Release()
	if err := device.Queue().WriteBuffer(paramsBuf, 0, encodeErodeParams(params)); err != nil {
		return nil, fmt.Errorf("%w: erode params upload: %v", ErrDeviceFailure, err)
	}

	name := variant.KernelName()
	pipeline, layout, err := e.pipes.Get(name)
	if err != nil {
		return nil, err
	}

	bg, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  name + "-bindgroup",
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: inBuf, Size: byteLen},
			{Binding: 1, Buffer: outBuf, Size: byteLen},
			{Binding: 2, Buffer: paramsBuf, Size: 32},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: erode bind group: %v", ErrDeviceFailure, err)
	}
	defer bg.Release()

	if err := dispatch2D(device, pipeline, bg, w, h, 8, 8); err != nil {
		return nil, err
	}

	out := make([]byte, byteLen)
	if err := device.Queue().ReadBuffer(outBuf, 0, out); err != nil {
		return nil, fmt.Errorf("%w: erode readback: %v", ErrDeviceFailure, err)
	}
	return BytesToFloat32Slice(out), nil
}

// dispatch2D records a CreateCommandEncoder -> BeginComputePass ->
// SetPipeline -> SetBindGroup -> Dispatch -> End -> Finish -> Submit
// sequence for a w x h workload tiled by (tileX, tileY).
func dispatch2D(device *wgpu.Device, pipeline *wgpu.ComputePipeline, bg *wgpu.BindGroup, w, h, tileX, tileY int) error {
	enc, err := device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "rotmatch-dispatch"})
	if err != nil {
		return fmt.Errorf("%w: command encoder: %v", ErrDeviceFailure, err)
	}
	pass, err := enc.BeginComputePass(&wgpu.ComputePassDescriptor{Label: "rotmatch-pass"})
	if err != nil {
		return fmt.Errorf("%w: compute pass: %v", ErrDeviceFailure, err)
	}
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bg, nil)
	groupsX := uint32((w + tileX - 1) / tileX)
	groupsY := uint32((h + tileY - 1) / tileY)
	pass.Dispatch(groupsX, groupsY, 1)
	if err := pass.End(); err != nil {
		return fmt.Errorf("%w: compute pass end: %v", ErrDeviceFailure, err)
	}
	cmd, err := enc.Finish()
	if err != nil {
		return fmt.Errorf("%w: encoder finish: %v", ErrDeviceFailure, err)
	}
	if err := device.Queue().Submit(cmd); err != nil {
		return fmt.Errorf("%w: submit: %v", ErrDeviceFailure, err)
	}
	return nil
}

func encodeErodeParams(p erodeParams) []byte {
	buf := make([]byte, 32)
	putU32(buf[0:4], p.maskW)
	putU32(buf[4:8], p.maskH)
	putI32(buf[8:12], p.overlapLeft)
	putI32(buf[12:16], p.overlapRight)
	putI32(buf[16:20], p.overlapTop)
	putI32(buf[20:24], p.overlapBottom)
	putI32(buf[24:28], p.tileOriginX)
	putI32(buf[28:32], p.tileOriginY)
	return buf
}

func encodeErodeMaskedParams(p erodeMaskedParams) []byte {
	buf := make([]byte, 24)
	putU32(buf[0:4], p.maskW)
	putU32(buf[4:8], p.maskH)
	putU32(buf[8:12], p.seW)
	putU32(buf[12:16], p.seH)
	putI32(buf[16:20], p.sePivotX)
	putI32(buf[20:24], p.sePivotY)
	return buf
}

func encodeErodeMaskedLocalParams(p erodeMaskedLocalParams) []byte {
	buf := make([]byte, 32)
	copy(buf[0:24], encodeErodeMaskedParams(p.erodeMaskedParams))
	putI32(buf[24:28], p.tileOriginX)
	putI32(buf[28:32], p.tileOriginY)
	return buf
}

// ErodeMaskedSE runs the masked structuring-element erosion variants
// (erode_masked, erode_constant_masked, erode_masked_local): the texture
// mask is eroded by the rotated kernel mask itself rather than its bounding
// box. kernelMask/kernelW/kernelH is the kernel's own (unrotated) mask;
// RasterizeKernelMaskSE rotates it into geo's bbox/pivot coordinate frame
// before upload, matching the frame erode_masked's se_pivot addresses.
func (e *Eroder) ErodeMaskedSE(textureMask []float32, maskW, maskH int, kernelMask []float32, kernelW, kernelH int, geo Geometry, theta float64, variant ErodeVariant) ([]float32, error) {
	device := e.backend.Device()
	byteLen := uint64(maskW*maskH) * 4

	inBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{Label: "erode-se-in", Size: byteLen, Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst})
	if err != nil {
		return nil, fmt.Errorf("%w: erode-se input buffer: %v", ErrResourceLimitExceeded, err)
	}
	defer inBuf.Release()
	outBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{Label: "erode-se-out", Size: byteLen, Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc})
	if err != nil {
		return nil, fmt.Errorf("%w: erode-se output buffer: %v", ErrResourceLimitExceeded, err)
	}
	defer outBuf.Release()
	if err := device.Queue().WriteBuffer(inBuf, 0, Float32SliceToBytes(textureMask)); err != nil {
		return nil, fmt.Errorf("%w: erode-se upload: %v", ErrDeviceFailure, err)
	}

	se := RasterizeKernelMaskSE(kernelMask, kernelW, kernelH, geo, theta)
	seByteLen := uint64(len(se)) * 4
	seBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{Label: "erode-se-buffer", Size: seByteLen, Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst})
	if err != nil {
		return nil, fmt.Errorf("%w: erode-se structuring element buffer: %v", ErrResourceLimitExceeded, err)
	}
	defer seBuf.Release()
	if err := device.Queue().WriteBuffer(seBuf, 0, Float32SliceToBytes(se)); err != nil {
		return nil, fmt.Errorf("%w: erode-se structuring element upload: %v", ErrDeviceFailure, err)
	}

	name := variant.KernelName()
	pipeline, layout, err := e.pipes.Get(name)
	if err != nil {
		return nil, err
	}

	var bg *wgpu.BindGroup
	if name == kernelErodeMaskedLocal {
		params := erodeMaskedLocalParams{
			erodeMaskedParams: erodeMaskedParams{
				maskW: uint32(maskW), maskH: uint32(maskH),
				seW: uint32(geo.BBoxWidth), seH: uint32(geo.BBoxHeight),
				sePivotX: int32(geo.PivotX), sePivotY: int32(geo.PivotY),
			},
			tileOriginX: -int32(geo.PivotX), tileOriginY: -int32(geo.PivotY),
		}
		paramsBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{Label: "erode-se-params", Size: 32, Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst})
		if err != nil {
			return nil, fmt.Errorf("%w: erode-se params buffer: %v", ErrResourceLimitExceeded, err)
		}
		defer paramsBuf.Release()
		if err := device.Queue().WriteBuffer(paramsBuf, 0, encodeErodeMaskedLocalParams(params)); err != nil {
			return nil, fmt.Errorf("%w: erode-se params upload: %v", ErrDeviceFailure, err)
		}
		bg, err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  name + "-bindgroup",
			Layout: layout,
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, Buffer: inBuf, Size: byteLen},
				{Binding: 1, Buffer: seBuf, Size: seByteLen},
				{Binding: 2, Buffer: outBuf, Size: byteLen},
				{Binding: 3, Buffer: paramsBuf, Size: 32},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: erode-se bind group: %v", ErrDeviceFailure, err)
		}
	} else {
		params := erodeMaskedParams{
			maskW: uint32(maskW), maskH: uint32(maskH),
			seW: uint32(geo.BBoxWidth), seH: uint32(geo.BBoxHeight),
			sePivotX: int32(geo.PivotX), sePivotY: int32(geo.PivotY),
		}
		paramsBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{Label: "erode-se-params", Size: 24, Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst})
		if err != nil {
			return nil, fmt.Errorf("%w: erode-se params buffer: %v", ErrResourceLimitExceeded, err)
		}
		defer paramsBuf.Release()
		if err := device.Queue().WriteBuffer(paramsBuf, 0, encodeErodeMaskedParams(params)); err != nil {
			return nil, fmt.Errorf("%w: erode-se params upload: %v", ErrDeviceFailure, err)
		}

		// se_const is declared once per module at @binding(4) and is part of
		// every bind group erode_masked's program builds, even though only
		// the erode_constant_masked entry point reads it.
		constData := make([]float32, constantSEMaxElements)
		copy(constData, se)
		seConstBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{Label: "erode-se-const", Size: constantSEMaxElements * 4, Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst})
		if err != nil {
			return nil, fmt.Errorf("%w: erode-se constant buffer: %v", ErrResourceLimitExceeded, err)
		}
		defer seConstBuf.Release()
		if err := device.Queue().WriteBuffer(seConstBuf, 0, Float32SliceToBytes(constData)); err != nil {
			return nil, fmt.Errorf("%w: erode-se constant upload: %v", ErrDeviceFailure, err)
		}

		bg, err = device.CreateBindGroup(&wgpu.BindGroupDescriptor{
			Label:  name + "-bindgroup",
			Layout: layout,
			Entries: []wgpu.BindGroupEntry{
				{Binding: 0, Buffer: inBuf, Size: byteLen},
				{Binding: 1, Buffer: seBuf, Size: seByteLen},
				{Binding: 2, Buffer: outBuf, Size: byteLen},
				{Binding: 3, Buffer: paramsBuf, Size: 24},
				{Binding: 4, Buffer: seConstBuf, Size: constantSEMaxElements * 4},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: erode-se bind group: %v", ErrDeviceFailure, err)
		}
	}
	defer bg.Release()

	if err := dispatch2D(device, pipeline, bg, maskW, maskH, 8, 8); err != nil {
		return nil, err
	}

	out := make([]byte, byteLen)
	if err := device.Queue().ReadBuffer(outBuf, 0, out); err != nil {
		return nil, fmt.Errorf("%w: erode-se readback: %v", ErrDeviceFailure, err)
	}
	return BytesToFloat32Slice(out), nil
}

func putU32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func putI32(b []byte, v int32) { putU32(b, uint32(v)) }
