//go:build !nogpu

package gpu

import (
	"fmt"
	"math"

	"github.com/gogpu/wgpu"
)

// tileReduceWorkgroup is the default argmin tile size used when a caller has
// no Variant-derived block size to pass (e.g. direct Reducer tests).
const tileReduceWorkgroup = 256

// ArgminResult is the winning cost-surface cell: its flat row-major index,
// the cost value there, and the (x, y) it decodes to.
type ArgminResult struct {
	Index int
	Value float32
	X, Y  int
}

// Reducer runs the two-stage argmin of spec.md 4.H: a device-side
// tile reduction (find_min / find_min_masked) followed by a host-side
// linear scan across per-tile winners. The host scan is what makes the
// "first encountered in row-major order" tie-break exact — GPU workgroup
// completion order is not guaranteed, but the final comparison runs
// single-threaded over already-reduced candidates in tile order.
type Reducer struct {
	backend *Backend
	pipes   *PipelineCache
}

// NewReducer builds a Reducer sharing backend's device and pipeline cache.
func NewReducer(backend *Backend, pipes *PipelineCache) *Reducer {
	return &Reducer{backend: backend, pipes: pipes}
}

// Reduce finds the minimum-cost cell of a w x h row-major cost surface. If
// erodedMask is non-nil, only cells where erodedMask[i] > 0 are eligible.
// blockSize is the number of threads per reduction workgroup; pass 0 to use
// the default tileReduceWorkgroup. Driver.Run passes ChooseVariant's
// WorkgroupTile squared; this block size is independent of the sqdiff
// dispatch, which always runs fixed 8x8 workgroups.
func (r *Reducer) Reduce(cost []float32, w, h int, erodedMask []float32, blockSize int) (ArgminResult, error) {
	if blockSize <= 0 {
		blockSize = tileReduceWorkgroup
	}
	device := r.backend.Device()
	total := w * h
	numTiles := (total + blockSize - 1) / blockSize

	costBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "argmin-cost", Size: uint64(total) * 4,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return ArgminResult{}, fmt.Errorf("%w: argmin cost buffer: %v", ErrResourceLimitExceeded, err)
	}
	defer costBuf.Release()
	if err := device.Queue().WriteBuffer(costBuf, 0, Float32SliceToBytes(cost)); err != nil {
		return ArgminResult{}, fmt.Errorf("%w: argmin cost upload: %v", ErrDeviceFailure, err)
	}

	valuesBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "argmin-values", Size: uint64(numTiles) * 4,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return ArgminResult{}, fmt.Errorf("%w: argmin values buffer: %v", ErrResourceLimitExceeded, err)
	}
	defer valuesBuf.Release()

	indicesBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "argmin-indices", Size: uint64(numTiles) * 4,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc,
	})
	if err != nil {
		return ArgminResult{}, fmt.Errorf("%w: argmin indices buffer: %v", ErrResourceLimitExceeded, err)
	}
	defer indicesBuf.Release()

	paramsBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "argmin-params", Size: 8, Usage: wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return ArgminResult{}, fmt.Errorf("%w: argmin params buffer: %v", ErrResourceLimitExceeded, err)
	}
	defer paramsBuf.Release()
	paramsBytes := make([]byte, 8)
	putU32(paramsBytes[0:4], uint32(w))
	putU32(paramsBytes[4:8], uint32(h))
	if err := device.Queue().WriteBuffer(paramsBuf, 0, paramsBytes); err != nil {
		return ArgminResult{}, fmt.Errorf("%w: argmin params upload: %v", ErrDeviceFailure, err)
	}

	masked := erodedMask != nil
	kernelName := fmt.Sprintf("find_min@%d", blockSize)
	if masked {
		kernelName = fmt.Sprintf("find_min_masked@%d", blockSize)
	}
	// find_min and find_min_masked share one layout that declares
	// eroded_mask at binding 4, so the unmasked path binds a one-cell dummy.
	maskData := erodedMask
	if maskData == nil {
		maskData = []float32{0}
	}
	maskSize := uint64(len(maskData)) * 4
	maskBuf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: "argmin-mask", Size: maskSize,
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return ArgminResult{}, fmt.Errorf("%w: argmin mask buffer: %v", ErrResourceLimitExceeded, err)
	}
	defer maskBuf.Release()
	if err := device.Queue().WriteBuffer(maskBuf, 0, Float32SliceToBytes(maskData)); err != nil {
		return ArgminResult{}, fmt.Errorf("%w: argmin mask upload: %v", ErrDeviceFailure, err)
	}

	pipeline, layout, err := r.pipes.GetArgmin(masked, blockSize)
	if err != nil {
		return ArgminResult{}, err
	}

	entries := []wgpu.BindGroupEntry{
		{Binding: 0, Buffer: costBuf, Size: uint64(total) * 4},
		{Binding: 1, Buffer: valuesBuf, Size: uint64(numTiles) * 4},
		{Binding: 2, Buffer: indicesBuf, Size: uint64(numTiles) * 4},
		{Binding: 3, Buffer: paramsBuf, Size: 8},
		{Binding: 4, Buffer: maskBuf, Size: maskSize},
	}
	bg, err := device.CreateBindGroup(&wgpu.BindGroupDescriptor{Label: kernelName + "-bindgroup", Layout: layout, Entries: entries})
	if err != nil {
		return ArgminResult{}, fmt.Errorf("%w: argmin bind group: %v", ErrDeviceFailure, err)
	}
	defer bg.Release()

	if err := dispatch1D(device, pipeline, bg, total, blockSize); err != nil {
		return ArgminResult{}, err
	}

	valuesOut := make([]byte, numTiles*4)
	if err := device.Queue().ReadBuffer(valuesBuf, 0, valuesOut); err != nil {
		return ArgminResult{}, fmt.Errorf("%w: argmin values readback: %v", ErrDeviceFailure, err)
	}
	indicesOut := make([]byte, numTiles*4)
	if err := device.Queue().ReadBuffer(indicesBuf, 0, indicesOut); err != nil {
		return ArgminResult{}, fmt.Errorf("%w: argmin indices readback: %v", ErrDeviceFailure, err)
	}

	values := BytesToFloat32Slice(valuesOut)
	best := ArgminResult{Index: -1, Value: float32(math.Inf(1))}
	for t := 0; t < numTiles; t++ {
		idx := int(getU32(indicesOut[t*4 : t*4+4]))
		if idx < 0 || idx >= total {
			continue
		}
		if values[t] < best.Value {
			best = ArgminResult{Index: idx, Value: values[t]}
		}
	}
	if best.Index < 0 {
		return ArgminResult{}, fmt.Errorf("%w: no eligible cell in cost surface", ErrInvalidDimensions)
	}
	best.X = best.Index % w
	best.Y = best.Index / w
	return best, nil
}

// dispatch1D records a single-dimension compute dispatch over n elements
// tiled by workgroupSize.
func dispatch1D(device *wgpu.Device, pipeline *wgpu.ComputePipeline, bg *wgpu.BindGroup, n, workgroupSize int) error {
	enc, err := device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: "rotmatch-argmin-dispatch"})
	if err != nil {
		return fmt.Errorf("%w: command encoder: %v", ErrDeviceFailure, err)
	}
	pass, err := enc.BeginComputePass(&wgpu.ComputePassDescriptor{Label: "rotmatch-argmin-pass"})
	if err != nil {
		return fmt.Errorf("%w: compute pass: %v", ErrDeviceFailure, err)
	}
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bg, nil)
	groups := uint32((n + workgroupSize - 1) / workgroupSize)
	pass.Dispatch(groups, 1, 1)
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

func getU32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
