//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Plane is one single-channel 2-D scalar slice of a Texture or Kernel.
// Data is row-major, width*height samples encoded per DType.ByteSize().
type Plane struct {
	DType DType
	Data  []byte
}

// PackedPlaneCount returns ceil(n/4), the number of RGBA float32 device
// images needed to hold n feature-map planes.
func PackedPlaneCount(n int) int {
	return (n + 3) / 4
}

// PackPlanes bundles N single-channel planes of shape (w,h) into ceil(N/4)
// RGBA float32 host-staging buffers. Each returned buffer has w*h*4 float32
// values in row-major, interleaved-channel order (r,g,b,a per pixel).
// Lane c of output i holds plane 4*i+c, normalized via its DType; lanes
// beyond N are zero-filled, satisfying invariant 2 of the spec.
func PackPlanes(planes []Plane, w, h int) ([][]float32, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("gpu: invalid plane shape %dx%d", w, h)
	}
	n := len(planes)
	count := PackedPlaneCount(n)
	out := make([][]float32, count)
	pixelCount := w * h

	for i := 0; i < count; i++ {
		buf := make([]float32, pixelCount*4)
		for c := 0; c < 4; c++ {
			idx := 4*i + c
			if idx >= n {
				continue // zero-filled by make
			}
			plane := planes[idx]
			sampleSize := plane.DType.ByteSize()
			if len(plane.Data) < pixelCount*sampleSize {
				return nil, fmt.Errorf("gpu: plane %d has %d bytes, want at least %d", idx, len(plane.Data), pixelCount*sampleSize)
			}
			for p := 0; p < pixelCount; p++ {
				buf[p*4+c] = decodeSample(plane.DType, plane.Data, p*sampleSize)
			}
		}
		out[i] = buf
	}
	return out, nil
}

// PackMaskPlane normalizes a single mask plane of shape (w,h) into a
// one-channel float32 host-staging buffer using the same normalizer as
// PackPlanes.
func PackMaskPlane(mask Plane, w, h int) ([]float32, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("gpu: invalid mask shape %dx%d", w, h)
	}
	pixelCount := w * h
	sampleSize := mask.DType.ByteSize()
	if len(mask.Data) < pixelCount*sampleSize {
		return nil, fmt.Errorf("gpu: mask plane has %d bytes, want at least %d", len(mask.Data), pixelCount*sampleSize)
	}
	out := make([]float32, pixelCount)
	for p := 0; p < pixelCount; p++ {
		out[p] = decodeSample(mask.DType, mask.Data, p*sampleSize)
	}
	return out, nil
}

// PackConstantBuffer flattens the packed RGBA planes (as produced by
// PackPlanes) into one contiguous buffer suitable for a constant/uniform
// binding: planes concatenated in order, each a contiguous RGBA raster.
// This is the "flat constant-memory buffer layout" of spec.md 4.B.
func PackConstantBuffer(packed [][]float32) []float32 {
	total := 0
	for _, p := range packed {
		total += len(p)
	}
	out := make([]float32, 0, total)
	for _, p := range packed {
		out = append(out, p...)
	}
	return out
}

// Float32SliceToBytes reinterprets a []float32 as its little-endian byte
// representation for upload via Queue.WriteBuffer.
func Float32SliceToBytes(data []float32) []byte {
	out := make([]byte, len(data)*4)
	for i, v := range data {
		binary.LittleEndian.PutUint32(out[i*4:i*4+4], math.Float32bits(v))
	}
	return out
}

// BytesToFloat32Slice reinterprets a little-endian byte buffer (as read back
// via Queue.ReadBuffer) as a []float32.
func BytesToFloat32Slice(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4 : i*4+4]))
	}
	return out
}
