package rotmatch

import "github.com/gogpu/rotmatch/internal/gpu"

// DType tags the scalar type of one host-side plane sample.
type DType = gpu.DType

const (
	// DTypeUint8 is an unsigned 8-bit sample, normalized to [0,1].
	DTypeUint8 = gpu.DTypeUint8
	// DTypeUint16 is an unsigned 16-bit sample, normalized to [0,1].
	DTypeUint16 = gpu.DTypeUint16
	// DTypeInt8 is a signed 8-bit sample, normalized to [-1,1].
	DTypeInt8 = gpu.DTypeInt8
	// DTypeInt16 is a signed 16-bit sample, normalized to [-1,1].
	DTypeInt16 = gpu.DTypeInt16
	// DTypeFloat32 is passed through unchanged.
	DTypeFloat32 = gpu.DTypeFloat32
	// DTypeFloat64 is passed through unchanged.
	DTypeFloat64 = gpu.DTypeFloat64
)

// Plane is one single-channel 2-D scalar slice, row-major, width*height
// samples encoded per DType's byte size.
type Plane = gpu.Plane

// Texture is the multi-channel image Engine searches within. Planes holds
// one Plane per feature-map channel; Width and Height describe every
// plane's shape.
type Texture struct {
	Planes        []Plane
	Width, Height int
	// Mask optionally restricts where a match may be reported: a
	// single-channel Plane, same shape as the texture, non-zero where
	// matching is permitted.
	Mask *Plane
}

// Kernel is the (small) rotated template Engine searches for. Its plane
// count must match the Texture it is matched against.
type Kernel struct {
	Planes        []Plane
	Width, Height int
	// Mask optionally restricts which template pixels participate in the
	// cost sum and serves as the erosion structuring element when set.
	Mask *Plane
}

// Match is one reported result: a position in texture coordinates and its
// squared-difference cost (lower is a better match).
type Match struct {
	X, Y int
	Cost float32
}

// MatchResult is the full outcome of one matching call: the best Match
// plus the raw cost surface it was drawn from, for callers that want more
// than the single best position (e.g. non-maximum suppression across
// several rotations).
type MatchResult struct {
	Best          Match
	CostSurface   []float32
	SurfaceWidth  int
	SurfaceHeight int
}
