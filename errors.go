package rotmatch

import "github.com/gogpu/rotmatch/internal/gpu"

// Sentinel errors, re-exported from internal/gpu so callers never need to
// import the internal package to use errors.Is.
var (
	// ErrInvalidConfiguration is returned by NewConfig/NewEngine when a
	// Config field is out of range.
	ErrInvalidConfiguration = gpu.ErrInvalidConfiguration
	// ErrShaderBuildFailure wraps a WGSL compile or pipeline build failure.
	ErrShaderBuildFailure = gpu.ErrShaderBuildFailure
	// ErrInvalidDimensions means the rotated template does not fit inside
	// the texture at the requested angle.
	ErrInvalidDimensions = gpu.ErrInvalidDimensions
	// ErrResourceLimitExceeded means a device buffer allocation failed.
	ErrResourceLimitExceeded = gpu.ErrResourceLimitExceeded
	// ErrDeviceFailure wraps any dispatch, upload or read-back error.
	ErrDeviceFailure = gpu.ErrDeviceFailure
	// ErrUnknownID is returned by Invalidate for an id not currently cached.
	ErrUnknownID = gpu.ErrUnknownID
)
