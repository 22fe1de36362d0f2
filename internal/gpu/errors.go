//go:build !nogpu

package gpu

import "errors"

// Taxonomy of spec.md §7. The root package re-exports these sentinels so
// callers can use errors.Is against the public rotmatch.Err* values without
// reaching into internal/gpu.
var (
	// ErrInvalidConfiguration is fatal at Engine construction.
	ErrInvalidConfiguration = errors.New("rotmatch: invalid configuration")

	// ErrShaderBuildFailure is returned by the first call that needs a
	// pipeline whose program fails to build; pipelines are built lazily, not
	// at engine initialization. The wrapping error carries the backend/naga
	// build log as its message.
	ErrShaderBuildFailure = errors.New("rotmatch: shader build failed")

	// ErrInvalidDimensions means the rotated kernel does not fit the texture.
	ErrInvalidDimensions = errors.New("rotmatch: invalid output dimensions")

	// ErrResourceLimitExceeded means device allocation failed.
	ErrResourceLimitExceeded = errors.New("rotmatch: resource limit exceeded")

	// ErrDeviceFailure wraps any dispatch or read-back error from the backend.
	ErrDeviceFailure = errors.New("rotmatch: device failure")

	// ErrUnknownID means Invalidate was called with an id not currently cached.
	ErrUnknownID = errors.New("rotmatch: unknown texture id")
)

// ResultOrigin selects whether a reported match position refers to the
// kernel's upper-left corner or its centre in texture coordinates.
type ResultOrigin int

const (
	// ResultOriginUpperLeft anchors matches at the kernel's upper-left corner.
	ResultOriginUpperLeft ResultOrigin = iota
	// ResultOriginCenter anchors matches at the kernel's centre.
	ResultOriginCenter
)

func (o ResultOrigin) String() string {
	if o == ResultOriginCenter {
		return "Center"
	}
	return "UpperLeft"
}
