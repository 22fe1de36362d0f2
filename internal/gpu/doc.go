//go:build !nogpu

// Package gpu contains the device plumbing and dispatch orchestration for
// the rotated-template matching engine. It wraps github.com/gogpu/wgpu's
// high-level facade (Instance/Adapter/Device/Queue/Buffer/ComputePipeline)
// and does not reach for the lower-level core package directly.
//
// # Architecture Overview
//
// One match call flows through these stages:
//
//	Pack planes -> Resolve geometry -> Choose kernel variant ->
//	  Upload (Cache) -> Dispatch sqdiff -> Erode mask (optional) ->
//	  Argmin reduce -> Assemble result
//
// Key components:
//
//   - Backend: instance/adapter/device/queue lifecycle
//   - Cache: grow-only free-stack resource arena for uploaded planes
//   - PipelineCache: lazily-built ShaderModule/BindGroupLayout/ComputePipeline per kernel
//   - Driver: end-to-end orchestration of one MatchRequest
//   - Eroder, Reducer: the mask erosion and two-stage argmin passes
//
// # Kernel Variants
//
// ChooseVariant/ChooseErodeVariant pick among the named entry points in
// shaders.go based on template size, device limits and configuration:
// whether the template fits in constant (uniform) memory, and whether its
// rotated footprint fits a workgroup-shared scratchpad tile.
//
// # Resource Cache
//
// Cache deliberately does not evict: once a caller holds an id, its data
// stays resident until an explicit Invalidate. This differs from the
// LRU-eviction style of earlier GPU backends in this codebase; see
// DESIGN.md for the rationale.
//
// # Thread Safety
//
// Cache and PipelineCache are safe for concurrent use; each holds its own
// mutex. Backend locks only Init, Close and IsInitialized and is not safe
// for concurrent use; Driver, Eroder and Reducer hold no locks.
package gpu
