// Package rotmatch matches a small rotated template against a larger
// multi-channel texture entirely on the GPU.
//
// # Overview
//
// rotmatch implements a rotated squared-difference cost surface: for every
// candidate position in a texture, it sums (texture - rotated_template)^2
// across every feature-map channel, then reports the position with the
// lowest cost. Masks can restrict which template pixels count toward the
// sum and which candidate positions are eligible at all.
//
// # Quick Start
//
//	eng, err := rotmatch.NewEngine(must(rotmatch.NewConfig()))
//	id, err := eng.RegisterTexture(tex)
//	match, err := eng.Match(id, tex, kernel, math.Pi/4)
//
// # Architecture
//
// Engine owns a GPU device (internal/gpu.Backend), a grow-only resource
// cache for uploaded textures (internal/gpu.Cache), and a
// pipeline cache of built compute shaders (internal/gpu.PipelineCache).
// A match call resolves rotation geometry, selects a kernel variant
// (naive vs. constant-memory template, plain vs. workgroup-scratchpad),
// dispatches one compute pass per packed group of four channels,
// optionally erodes a mask, and runs a
// two-stage device+host argmin reduction over the resulting cost surface.
//
// # Coordinate System
//
// Texture and template planes are row-major, origin at the upper-left.
// Reported match positions follow Config.ResultOrigin: either the
// template's upper-left corner or its centre.
package rotmatch
