package rotmatch

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/rotmatch/internal/gpu"
)

// Engine is the public entry point: it owns one GPU device, its resource
// cache, and its built pipelines, and exposes the matching operations
// spec.md's 4.J Public API names.
//
// An Engine is safe for concurrent use: RegisterTexture, Invalidate, Close
// and every Match* call hold the Engine's own mutex, so they run one at a
// time.
type Engine struct {
	mu      sync.Mutex
	cfg     Config
	backend *gpu.Backend
	driver  *gpu.Driver
}

// NewEngine initializes a GPU backend per cfg.DeviceSelection and returns
// a ready-to-use Engine. The returned error wraps ErrDeviceFailure if
// adapter/device creation fails.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	backend := gpu.NewBackend()
	if err := backend.Init(cfg.DeviceSelection); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceFailure, err)
	}
	return &Engine{
		cfg:     cfg,
		backend: backend,
		driver:  gpu.NewDriver(backend),
	}, nil
}

// SetLogger installs the logger the engine and its internal GPU plumbing
// use for diagnostic output. A nil logger restores the default no-op
// handler. Mirrors the teacher's package-level SetLogger: the logger is
// package-wide and applies to every Engine.
func SetLogger(l *slog.Logger) { gpu.SetLogger(l) }

// RegisterTexture reserves a cache id for a Texture, uploads its packed
// planes, and returns the id for later Match*/Invalidate calls. Calling it
// again with a texture already backing a live id is unnecessary: Match*
// calls accept a Texture directly and upload on demand, keyed by
// whatever id was passed in TextureID.
func (e *Engine) RegisterTexture(tex Texture) (uint64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.driver.Cache().AllocID()
	packed, err := gpu.PackPlanes(tex.Planes, tex.Width, tex.Height)
	if err != nil {
		return 0, err
	}
	if _, err := e.driver.Cache().Ensure(id, gpu.PackConstantBuffer(packed), tex.Width, tex.Height, len(tex.Planes)); err != nil {
		return 0, err
	}
	return id, nil
}

// Invalidate releases a texture id's device resources. Returns
// ErrUnknownID if id is not currently cached.
func (e *Engine) Invalidate(id uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.driver.Cache().Invalidate(id)
}

// Match runs spec.md's rotated squared-difference search for a single
// angle with no mask, reporting the single best position.
func (e *Engine) Match(textureID uint64, tex Texture, kernel Kernel, thetaRadians float64) (Match, error) {
	res, err := e.matchResult(textureID, tex, kernel, thetaRadians, nil, nil)
	if err != nil {
		return Match{}, err
	}
	return res.Best, nil
}

// MatchTextureMask is Match restricted to the region where tex.Mask (after
// erosion by the rotated kernel's footprint) is non-zero.
func (e *Engine) MatchTextureMask(textureID uint64, tex Texture, kernel Kernel, thetaRadians float64) (Match, error) {
	if tex.Mask == nil {
		return Match{}, fmt.Errorf("%w: MatchTextureMask requires tex.Mask", ErrInvalidConfiguration)
	}
	res, err := e.matchResult(textureID, tex, kernel, thetaRadians, tex.Mask, nil)
	if err != nil {
		return Match{}, err
	}
	return res.Best, nil
}

// MatchKernelMask is Match where kernel.Mask restricts which template
// pixels participate in the cost sum (a soft/partial template shape).
func (e *Engine) MatchKernelMask(textureID uint64, tex Texture, kernel Kernel, thetaRadians float64) (Match, error) {
	if kernel.Mask == nil {
		return Match{}, fmt.Errorf("%w: MatchKernelMask requires kernel.Mask", ErrInvalidConfiguration)
	}
	res, err := e.matchResult(textureID, tex, kernel, thetaRadians, nil, kernel.Mask)
	if err != nil {
		return Match{}, err
	}
	return res.Best, nil
}

// MatchBothMasks combines MatchTextureMask and MatchKernelMask: the cost
// sum only considers kernel.Mask pixels, and the candidate position must
// additionally survive erosion of tex.Mask by the rotated kernel mask.
func (e *Engine) MatchBothMasks(textureID uint64, tex Texture, kernel Kernel, thetaRadians float64) (Match, error) {
	if tex.Mask == nil || kernel.Mask == nil {
		return Match{}, fmt.Errorf("%w: MatchBothMasks requires both tex.Mask and kernel.Mask", ErrInvalidConfiguration)
	}
	res, err := e.matchResult(textureID, tex, kernel, thetaRadians, tex.Mask, kernel.Mask)
	if err != nil {
		return Match{}, err
	}
	return res.Best, nil
}

// MatchRotations runs Match across every angle in thetasRadians and
// returns one MatchResult per angle, in order. It is a supplemented
// feature beyond spec.md's single-angle call shapes, grounded in the
// original implementation's rotation-sweep search mode (see DESIGN.md):
// callers doing template alignment rarely know the angle in advance. Each
// angle is a separate, read-back match: the texture and kernel planes are
// packed and uploaded again for every angle.
func (e *Engine) MatchRotations(textureID uint64, tex Texture, kernel Kernel, thetasRadians []float64) ([]MatchResult, error) {
	return e.matchRotations(textureID, tex, kernel, thetasRadians, nil, nil)
}

// MatchRotationsMasked is MatchRotations with both masks applied, per
// MatchBothMasks' semantics at each angle.
func (e *Engine) MatchRotationsMasked(textureID uint64, tex Texture, kernel Kernel, thetasRadians []float64) ([]MatchResult, error) {
	if tex.Mask == nil || kernel.Mask == nil {
		return nil, fmt.Errorf("%w: MatchRotationsMasked requires both tex.Mask and kernel.Mask", ErrInvalidConfiguration)
	}
	return e.matchRotations(textureID, tex, kernel, thetasRadians, tex.Mask, kernel.Mask)
}

func (e *Engine) matchRotations(textureID uint64, tex Texture, kernel Kernel, thetas []float64, texMask, kernelMask *Plane) ([]MatchResult, error) {
	out := make([]MatchResult, 0, len(thetas))
	for _, theta := range thetas {
		res, err := e.matchResult(textureID, tex, kernel, theta, texMask, kernelMask)
		if err != nil {
			return nil, fmt.Errorf("theta=%v: %w", theta, err)
		}
		out = append(out, res)
	}
	return out, nil
}

func (e *Engine) matchResult(textureID uint64, tex Texture, kernel Kernel, thetaRadians float64, texMask, kernelMask *Plane) (MatchResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	texPacked, err := gpu.PackPlanes(tex.Planes, tex.Width, tex.Height)
	if err != nil {
		return MatchResult{}, err
	}
	kernPacked, err := gpu.PackPlanes(kernel.Planes, kernel.Width, kernel.Height)
	if err != nil {
		return MatchResult{}, err
	}

	req := gpu.MatchRequest{
		TextureID:     textureID,
		TexturePacked: texPacked,
		TextureW:      tex.Width,
		TextureH:      tex.Height,
		KernelPacked:  kernPacked,
		KernelW:       kernel.Width,
		KernelH:       kernel.Height,
		ThetaRadians:  thetaRadians,
		Origin:        e.cfg.ResultOrigin,
		Limits:        e.cfg.chooserLimits(e.backend),
	}
	if texMask != nil {
		m, err := gpu.PackMaskPlane(*texMask, tex.Width, tex.Height)
		if err != nil {
			return MatchResult{}, err
		}
		req.TextureMask = m
	}
	if kernelMask != nil {
		m, err := gpu.PackMaskPlane(*kernelMask, kernel.Width, kernel.Height)
		if err != nil {
			return MatchResult{}, err
		}
		req.KernelMask = m
	}

	res, err := e.driver.Run(req)
	if err != nil {
		return MatchResult{}, err
	}
	return MatchResult{
		Best:          Match{X: res.X, Y: res.Y, Cost: res.Cost},
		CostSurface:   res.CostSurface,
		SurfaceWidth:  res.SurfaceWidth,
		SurfaceHeight: res.SurfaceHeight,
	}, nil
}

// OutputShape returns the cost-surface size ResolveGeometry would compute
// for a texture/kernel pair at the given angle, without dispatching any
// work. Useful for callers that pre-allocate their own result buffers.
func (e *Engine) OutputShape(textureW, textureH, kernelW, kernelH int, thetaRadians float64) (width, height int, err error) {
	geo, err := gpu.ResolveGeometry(textureW, textureH, kernelW, kernelH, thetaRadians, e.cfg.ResultOrigin)
	if err != nil {
		return 0, 0, err
	}
	return geo.OutputWidth, geo.OutputHeight, nil
}

// OutputDType reports the sample type of every cost surface Match produces.
// The engine only ever accumulates squared differences as single-channel
// float32, regardless of the input textures' or kernels' own dtypes.
func (e *Engine) OutputDType() DType {
	return DTypeFloat32
}

// Close releases the engine's device, resource cache and pipelines. The
// Engine must not be used afterward.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.driver.Close()
	e.backend.Close()
}
