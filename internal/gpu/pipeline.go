//go:build !nogpu

package gpu

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu"
)

// pipelineSet is a lazily-built (ShaderModule, BindGroupLayout,
// PipelineLayout, ComputePipeline) tuple for one named kernel entry point.
// Programs are built once per Backend and reused across every match call
// that selects the same Variant, so steady-state matching never touches
// the shader compiler.
type pipelineSet struct {
	module   *wgpu.ShaderModule
	layout   *wgpu.BindGroupLayout
	plLayout *wgpu.PipelineLayout
	pipeline *wgpu.ComputePipeline
}

// PipelineCache builds and memoizes ComputePipelines for the named kernel
// entry points defined in shaders.go. One PipelineCache is created by
// NewDriver and shared by that Driver, its Eroder and its Reducer.
type PipelineCache struct {
	mu       sync.Mutex
	device   *wgpu.Device
	modules  map[string]*wgpu.ShaderModule // keyed by program name (sqdiff_naive, erode, ...)
	pipes    map[string]*pipelineSet       // keyed by kernel entry-point name
	bindings map[string][]wgpu.BindGroupLayoutEntry
}

// NewPipelineCache creates an empty cache bound to device.
func NewPipelineCache(device *wgpu.Device) *PipelineCache {
	return &PipelineCache{
		device:  device,
		modules: make(map[string]*wgpu.ShaderModule),
		pipes:   make(map[string]*pipelineSet),
		bindings: map[string][]wgpu.BindGroupLayoutEntry{
			"sqdiff_naive":                 paramsAt3Layout(),
			"sqdiff_naive_local":           paramsAt3Layout(),
			"sqdiff_constant":              mixedLayout(),
			"sqdiff_constant_local":        mixedLayout(),
			"sqdiff_constant_masked_local": mixedLayout(),
			"erode_masked":                 erodeMaskedLayout(),
			"erode":                        storageLayout(3),
			"erode_local":                  storageLayout(3),
			"erode_masked_local":           storageLayout(4),
			"find_min":                     paramsAt3Layout(),
		},
	}
}

// storageLayout returns a layout of n bindings, with the last binding
// treated as a uniform Params block and the rest as storage buffers — the
// shape of the erode, erode_local and erode_masked_local programs.
func storageLayout(n int) []wgpu.BindGroupLayoutEntry {
	entries := make([]wgpu.BindGroupLayoutEntry, n)
	for i := 0; i < n; i++ {
		bufType := gputypes.BufferBindingTypeStorage
		if i == n-1 {
			bufType = gputypes.BufferBindingTypeUniform
		}
		entries[i] = wgpu.BindGroupLayoutEntry{
			Binding:    uint32(i),
			Visibility: wgpu.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: bufType},
		}
	}
	return entries
}

// paramsAt3Layout is the sqdiff_naive, sqdiff_naive_local and find_min
// programs' bind-group shape: storage bindings 0-2, the uniform Params block
// at binding 3, and a storage mask at binding 4.
func paramsAt3Layout() []wgpu.BindGroupLayoutEntry {
	return append(storageLayout(4), wgpu.BindGroupLayoutEntry{
		Binding:    4,
		Visibility: wgpu.ShaderStageCompute,
		Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage},
	})
}

// erodeMaskedLayout is the erode_masked program's bind-group shape: two
// read-only storage inputs (mask, structuring element), a read-write
// storage output, a uniform Params block, and a uniform constant-memory
// structuring-element block (read only by the erode_constant_masked entry
// point, but declared in every bind group the program builds). Unlike
// storageLayout, the uniform Params binding is not the last entry.
func erodeMaskedLayout() []wgpu.BindGroupLayoutEntry {
	return []wgpu.BindGroupLayoutEntry{
		{Binding: 0, Visibility: wgpu.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		{Binding: 1, Visibility: wgpu.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		{Binding: 2, Visibility: wgpu.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		{Binding: 3, Visibility: wgpu.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
		{Binding: 4, Visibility: wgpu.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
	}
}

// mixedLayout is the constant-kernel programs' bind-group shape: a storage
// texture input, a uniform kernel-constant block, a storage output, a
// uniform Params block, and a uniform kernel-mask-constant block.
func mixedLayout() []wgpu.BindGroupLayoutEntry {
	return []wgpu.BindGroupLayoutEntry{
		{Binding: 0, Visibility: wgpu.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		{Binding: 1, Visibility: wgpu.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
		{Binding: 2, Visibility: wgpu.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		{Binding: 3, Visibility: wgpu.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
		{Binding: 4, Visibility: wgpu.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
	}
}

// Get returns (building and caching if needed) the ComputePipeline for the
// named kernel entry point, wrapping any build failure in
// ErrShaderBuildFailure per spec.md §7.
func (c *PipelineCache) Get(kernelName string) (*wgpu.ComputePipeline, *wgpu.BindGroupLayout, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ps, ok := c.pipes[kernelName]; ok {
		return ps.pipeline, ps.layout, nil
	}

	source, program := programForKernel(kernelName)
	if source == "" {
		return nil, nil, fmt.Errorf("%w: unknown kernel %q", ErrShaderBuildFailure, kernelName)
	}

	mod, ok := c.modules[program]
	if !ok {
		// naga.Compile validates the WGSL up front: a malformed kernel fails
		// here with a source-level diagnostic instead of surfacing as an
		// opaque device-side pipeline creation error.
		if _, err := naga.Compile(source); err != nil {
			return nil, nil, fmt.Errorf("%w: program %q failed validation: %v", ErrShaderBuildFailure, program, err)
		}
		m, err := c.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
			Label: program,
			WGSL:  source,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("%w: program %q: %v", ErrShaderBuildFailure, program, err)
		}
		mod = m
		c.modules[program] = mod
	}

	entries, ok := c.bindings[program]
	if !ok {
		return nil, nil, fmt.Errorf("%w: no binding layout for program %q", ErrShaderBuildFailure, program)
	}
	bgl, err := c.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   program + "-bgl",
		Entries: entries,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: bind group layout for %q: %v", ErrShaderBuildFailure, program, err)
	}

	plLayout, err := c.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            program + "-layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: pipeline layout for %q: %v", ErrShaderBuildFailure, program, err)
	}

	pipeline, err := c.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:      kernelName,
		Layout:     plLayout,
		Module:     mod,
		EntryPoint: kernelName,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: pipeline for kernel %q: %v", ErrShaderBuildFailure, kernelName, err)
	}

	c.pipes[kernelName] = &pipelineSet{module: mod, layout: bgl, plLayout: plLayout, pipeline: pipeline}
	return pipeline, bgl, nil
}

// GetArgmin returns (building and caching if needed) the ComputePipeline for
// find_min or find_min_masked sized to blockSize threads per workgroup,
// rather than the fixed 256 of the static argminWGSL source. Driver.Run
// passes ChooseVariant's WorkgroupTile squared; the sqdiff pass itself
// always dispatches fixed 8x8 workgroups.
func (c *PipelineCache) GetArgmin(masked bool, blockSize int) (*wgpu.ComputePipeline, *wgpu.BindGroupLayout, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entryPoint := "find_min"
	if masked {
		entryPoint = "find_min_masked"
	}
	program := fmt.Sprintf("find_min@%d", blockSize)
	kernelName := fmt.Sprintf("%s@%d", entryPoint, blockSize)

	if ps, ok := c.pipes[kernelName]; ok {
		return ps.pipeline, ps.layout, nil
	}

	mod, ok := c.modules[program]
	if !ok {
		source := argminSourceForBlockSize(blockSize)
		if _, err := naga.Compile(source); err != nil {
			return nil, nil, fmt.Errorf("%w: program %q failed validation: %v", ErrShaderBuildFailure, program, err)
		}
		m, err := c.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
			Label: program,
			WGSL:  source,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("%w: program %q: %v", ErrShaderBuildFailure, program, err)
		}
		mod = m
		c.modules[program] = mod
	}

	entries := c.bindings["find_min"]
	bgl, err := c.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   program + "-bgl",
		Entries: entries,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: bind group layout for %q: %v", ErrShaderBuildFailure, program, err)
	}

	plLayout, err := c.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            program + "-layout",
		BindGroupLayouts: []*wgpu.BindGroupLayout{bgl},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: pipeline layout for %q: %v", ErrShaderBuildFailure, program, err)
	}

	pipeline, err := c.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:      kernelName,
		Layout:     plLayout,
		Module:     mod,
		EntryPoint: entryPoint,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: pipeline for kernel %q: %v", ErrShaderBuildFailure, kernelName, err)
	}

	c.pipes[kernelName] = &pipelineSet{module: mod, layout: bgl, plLayout: plLayout, pipeline: pipeline}
	return pipeline, bgl, nil
}

// Close releases every built pipeline, layout and shader module.
func (c *PipelineCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ps := range c.pipes {
		ps.pipeline.Release()
		ps.plLayout.Release()
		ps.layout.Release()
	}
	for _, m := range c.modules {
		m.Release()
	}
	c.pipes = make(map[string]*pipelineSet)
	c.modules = make(map[string]*wgpu.ShaderModule)
}
