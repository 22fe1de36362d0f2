//go:build !nogpu

// Package gpu contains the device plumbing and dispatch orchestration for
// the rotated-template matching engine. It wraps github.com/gogpu/wgpu's
// high-level facade (Instance/Adapter/Device/Queue/Buffer/ComputePipeline)
// and does not reach for the lower-level core package directly.
package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu"
)

// Backend-level errors.
var (
	// ErrNoSuitableAdapter is returned when RequestAdapter fails to find a device.
	ErrNoSuitableAdapter = errors.New("gpu: no suitable adapter available")

	// ErrDeviceRequestFailed is returned when the adapter cannot create a logical device.
	ErrDeviceRequestFailed = errors.New("gpu: device creation failed")

	// ErrNotInitialized is returned by operations on a Backend that hasn't run Init.
	ErrNotInitialized = errors.New("gpu: backend not initialized")
)

// DeviceSelection mirrors the engine's device_selection configuration knob.
// The facade's RequestAdapter only accepts a PowerPreference hint and does
// not expose a way to enumerate and rank multiple physical adapters, so
// MostComputeUnits and MostGPUThreads are implemented as a documented
// approximation: both request a high-performance adapter and record the
// adapter's reported DeviceType and compute limits for observability, but
// cannot compare across multiple candidate adapters the way their names
// imply. See DESIGN.md for the rationale.
type DeviceSelection int

const (
	// FirstSuitable accepts whatever adapter the backend returns first.
	FirstSuitable DeviceSelection = iota
	// MostComputeUnits requests a high-performance adapter; adapters are not
	// ranked by compute-unit count.
	MostComputeUnits
	// MostGPUThreads requests a high-performance adapter, as MostComputeUnits
	// does; adapters are not ranked by invocation capacity.
	MostGPUThreads
)

func (s DeviceSelection) String() string {
	switch s {
	case FirstSuitable:
		return "FirstSuitable"
	case MostComputeUnits:
		return "MostComputeUnits"
	case MostGPUThreads:
		return "MostGPUThreads"
	default:
		return fmt.Sprintf("DeviceSelection(%d)", int(s))
	}
}

func (s DeviceSelection) powerPreference() gputypes.PowerPreference {
	switch s {
	case MostComputeUnits, MostGPUThreads:
		return gputypes.PowerPreferenceHighPerformance
	default:
		return gputypes.PowerPreferenceNone
	}
}

// Backend owns the instance/adapter/device/queue chain the driver dispatches
// compute work through. It is not safe for concurrent use.
type Backend struct {
	mu sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	info   wgpu.AdapterInfo
	limits wgpu.Limits

	initialized bool
}

// NewBackend returns an uninitialized Backend. Call Init before use.
func NewBackend() *Backend {
	return &Backend{}
}

// Init creates the instance, requests an adapter according to selection,
// and opens a logical device and queue.
func (b *Backend) Init(selection DeviceSelection) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized {
		return nil
	}

	instance, err := wgpu.CreateInstance(nil)
	if err != nil {
		return fmt.Errorf("gpu: create instance: %w", err)
	}

	adapter, err := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: selection.powerPreference(),
	})
	if err != nil {
		instance.Release()
		return fmt.Errorf("%w: %w", ErrNoSuitableAdapter, err)
	}

	device, err := adapter.RequestDevice(nil)
	if err != nil {
		adapter.Release()
		instance.Release()
		return fmt.Errorf("%w: %w", ErrDeviceRequestFailed, err)
	}

	b.instance = instance
	b.adapter = adapter
	b.device = device
	b.queue = device.Queue()
	b.info = adapter.Info()
	b.limits = device.Limits()
	b.initialized = true

	slogger().Info("gpu backend initialized",
		"adapter", b.info.Name,
		"device_type", b.info.DeviceType,
		"selection", selection.String(),
		"max_compute_invocations_per_workgroup", b.limits.MaxComputeInvocationsPerWorkgroup,
		"max_compute_workgroup_storage_size", b.limits.MaxComputeWorkgroupStorageSize,
	)

	return nil
}

// Close releases the device, adapter and instance. Safe to call multiple times.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.initialized {
		return
	}

	if b.device != nil {
		b.device.Release()
	}
	if b.adapter != nil {
		b.adapter.Release()
	}
	if b.instance != nil {
		b.instance.Release()
	}

	b.device, b.adapter, b.instance, b.queue = nil, nil, nil, nil
	b.initialized = false
}

// Device returns the logical device, or nil if uninitialized.
func (b *Backend) Device() *wgpu.Device { return b.device }

// Queue returns the device's command queue, or nil if uninitialized.
func (b *Backend) Queue() *wgpu.Queue { return b.queue }

// Limits returns the device's resource limits.
func (b *Backend) Limits() wgpu.Limits { return b.limits }

// Info returns metadata about the selected adapter.
func (b *Backend) Info() wgpu.AdapterInfo { return b.info }

// IsInitialized reports whether Init has completed successfully.
func (b *Backend) IsInitialized() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.initialized
}

// MaxConstantBufferSize approximates spec's device.max_constant_buffer_size
// using the uniform buffer binding limit: WGSL has no distinct constant
// address space exposed through this facade, so uniform buffers are the
// closest analogue (see DESIGN.md).
func (b *Backend) MaxConstantBufferSize() uint64 {
	return b.limits.MaxUniformBufferBindingSize
}

// LocalMemSize approximates device.local_mem_size with the workgroup
// storage (shared memory) limit WGSL exposes for `var<workgroup>` declarations.
func (b *Backend) LocalMemSize() uint32 {
	return b.limits.MaxComputeWorkgroupStorageSize
}

// MaxWorkgroupInvocations returns the device's per-workgroup invocation cap.
func (b *Backend) MaxWorkgroupInvocations() uint32 {
	return b.limits.MaxComputeInvocationsPerWorkgroup
}
