//go:build !nogpu

package gpu

import "testing"

func TestPipelineCacheGetBuildsAndMemoizes(t *testing.T) {
	b := newTestBackend(t)
	defer b.Close()
	requireHAL(t, b)

	pc := NewPipelineCache(b.Device())
	defer pc.Close()

	pipe1, layout1, err := pc.Get(kernelSqdiffNaive)
	if err != nil {
		t.Fatalf("Get(%q): %v", kernelSqdiffNaive, err)
	}
	if pipe1 == nil || layout1 == nil {
		t.Fatal("Get returned a nil pipeline or layout")
	}

	pipe2, layout2, err := pc.Get(kernelSqdiffNaive)
	if err != nil {
		t.Fatalf("Get(%q) second call: %v", kernelSqdiffNaive, err)
	}
	if pipe1 != pipe2 || layout1 != layout2 {
		t.Fatal("Get did not return the memoized pipeline/layout on the second call")
	}
}

func TestPipelineCacheGetUnknownKernelFails(t *testing.T) {
	b := newTestBackend(t)
	defer b.Close()
	requireHAL(t, b)

	pc := NewPipelineCache(b.Device())
	defer pc.Close()

	if _, _, err := pc.Get("not_a_real_kernel"); err == nil {
		t.Fatal("expected ErrShaderBuildFailure for an unknown kernel name")
	}
}

func TestPipelineCacheGetSharesModuleAcrossVariants(t *testing.T) {
	b := newTestBackend(t)
	defer b.Close()
	requireHAL(t, b)

	pc := NewPipelineCache(b.Device())
	defer pc.Close()

	// kernelFindMin and kernelFindMinMasked both resolve to the "find_min"
	// program: the second Get should reuse the compiled module but still
	// build its own pipelineSet entry since the entry point differs.
	if _, _, err := pc.Get(kernelFindMin); err != nil {
		t.Fatalf("Get(%q): %v", kernelFindMin, err)
	}
	if len(pc.modules) != 1 {
		t.Fatalf("modules built = %d, want 1", len(pc.modules))
	}
	if _, _, err := pc.Get(kernelFindMinMasked); err != nil {
		t.Fatalf("Get(%q): %v", kernelFindMinMasked, err)
	}
	if len(pc.modules) != 1 {
		t.Fatalf("modules built after second variant = %d, want 1 (shared module)", len(pc.modules))
	}
	if len(pc.pipes) != 2 {
		t.Fatalf("pipes built = %d, want 2 (one per entry point)", len(pc.pipes))
	}
}
