package rotmatch

import (
	"errors"
	"testing"
)

func TestNewConfigDefaults(t *testing.T) {
	c, err := NewConfig()
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	if c.DeviceSelection != FirstSuitable {
		t.Errorf("DeviceSelection = %v, want FirstSuitable", c.DeviceSelection)
	}
	if c.ResultOrigin != ResultOriginUpperLeft {
		t.Errorf("ResultOrigin = %v, want ResultOriginUpperLeft", c.ResultOrigin)
	}
	if c.LocalBlockSize != 16 {
		t.Errorf("LocalBlockSize = %d, want 16", c.LocalBlockSize)
	}
	if c.ConstantKernelMaxPixels != 256 {
		t.Errorf("ConstantKernelMaxPixels = %d, want 256", c.ConstantKernelMaxPixels)
	}
	if c.LocalBufferMaxPixels != 1024 {
		t.Errorf("LocalBufferMaxPixels = %d, want 1024", c.LocalBufferMaxPixels)
	}
	if !c.UseLocalForMatching || !c.UseLocalForErode {
		t.Error("UseLocalForMatching/UseLocalForErode should default to true")
	}
	if c.MaxPipelinedMatchingPasses != 16 {
		t.Errorf("MaxPipelinedMatchingPasses = %d, want 16", c.MaxPipelinedMatchingPasses)
	}
}

func TestConfigValidateRejectsNonPositiveLocalBlockSize(t *testing.T) {
	c, _ := NewConfig()
	c.LocalBlockSize = 0
	if err := c.validate(); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("validate() with LocalBlockSize=0: err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestConfigValidateRejectsNegativeConstantKernelMaxPixels(t *testing.T) {
	c, _ := NewConfig()
	c.ConstantKernelMaxPixels = -1
	if err := c.validate(); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("validate() with ConstantKernelMaxPixels=-1: err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestConfigValidateRejectsNegativeLocalBufferMaxPixels(t *testing.T) {
	c, _ := NewConfig()
	c.LocalBufferMaxPixels = -1
	if err := c.validate(); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("validate() with LocalBufferMaxPixels=-1: err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestConfigValidateRejectsNonPositiveMaxPipelinedMatchingPasses(t *testing.T) {
	c, _ := NewConfig()
	c.MaxPipelinedMatchingPasses = 0
	if err := c.validate(); !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("validate() with MaxPipelinedMatchingPasses=0: err = %v, want ErrInvalidConfiguration", err)
	}
}

func TestConfigValidateAcceptsZeroConstantKernelMaxPixels(t *testing.T) {
	c, _ := NewConfig()
	c.ConstantKernelMaxPixels = 0
	if err := c.validate(); err != nil {
		t.Fatalf("validate() with ConstantKernelMaxPixels=0 should be allowed (disables the constant variant): %v", err)
	}
}
