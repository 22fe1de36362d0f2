//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestDTypeByteSize(t *testing.T) {
	cases := map[DType]int{
		DTypeUint8:   1,
		DTypeInt8:    1,
		DTypeUint16:  2,
		DTypeInt16:   2,
		DTypeFloat32: 4,
		DTypeFloat64: 8,
	}
	for d, want := range cases {
		if got := d.ByteSize(); got != want {
			t.Errorf("%v.ByteSize() = %d, want %d", d, got, want)
		}
	}
}

func TestDecodeSampleUint8NormalizesToZeroOne(t *testing.T) {
	buf := []byte{255}
	if got := decodeSample(DTypeUint8, buf, 0); got != 1 {
		t.Fatalf("decodeSample(uint8, 255) = %v, want 1", got)
	}
	buf = []byte{0}
	if got := decodeSample(DTypeUint8, buf, 0); got != 0 {
		t.Fatalf("decodeSample(uint8, 0) = %v, want 0", got)
	}
}

func TestDecodeSampleInt8NormalizesToMinusOneOne(t *testing.T) {
	buf := []byte{127}
	if got := decodeSample(DTypeInt8, buf, 0); math.Abs(float64(got-1)) > 1e-6 {
		t.Fatalf("decodeSample(int8, 127) = %v, want ~1", got)
	}
	buf = []byte{0x81} // -127
	if got := decodeSample(DTypeInt8, buf, 0); math.Abs(float64(got+1)) > 1e-6 {
		t.Fatalf("decodeSample(int8, -127) = %v, want ~-1", got)
	}
}

func TestDecodeSampleUint16(t *testing.T) {
	buf := make([]byte, 2)
	binary.LittleEndian.PutUint16(buf, 65535)
	if got := decodeSample(DTypeUint16, buf, 0); got != 1 {
		t.Fatalf("decodeSample(uint16, 65535) = %v, want 1", got)
	}
}

func TestDecodeSampleFloat32PassesThrough(t *testing.T) {
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, math.Float32bits(-3.5))
	if got := decodeSample(DTypeFloat32, buf, 0); got != -3.5 {
		t.Fatalf("decodeSample(float32, -3.5) = %v, want -3.5", got)
	}
}

func TestDecodeSampleFloat64PassesThrough(t *testing.T) {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, math.Float64bits(2.25))
	if got := decodeSample(DTypeFloat64, buf, 0); got != 2.25 {
		t.Fatalf("decodeSample(float64, 2.25) = %v, want 2.25", got)
	}
}
