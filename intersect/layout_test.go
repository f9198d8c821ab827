package intersect

import (
	"testing"
	"unsafe"
)

// The device ABI depends on these exact record sizes; each must also be
// a multiple of 16 bytes for aligned device access.
func TestDeviceRecordSizes(t *testing.T) {
	type spec struct {
		name string
		got  uintptr
		exp  int
	}
	specs := []spec{
		{"Ray", unsafe.Sizeof(Ray{}), RaySize},
		{"Intersection", unsafe.Sizeof(Intersection{}), IntersectionSize},
		{"FaceData", unsafe.Sizeof(FaceData{}), FaceDataSize},
		{"ShapeData", unsafe.Sizeof(ShapeData{}), ShapeDataSize},
	}

	for _, s := range specs {
		if int(s.got) != s.exp {
			t.Fatalf("expected %s record to be %d bytes; got %d", s.name, s.exp, s.got)
		}
		if s.exp%16 != 0 {
			t.Fatalf("%s record size %d is not a multiple of 16", s.name, s.exp)
		}
	}
}

func TestNewRayDefaults(t *testing.T) {
	r := NewRay([3]float32{1, 2, 3}, [3]float32{0, 0, -1}, 50)

	if !r.Active() {
		t.Fatal("expected new rays to be active")
	}
	if r.Mask() != -1 {
		t.Fatalf("expected all visibility bits raised; got %#x", r.Mask())
	}
	if r.Origin[3] != 50 {
		t.Fatalf("expected max distance in origin w; got %f", r.Origin[3])
	}
}

func TestRoundUpWorkSize(t *testing.T) {
	type spec struct {
		numrays int
		exp     int
	}
	specs := []spec{
		{1, 64},
		{64, 64},
		{65, 128},
		{1024, 1024},
	}

	for index, s := range specs {
		if got := roundUpWorkSize(s.numrays); got != s.exp {
			t.Fatalf("[spec %d] expected work size %d; got %d", index, s.exp, got)
		}
	}
}
