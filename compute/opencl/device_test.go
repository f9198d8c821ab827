package opencl

import (
	"bytes"
	"testing"

	"github.com/achilleasa/rigel/compute"
	"github.com/achilleasa/rigel/kernels"
)

func TestDeviceEnumeration(t *testing.T) {
	platforms, err := GetPlatformInfo()
	if err != nil {
		t.Fatal(err)
	}
	if len(platforms) == 0 {
		t.Skip("no opencl platforms available")
	}

	for _, p := range platforms {
		for _, d := range p.Devices {
			if d.Name == "" {
				t.Fatal("expected enumerated device to carry a name")
			}
			if d.Spec().MaxAllocSize == 0 {
				t.Fatalf("expected device %s to report an allocation limit", d.Name)
			}
		}
	}
}

func TestBufferRoundTrip(t *testing.T) {
	dev := selectTestDevice(t)
	defer dev.Close()

	data := make([]byte, 128)
	for i := range data {
		data[i] = byte(i)
	}

	buf, err := dev.CreateBuffer(len(data), compute.BufferRead, data)
	if err != nil {
		t.Fatal(err)
	}
	defer dev.DeleteBuffer(buf)

	out := make([]byte, len(data))
	if _, err = dev.ReadBuffer(buf, 0, 0, out); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Fatal("expected read back data to match uploaded data")
	}
}

func TestCompileFatBvhKernels(t *testing.T) {
	dev := selectTestDevice(t)
	defer dev.Close()

	exe, err := dev.CompileExecutable(kernels.FatBvhOpenCL(), nil, "")
	if err != nil {
		t.Fatal(err)
	}
	defer dev.DeleteExecutable(exe)

	for _, name := range []string{"IntersectClosest", "IntersectAny", "IntersectClosestRC", "IntersectAnyRC"} {
		fn, err := exe.CreateFunction(name)
		if err != nil {
			t.Fatalf("expected kernel %s to resolve: %v", name, err)
		}
		exe.DeleteFunction(fn)
	}
}

func selectTestDevice(t *testing.T) *Device {
	t.Helper()

	devices, err := SelectDevices(compute.AllDevices, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(devices) == 0 {
		t.Skip("no usable opencl devices available")
	}

	dev := devices[0]
	if err = dev.Init(1); err != nil {
		t.Fatal(err)
	}
	return dev
}
