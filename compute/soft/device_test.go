package soft

import (
	"bytes"
	"testing"

	"github.com/achilleasa/rigel/compute"
	"github.com/achilleasa/rigel/kernels"
)

func TestBufferLifecycle(t *testing.T) {
	dev := NewDevice()
	defer dev.Close()

	buf, err := dev.CreateBuffer(128, compute.BufferRead, nil)
	if err != nil {
		t.Fatal(err)
	}
	if buf.Size() != 128 {
		t.Fatalf("expected buffer size to be 128; got %d", buf.Size())
	}

	if err = dev.DeleteBuffer(buf); err != nil {
		t.Fatal(err)
	}
	if err = dev.DeleteBuffer(nil); err != nil {
		t.Fatal(err)
	}
}

func TestBufferInitData(t *testing.T) {
	dev := NewDevice()
	defer dev.Close()

	init := []byte{1, 2, 3, 4}
	buf, err := dev.CreateBuffer(8, compute.BufferRead, init)
	if err != nil {
		t.Fatal(err)
	}

	out := make([]byte, 8)
	if _, err = dev.ReadBuffer(buf, 0, 0, out); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out[:4], init) || !bytes.Equal(out[4:], []byte{0, 0, 0, 0}) {
		t.Fatalf("unexpected buffer contents: %v", out)
	}

	if _, err = dev.CreateBuffer(2, compute.BufferRead, init); err == nil {
		t.Fatal("expected oversized init data to be rejected")
	}
}

func TestBufferReadWrite(t *testing.T) {
	dev := NewDevice()
	defer dev.Close()

	buf, err := dev.CreateBuffer(16, compute.BufferWrite, nil)
	if err != nil {
		t.Fatal(err)
	}

	if _, err = dev.WriteBuffer(buf, 0, 4, []byte{9, 8, 7}); err != nil {
		t.Fatal(err)
	}

	out := make([]byte, 3)
	if _, err = dev.ReadBuffer(buf, 0, 4, out); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, []byte{9, 8, 7}) {
		t.Fatalf("unexpected read back: %v", out)
	}

	if _, err = dev.ReadBuffer(buf, 0, 15, out); err == nil {
		t.Fatal("expected out of bounds read to be rejected")
	}
}

func TestMapAliasesBuffer(t *testing.T) {
	dev := NewDevice()
	defer dev.Close()

	buf, err := dev.CreateBuffer(16, compute.BufferRead, nil)
	if err != nil {
		t.Fatal(err)
	}

	data, ev, err := dev.MapBuffer(buf, 0, 4, 8, compute.MapWrite)
	if err != nil {
		t.Fatal(err)
	}
	if err = ev.Wait(); err != nil {
		t.Fatal(err)
	}
	if len(data) != 8 {
		t.Fatalf("expected mapped window of 8 bytes; got %d", len(data))
	}

	data[0] = 42
	if ev, err = dev.UnmapBuffer(buf, 0, data); err != nil {
		t.Fatal(err)
	}
	if err = ev.Wait(); err != nil {
		t.Fatal(err)
	}

	out := make([]byte, 1)
	if _, err = dev.ReadBuffer(buf, 0, 4, out); err != nil {
		t.Fatal(err)
	}
	if out[0] != 42 {
		t.Fatalf("expected mapped write to land at offset 4; got %d", out[0])
	}
}

func TestCompileAndFunctionLookup(t *testing.T) {
	dev := NewDevice()
	defer dev.Close()

	if _, err := dev.CompileExecutable("", nil, ""); err == nil {
		t.Fatal("expected empty source to be rejected")
	}

	exe, err := dev.CompileExecutable(kernels.FatBvhOpenCL(), nil, "")
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"IntersectClosest", "IntersectAny", "IntersectClosestRC", "IntersectAnyRC"} {
		fn, err := exe.CreateFunction(name)
		if err != nil {
			t.Fatalf("expected %s to resolve: %v", name, err)
		}
		if fn.Name() != name {
			t.Fatalf("expected function name %s; got %s", name, fn.Name())
		}
	}

	if _, err = exe.CreateFunction("Shade"); err == nil {
		t.Fatal("expected unknown entry point to be rejected")
	}
}

func TestExecuteRejectsUnboundArgs(t *testing.T) {
	dev := NewDevice()
	defer dev.Close()

	exe, err := dev.CompileExecutable(kernels.FatBvhOpenCL(), nil, "")
	if err != nil {
		t.Fatal(err)
	}
	fn, err := exe.CreateFunction("IntersectClosest")
	if err != nil {
		t.Fatal(err)
	}

	if _, err = dev.Execute(fn, 0, 64, 64, nil); err == nil {
		t.Fatal("expected dispatch with unbound args to fail")
	}
}

func TestSetArgTypes(t *testing.T) {
	dev := NewDevice()
	defer dev.Close()

	exe, err := dev.CompileExecutable(kernels.FatBvhOpenCL(), nil, "")
	if err != nil {
		t.Fatal(err)
	}
	fn, err := exe.CreateFunction("IntersectAny")
	if err != nil {
		t.Fatal(err)
	}

	buf, err := dev.CreateBuffer(4, compute.BufferRead, nil)
	if err != nil {
		t.Fatal(err)
	}

	if err = fn.SetArg(0, buf); err != nil {
		t.Fatal(err)
	}
	if err = fn.SetArg(5, int32(0)); err != nil {
		t.Fatal(err)
	}
	if err = fn.SetArg(1, "bogus"); err == nil {
		t.Fatal("expected string arg to be rejected")
	}
}
