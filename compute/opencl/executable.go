package opencl

import (
	"fmt"
	"unsafe"

	"github.com/achilleasa/gopencl/v1.2/cl"
	"github.com/achilleasa/rigel/compute"
)

// A built opencl program.
type executable struct {
	device  *Device
	program cl.Program
}

// Implements compute.Executable.
func (e *executable) CreateFunction(name string) (compute.Function, error) {
	var errCode cl.ErrorCode

	kernelHandle := cl.CreateKernel(e.program, cl.Str(name+"\x00"), (*int32)(&errCode))
	if errCode != cl.SUCCESS {
		return nil, fmt.Errorf("opencl device (%s): could not load kernel %s (error: %s; code %d)", e.device.Name, name, ErrorName(errCode), errCode)
	}

	return &function{
		exe:          e,
		kernelHandle: kernelHandle,
		name:         name,
	}, nil
}

// Implements compute.Executable.
func (e *executable) DeleteFunction(fn compute.Function) error {
	if fn == nil {
		return nil
	}
	k, ok := fn.(*function)
	if !ok || k.exe != e {
		return fmt.Errorf("opencl device (%s): function belongs to another executable", e.device.Name)
	}
	if k.kernelHandle != nil {
		cl.ReleaseKernel(k.kernelHandle)
		k.kernelHandle = nil
	}
	return nil
}

// A wrapper around opencl kernel handles.
type function struct {
	exe          *executable
	kernelHandle cl.Kernel
	name         string
}

// Implements compute.Function.
func (k *function) Name() string {
	return k.name
}

// Implements compute.Function.
func (k *function) SetArg(index int, arg interface{}) error {
	var errCode cl.ErrorCode

	switch val := arg.(type) {
	case compute.Buffer:
		b, err := k.exe.device.toBuffer(val)
		if err != nil {
			return err
		}
		handle := b.bufHandle
		errCode = cl.SetKernelArg(k.kernelHandle, uint32(index), 8, unsafe.Pointer(&handle))
	case int32:
		errCode = cl.SetKernelArg(k.kernelHandle, uint32(index), 4, unsafe.Pointer(&val))
	case uint32:
		errCode = cl.SetKernelArg(k.kernelHandle, uint32(index), 4, unsafe.Pointer(&val))
	case float32:
		errCode = cl.SetKernelArg(k.kernelHandle, uint32(index), 4, unsafe.Pointer(&val))
	default:
		return fmt.Errorf("opencl device (%s): could not set arg %d for kernel %s; unsupported arg type %T", k.exe.device.Name, index, k.name, arg)
	}

	if errCode != cl.SUCCESS {
		return fmt.Errorf("opencl device (%s): could not set arg %d for kernel %s (error: %s; code %d)", k.exe.device.Name, index, k.name, ErrorName(errCode), errCode)
	}

	return nil
}
