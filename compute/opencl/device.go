// Package opencl implements the compute abstraction on top of the
// gopencl bindings. One Device wraps an opencl device with a context and
// a set of command queues.
package opencl

import (
	"fmt"
	"unsafe"

	"github.com/achilleasa/gopencl/v1.2/cl"
	"github.com/achilleasa/rigel/compute"
	"github.com/achilleasa/rigel/log"
)

type Device struct {
	logger log.Logger

	// Populated by device enumeration.
	Name string
	Id   cl.DeviceId
	Type compute.DeviceType

	compUnits  uint32
	clockSpeed uint32

	// Speed estimate in GFlops.
	Speed uint32

	spec compute.DeviceSpec

	// Opencl handles; allocated when the device is initialized.
	ctx    *cl.Context
	queues []cl.CommandQueue
}

// Implements Stringer.
func (d *Device) String() string {
	return fmt.Sprintf(
		"Name: %s\nType: %s\nSpecs: %d computation units, %d Mhz clock, %d GFlops approximate speed",
		d.Name,
		d.Type.String(),
		d.compUnits,
		d.clockSpeed,
		d.Speed,
	)
}

// Initialize the device creating its context and numQueues command
// queues. Calling Init on an initialized device is a no-op.
func (d *Device) Init(numQueues int) error {
	var errCode cl.ErrorCode

	if d.ctx != nil {
		return nil
	}
	if numQueues < 1 {
		numQueues = 1
	}

	d.ctx = cl.CreateContext(nil, 1, &d.Id, nil, nil, (*int32)(&errCode))
	if errCode != cl.SUCCESS {
		defer d.Close()
		return fmt.Errorf("opencl device (%s): could not create opencl context (error: %s; code %d)", d.Name, ErrorName(errCode), errCode)
	}

	d.queues = make([]cl.CommandQueue, numQueues)
	for i := 0; i < numQueues; i++ {
		d.queues[i] = cl.CreateCommandQueue(*d.ctx, d.Id, 0, (*int32)(&errCode))
		if errCode != cl.SUCCESS {
			defer d.Close()
			return fmt.Errorf("opencl device (%s): could not create opencl command queue (error: %s; code %d)", d.Name, ErrorName(errCode), errCode)
		}
	}

	return d.querySpec()
}

// Implements compute.Device.
func (d *Device) Spec() compute.DeviceSpec {
	return d.spec
}

// Implements compute.Device.
func (d *Device) Platform() compute.Platform {
	return compute.PlatformOpenCL
}

// Implements compute.Device. The headers are prepended to the source
// before compilation.
func (d *Device) CompileExecutable(source string, headers []string, options string) (compute.Executable, error) {
	var errCode cl.ErrorCode

	full := ""
	for _, hdr := range headers {
		full += hdr + "\n"
	}
	full += source

	progSrc := cl.Str(full + "\x00")
	program := cl.CreateProgramWithSource(*d.ctx, 1, &progSrc, nil, (*int32)(&errCode))
	if errCode != cl.SUCCESS {
		return nil, fmt.Errorf("opencl device (%s): could not create program (error: %s; code %d)", d.Name, ErrorName(errCode), errCode)
	}

	errCode = cl.BuildProgram(program, 1, &d.Id, cl.Str(options+"\x00"), nil, nil)
	if errCode != cl.SUCCESS {
		var dataLen uint64
		data := make([]byte, 120000)

		cl.GetProgramBuildInfo(program, d.Id, cl.PROGRAM_BUILD_LOG, uint64(len(data)), unsafe.Pointer(&data[0]), &dataLen)
		cl.ReleaseProgram(program)
		return nil, fmt.Errorf("opencl device (%s): could not build kernels (error: %s; code %d):\n%s", d.Name, ErrorName(errCode), errCode, string(data[0:dataLen-1]))
	}

	return &executable{
		device:  d,
		program: program,
	}, nil
}

// Implements compute.Device.
func (d *Device) DeleteExecutable(exe compute.Executable) error {
	if exe == nil {
		return nil
	}
	e, ok := exe.(*executable)
	if !ok {
		return fmt.Errorf("opencl device (%s): executable belongs to another device", d.Name)
	}
	if e.program != nil {
		cl.ReleaseProgram(e.program)
		e.program = nil
	}
	return nil
}

// Implements compute.Device.
func (d *Device) Execute(fn compute.Function, queueidx int, globalsize, localsize int, wait compute.Event) (compute.Event, error) {
	k, ok := fn.(*function)
	if !ok {
		return nil, fmt.Errorf("opencl device (%s): function belongs to another device", d.Name)
	}

	queue, err := d.queue(queueidx)
	if err != nil {
		return nil, err
	}

	// Dependencies are honored by draining them host-side before the
	// dispatch is enqueued; queue order covers the common same-queue case.
	if wait != nil {
		if err = wait.Wait(); err != nil {
			return nil, err
		}
	}

	global := uint64(globalsize)
	local := uint64(localsize)
	var localPtr *uint64
	if localsize > 0 {
		localPtr = &local
	}

	errCode := cl.EnqueueNDRangeKernel(queue, k.kernelHandle, 1, nil, &global, localPtr, 0, nil, nil)
	if errCode != cl.SUCCESS {
		return nil, fmt.Errorf("opencl device (%s): unable to execute kernel %s (error: %s; code %d)", d.Name, k.name, ErrorName(errCode), errCode)
	}

	return &queueEvent{device: d, queueidx: queueidx}, nil
}

// Implements compute.Device.
func (d *Device) Finish(queueidx int) error {
	queue, err := d.queue(queueidx)
	if err != nil {
		return err
	}
	errCode := cl.Finish(queue)
	if errCode != cl.SUCCESS {
		return fmt.Errorf("opencl device (%s): queue %d did not drain (error: %s; code %d)", d.Name, queueidx, ErrorName(errCode), errCode)
	}
	return nil
}

// Implements compute.Device.
func (d *Device) Close() error {
	for i, queue := range d.queues {
		if queue != nil {
			cl.ReleaseCommandQueue(queue)
			d.queues[i] = nil
		}
	}
	d.queues = nil

	if d.ctx != nil {
		cl.ReleaseContext(d.ctx)
		d.ctx = nil
	}

	return nil
}

func (d *Device) queue(queueidx int) (cl.CommandQueue, error) {
	if queueidx < 0 || queueidx >= len(d.queues) {
		return nil, fmt.Errorf("opencl device (%s): queue index %d out of range [0, %d)", d.Name, queueidx, len(d.queues))
	}
	return d.queues[queueidx], nil
}

// Query allocation limits and detect device speed.
func (d *Device) querySpec() error {
	var maxAlloc, globalMem uint64

	errCode := cl.GetDeviceInfo(d.Id, cl.DEVICE_MAX_MEM_ALLOC_SIZE, 8, unsafe.Pointer(&maxAlloc), nil)
	if errCode != cl.SUCCESS {
		return fmt.Errorf("opencl device (%s): could not query MAX_MEM_ALLOC_SIZE (error: %s; code %d)", d.Name, ErrorName(errCode), errCode)
	}
	errCode = cl.GetDeviceInfo(d.Id, cl.DEVICE_GLOBAL_MEM_SIZE, 8, unsafe.Pointer(&globalMem), nil)
	if errCode != cl.SUCCESS {
		return fmt.Errorf("opencl device (%s): could not query GLOBAL_MEM_SIZE (error: %s; code %d)", d.Name, ErrorName(errCode), errCode)
	}
	errCode = cl.GetDeviceInfo(d.Id, cl.DEVICE_MAX_COMPUTE_UNITS, 4, unsafe.Pointer(&d.compUnits), nil)
	if errCode != cl.SUCCESS {
		return fmt.Errorf("opencl device (%s): could not query MAX_COMPUTE_UNITS (error: %s; code %d)", d.Name, ErrorName(errCode), errCode)
	}
	errCode = cl.GetDeviceInfo(d.Id, cl.DEVICE_MAX_CLOCK_FREQUENCY, 4, unsafe.Pointer(&d.clockSpeed), nil)
	if errCode != cl.SUCCESS {
		return fmt.Errorf("opencl device (%s): could not query MAX_CLOCK_FREQUENCY (error: %s; code %d)", d.Name, ErrorName(errCode), errCode)
	}

	// Theoretical speed: compute units * 2 ops/cycle * clock speed.
	d.Speed = d.compUnits * 2 * d.clockSpeed / 1000

	d.spec = compute.DeviceSpec{
		Name:                   d.Name,
		Type:                   d.Type,
		MaxAllocSize:           maxAlloc,
		GlobalMemSize:          globalMem,
		PreferredWorkGroupSize: 64,
	}

	return nil
}

// An event tied to a command queue. Waiting drains the queue; the
// gopencl bindings do not surface per-command event objects.
type queueEvent struct {
	device   *Device
	queueidx int
}

// Implements compute.Event.
func (e *queueEvent) Wait() error {
	return e.device.Finish(e.queueidx)
}

// Return a textual description of an opencl error code.
func ErrorName(errCode cl.ErrorCode) string {
	switch errCode {
	case 0:
		return "SUCCESS"
	case -1:
		return "DEVICE_NOT_FOUND"
	case -2:
		return "DEVICE_NOT_AVAILABLE"
	case -3:
		return "COMPILER_NOT_AVAILABLE"
	case -4:
		return "MEM_OBJECT_ALLOCATION_FAILURE"
	case -5:
		return "OUT_OF_RESOURCES"
	case -6:
		return "OUT_OF_HOST_MEMORY"
	case -10:
		return "IMAGE_FORMAT_NOT_SUPPORTED"
	case -11:
		return "BUILD_PROGRAM_FAILURE"
	case -12:
		return "MAP_FAILURE"
	case -30:
		return "INVALID_VALUE"
	case -33:
		return "INVALID_DEVICE"
	case -34:
		return "INVALID_CONTEXT"
	case -36:
		return "INVALID_COMMAND_QUEUE"
	case -38:
		return "INVALID_MEM_OBJECT"
	case -44:
		return "INVALID_PROGRAM"
	case -45:
		return "INVALID_PROGRAM_EXECUTABLE"
	case -46:
		return "INVALID_KERNEL_NAME"
	case -48:
		return "INVALID_KERNEL"
	case -49:
		return "INVALID_ARG_INDEX"
	case -50:
		return "INVALID_ARG_VALUE"
	case -51:
		return "INVALID_ARG_SIZE"
	case -52:
		return "INVALID_KERNEL_ARGS"
	case -54:
		return "INVALID_WORK_GROUP_SIZE"
	case -61:
		return "INVALID_BUFFER_SIZE"
	case -63:
		return "INVALID_GLOBAL_WORK_SIZE"
	default:
		return fmt.Sprintf("unknown error code %d", errCode)
	}
}
