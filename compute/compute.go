// Package compute defines the platform-neutral abstraction consumed by the
// intersection strategies. Concrete implementations live in the soft and
// opencl sub-packages.
package compute

import "fmt"

type Platform uint8

// Supported compute platforms.
const (
	PlatformSoftware Platform = iota
	PlatformOpenCL
	PlatformVulkan
)

// Implements Stringer.
func (p Platform) String() string {
	switch p {
	case PlatformSoftware:
		return "Software"
	case PlatformOpenCL:
		return "OpenCL"
	case PlatformVulkan:
		return "Vulkan"
	}
	panic(fmt.Sprintf("compute: unsupported platform: %d", p))
}

type DeviceType uint8

// Supported device types.
const (
	CpuDevice   DeviceType = 1 << iota
	GpuDevice              = 1 << iota
	OtherDevice            = 1 << iota
	AllDevices             = 0xFF
)

// Implements Stringer.
func (dt DeviceType) String() string {
	switch dt {
	case CpuDevice:
		return "CPU"
	case GpuDevice:
		return "GPU"
	case OtherDevice:
		return "Other"
	}
	panic("compute: unsupported device type")
}

type BufferType uint8

// Buffer access hints.
const (
	BufferRead BufferType = iota
	BufferWrite
	BufferReadWrite
)

type MapType uint8

// Buffer mapping modes.
const (
	MapRead MapType = iota
	MapWrite
)

// Static device capabilities.
type DeviceSpec struct {
	Name   string
	Vendor string
	Type   DeviceType

	// Maximum size of a single buffer allocation in bytes.
	MaxAllocSize uint64

	// Total device memory in bytes.
	GlobalMemSize uint64

	// Preferred work group size for 1D dispatches.
	PreferredWorkGroupSize int
}

// A device memory allocation.
type Buffer interface {
	// Get the allocated size in bytes.
	Size() int
}

// An asynchronous completion handle.
type Event interface {
	// Block until the associated operation has completed.
	Wait() error
}

// A compiled kernel entry point with bindable arguments.
type Function interface {
	// Get the kernel entry point name.
	Name() string

	// Bind the argument at the given index. Accepts a Buffer or an
	// int32/uint32/float32 scalar passed by value.
	SetArg(index int, arg interface{}) error
}

// A compiled program exposing one or more kernel entry points.
type Executable interface {
	CreateFunction(name string) (Function, error)
	DeleteFunction(fn Function) error
}

// The Device interface is implemented by all compute backends.
type Device interface {
	// Get static device capabilities.
	Spec() DeviceSpec

	// Get the platform this device belongs to.
	Platform() Platform

	// Compile a program from source. The headers hold source text; the
	// opencl backend prepends them to the program source.
	CompileExecutable(source string, headers []string, options string) (Executable, error)

	// Release a compiled program. Functions created from it must be
	// deleted first.
	DeleteExecutable(exe Executable) error

	// Allocate a device buffer. If init is non-nil its contents are
	// uploaded to the new buffer which must be at least len(init) bytes.
	CreateBuffer(size int, kind BufferType, init []byte) (Buffer, error)

	// Release a buffer. Passing nil is a no-op.
	DeleteBuffer(buf Buffer) error

	// Map a buffer region into host memory. The returned slice stays
	// valid until the matching UnmapBuffer call.
	MapBuffer(buf Buffer, queueidx int, offset, size int, kind MapType) ([]byte, Event, error)

	// Unmap a previously mapped region committing any host writes.
	UnmapBuffer(buf Buffer, queueidx int, mapped []byte) (Event, error)

	// Copy a buffer region into the supplied host slice.
	ReadBuffer(buf Buffer, queueidx int, offset int, dst []byte) (Event, error)

	// Copy host data into a buffer region.
	WriteBuffer(buf Buffer, queueidx int, offset int, src []byte) (Event, error)

	// Launch a kernel over a 1D range. If wait is non-nil the dispatch
	// is ordered after it.
	Execute(fn Function, queueidx int, globalsize, localsize int, wait Event) (Event, error)

	// Block until all submitted work on the queue has completed.
	Finish(queueidx int) error

	// Release the device and all resources created through it.
	Close() error
}
