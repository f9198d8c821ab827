// Package soft provides an in-process reference implementation of the
// compute abstraction. Buffers live in host memory and the fat-BVH
// kernel entry points are executed by native Go code over a worker pool.
// It backs the test suite and hosts without a usable GPU.
package soft

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/achilleasa/rigel/compute"
	"github.com/achilleasa/rigel/log"
)

type Device struct {
	logger  log.Logger
	spec    compute.DeviceSpec
	workers int
}

// Create a new software device.
func NewDevice() *Device {
	return &Device{
		logger: log.New("softDevice"),
		spec: compute.DeviceSpec{
			Name:   "software reference device",
			Vendor: "rigel",
			Type:   compute.CpuDevice,
			// Large enough that strategies never reject the device
			// for stack headroom.
			MaxAllocSize:           1 << 31,
			GlobalMemSize:          1 << 33,
			PreferredWorkGroupSize: 64,
		},
		workers: runtime.NumCPU(),
	}
}

// Implements compute.Device.
func (d *Device) Spec() compute.DeviceSpec {
	return d.spec
}

// Implements compute.Device.
func (d *Device) Platform() compute.Platform {
	return compute.PlatformSoftware
}

// Implements compute.Device. The source is not compiled; entry point
// names are matched against it when functions are created and dispatched
// to native implementations.
func (d *Device) CompileExecutable(source string, headers []string, options string) (compute.Executable, error) {
	if strings.TrimSpace(source) == "" {
		return nil, fmt.Errorf("soft device: empty kernel source")
	}
	return &executable{
		device: d,
		source: source,
	}, nil
}

// Implements compute.Device.
func (d *Device) DeleteExecutable(exe compute.Executable) error {
	if exe == nil {
		return nil
	}
	if e, ok := exe.(*executable); ok {
		e.source = ""
		return nil
	}
	return fmt.Errorf("soft device: executable belongs to another device")
}

// Implements compute.Device.
func (d *Device) CreateBuffer(size int, kind compute.BufferType, init []byte) (compute.Buffer, error) {
	if size < 0 {
		return nil, fmt.Errorf("soft device: invalid buffer size %d", size)
	}
	if len(init) > size {
		return nil, fmt.Errorf("soft device: init data length %d exceeds buffer size %d", len(init), size)
	}

	buf := &buffer{
		data: make([]byte, size),
		kind: kind,
	}
	copy(buf.data, init)
	return buf, nil
}

// Implements compute.Device.
func (d *Device) DeleteBuffer(buf compute.Buffer) error {
	if buf == nil {
		return nil
	}
	b, err := toBuffer(buf)
	if err != nil {
		return err
	}
	b.data = nil
	return nil
}

// Implements compute.Device. Host memory doubles as device memory so the
// mapped slice aliases the buffer contents directly.
func (d *Device) MapBuffer(buf compute.Buffer, queueidx int, offset, size int, kind compute.MapType) ([]byte, compute.Event, error) {
	b, err := toBuffer(buf)
	if err != nil {
		return nil, nil, err
	}
	if offset < 0 || size < 0 || offset+size > len(b.data) {
		return nil, nil, fmt.Errorf("soft device: map range [%d, %d) out of bounds for buffer of size %d", offset, offset+size, len(b.data))
	}
	return b.data[offset : offset+size], doneEvent{}, nil
}

// Implements compute.Device.
func (d *Device) UnmapBuffer(buf compute.Buffer, queueidx int, mapped []byte) (compute.Event, error) {
	if _, err := toBuffer(buf); err != nil {
		return nil, err
	}
	return doneEvent{}, nil
}

// Implements compute.Device.
func (d *Device) ReadBuffer(buf compute.Buffer, queueidx int, offset int, dst []byte) (compute.Event, error) {
	b, err := toBuffer(buf)
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset+len(dst) > len(b.data) {
		return nil, fmt.Errorf("soft device: read range [%d, %d) out of bounds for buffer of size %d", offset, offset+len(dst), len(b.data))
	}
	copy(dst, b.data[offset:])
	return doneEvent{}, nil
}

// Implements compute.Device.
func (d *Device) WriteBuffer(buf compute.Buffer, queueidx int, offset int, src []byte) (compute.Event, error) {
	b, err := toBuffer(buf)
	if err != nil {
		return nil, err
	}
	if offset < 0 || offset+len(src) > len(b.data) {
		return nil, fmt.Errorf("soft device: write range [%d, %d) out of bounds for buffer of size %d", offset, offset+len(src), len(b.data))
	}
	copy(b.data[offset:], src)
	return doneEvent{}, nil
}

// Implements compute.Device. Kernels run synchronously and the returned
// event is already complete with no error. Argument errors are returned
// directly; a panicking lane is not recovered.
func (d *Device) Execute(fn compute.Function, queueidx int, globalsize, localsize int, wait compute.Event) (compute.Event, error) {
	f, ok := fn.(*function)
	if !ok || f.exe.device != d {
		return nil, fmt.Errorf("soft device: function %q belongs to another device", fn.Name())
	}

	if wait != nil {
		if err := wait.Wait(); err != nil {
			return nil, err
		}
	}

	if err := f.run(globalsize); err != nil {
		return nil, err
	}
	return doneEvent{}, nil
}

// Implements compute.Device. Execution is synchronous so there is never
// outstanding work to drain.
func (d *Device) Finish(queueidx int) error {
	return nil
}

// Implements compute.Device.
func (d *Device) Close() error {
	return nil
}

// Split a 1D range into work-group sized chunks executed by the worker
// pool.
func (d *Device) dispatch(globalsize int, fn func(gid int)) {
	groupSize := d.spec.PreferredWorkGroupSize
	numGroups := (globalsize + groupSize - 1) / groupSize
	if numGroups == 0 {
		return
	}

	workers := d.workers
	if workers > numGroups {
		workers = numGroups
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(worker int) {
			defer wg.Done()
			for group := worker; group < numGroups; group += workers {
				start := group * groupSize
				end := start + groupSize
				if end > globalsize {
					end = globalsize
				}
				for gid := start; gid < end; gid++ {
					fn(gid)
				}
			}
		}(w)
	}
	wg.Wait()
}

// A host-memory backed device buffer.
type buffer struct {
	data []byte
	kind compute.BufferType
}

// Implements compute.Buffer.
func (b *buffer) Size() int {
	return len(b.data)
}

func toBuffer(buf compute.Buffer) (*buffer, error) {
	b, ok := buf.(*buffer)
	if !ok {
		return nil, fmt.Errorf("soft device: buffer belongs to another device")
	}
	return b, nil
}

// An already-completed event. All soft device operations finish before
// returning.
type doneEvent struct {
	err error
}

// Implements compute.Event.
func (e doneEvent) Wait() error {
	return e.err
}
