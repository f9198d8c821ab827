package opencl

import (
	"fmt"
	"unsafe"

	"github.com/achilleasa/gopencl/v1.2/cl"
	"github.com/achilleasa/rigel/compute"
)

// A device buffer. Mapping is emulated host-side: MapBuffer hands out a
// shadow slice that is read from or flushed back to the device with
// blocking transfers.
type buffer struct {
	device    *Device
	bufHandle cl.Mem
	size      int

	// Active mapping, nil when unmapped.
	mapped    []byte
	mapOffset int
	mapKind   compute.MapType
	mapQueue  int
}

// Implements compute.Buffer.
func (b *buffer) Size() int {
	return b.size
}

// Implements compute.Device.
func (d *Device) CreateBuffer(size int, kind compute.BufferType, init []byte) (compute.Buffer, error) {
	var errCode cl.ErrorCode

	if size < 0 {
		return nil, fmt.Errorf("opencl device (%s): invalid buffer size %d", d.Name, size)
	}
	if len(init) > size {
		return nil, fmt.Errorf("opencl device (%s): init data length %d exceeds buffer size %d", d.Name, len(init), size)
	}

	// Opencl rejects zero-sized allocations; back empty buffers with a
	// single byte and report size 0.
	allocSize := size
	if allocSize == 0 {
		allocSize = 1
	}

	handle := cl.CreateBuffer(*d.ctx, memFlags(kind), cl.MemFlags(allocSize), nil, (*int32)(&errCode))
	if errCode != cl.SUCCESS {
		return nil, fmt.Errorf("opencl device (%s): could not allocate buffer of size %d (error: %s; code %d)", d.Name, size, ErrorName(errCode), errCode)
	}

	buf := &buffer{
		device:    d,
		bufHandle: handle,
		size:      size,
	}

	if len(init) > 0 {
		if _, err := d.WriteBuffer(buf, 0, 0, init); err != nil {
			d.DeleteBuffer(buf)
			return nil, err
		}
	}

	return buf, nil
}

// Implements compute.Device.
func (d *Device) DeleteBuffer(buf compute.Buffer) error {
	if buf == nil {
		return nil
	}
	b, err := d.toBuffer(buf)
	if err != nil {
		return err
	}
	if b.bufHandle != nil {
		cl.ReleaseMemObject(b.bufHandle)
		b.bufHandle = nil
	}
	b.mapped = nil
	return nil
}

// Implements compute.Device.
func (d *Device) MapBuffer(buf compute.Buffer, queueidx int, offset, size int, kind compute.MapType) ([]byte, compute.Event, error) {
	b, err := d.toBuffer(buf)
	if err != nil {
		return nil, nil, err
	}
	if b.mapped != nil {
		return nil, nil, fmt.Errorf("opencl device (%s): buffer is already mapped", d.Name)
	}
	if offset < 0 || size < 0 || offset+size > b.size {
		return nil, nil, fmt.Errorf("opencl device (%s): map range [%d, %d) out of bounds for buffer of size %d", d.Name, offset, offset+size, b.size)
	}

	shadow := make([]byte, size)
	if kind == compute.MapRead && size > 0 {
		if _, err = d.ReadBuffer(buf, queueidx, offset, shadow); err != nil {
			return nil, nil, err
		}
	}

	b.mapped = shadow
	b.mapOffset = offset
	b.mapKind = kind
	b.mapQueue = queueidx

	return shadow, &queueEvent{device: d, queueidx: queueidx}, nil
}

// Implements compute.Device.
func (d *Device) UnmapBuffer(buf compute.Buffer, queueidx int, mapped []byte) (compute.Event, error) {
	b, err := d.toBuffer(buf)
	if err != nil {
		return nil, err
	}
	if b.mapped == nil {
		return nil, fmt.Errorf("opencl device (%s): buffer is not mapped", d.Name)
	}

	if b.mapKind == compute.MapWrite && len(b.mapped) > 0 {
		if _, err = d.WriteBuffer(buf, b.mapQueue, b.mapOffset, b.mapped); err != nil {
			return nil, err
		}
	}

	b.mapped = nil
	return &queueEvent{device: d, queueidx: queueidx}, nil
}

// Implements compute.Device.
func (d *Device) ReadBuffer(buf compute.Buffer, queueidx int, offset int, dst []byte) (compute.Event, error) {
	b, err := d.toBuffer(buf)
	if err != nil {
		return nil, err
	}
	if len(dst) == 0 {
		return &queueEvent{device: d, queueidx: queueidx}, nil
	}
	queue, err := d.queue(queueidx)
	if err != nil {
		return nil, err
	}

	errCode := cl.EnqueueReadBuffer(queue, b.bufHandle, cl.TRUE, uint64(offset), uint64(len(dst)), unsafe.Pointer(&dst[0]), 0, nil, nil)
	if errCode != cl.SUCCESS {
		return nil, fmt.Errorf("opencl device (%s): error copying device data to host buffer (error: %s; code %d)", d.Name, ErrorName(errCode), errCode)
	}

	return &queueEvent{device: d, queueidx: queueidx}, nil
}

// Implements compute.Device.
func (d *Device) WriteBuffer(buf compute.Buffer, queueidx int, offset int, src []byte) (compute.Event, error) {
	b, err := d.toBuffer(buf)
	if err != nil {
		return nil, err
	}
	if len(src) == 0 {
		return &queueEvent{device: d, queueidx: queueidx}, nil
	}
	queue, err := d.queue(queueidx)
	if err != nil {
		return nil, err
	}

	errCode := cl.EnqueueWriteBuffer(queue, b.bufHandle, cl.TRUE, uint64(offset), uint64(len(src)), unsafe.Pointer(&src[0]), 0, nil, nil)
	if errCode != cl.SUCCESS {
		return nil, fmt.Errorf("opencl device (%s): error copying host data to device buffer (error: %s; code %d)", d.Name, ErrorName(errCode), errCode)
	}

	return &queueEvent{device: d, queueidx: queueidx}, nil
}

func (d *Device) toBuffer(buf compute.Buffer) (*buffer, error) {
	b, ok := buf.(*buffer)
	if !ok || b.device != d {
		return nil, fmt.Errorf("opencl device (%s): buffer belongs to another device", d.Name)
	}
	return b, nil
}

func memFlags(kind compute.BufferType) cl.MemFlags {
	switch kind {
	case compute.BufferRead:
		return cl.MEM_READ_ONLY
	case compute.BufferWrite:
		return cl.MEM_READ_WRITE
	}
	return cl.MEM_READ_WRITE
}
