package soft

import (
	"fmt"
	"strings"

	"github.com/achilleasa/rigel/compute"
)

// The fat-BVH entry points the software device can execute natively.
const (
	entryIsect           = "IntersectClosest"
	entryOcclude         = "IntersectAny"
	entryIsectIndirect   = "IntersectClosestRC"
	entryOccludeIndirect = "IntersectAnyRC"
)

// A "compiled" program. The source is retained only to validate entry
// point lookups; dispatch goes to the native kernel implementations.
type executable struct {
	device *Device
	source string
}

// Implements compute.Executable.
func (e *executable) CreateFunction(name string) (compute.Function, error) {
	switch name {
	case entryIsect, entryOcclude, entryIsectIndirect, entryOccludeIndirect:
	default:
		return nil, fmt.Errorf("soft device: no native implementation for kernel %q", name)
	}

	if !strings.Contains(e.source, name) {
		return nil, fmt.Errorf("soft device: kernel %q not present in program source", name)
	}

	return &function{
		exe:  e,
		name: name,
		args: make(map[int]interface{}),
	}, nil
}

// Implements compute.Executable.
func (e *executable) DeleteFunction(fn compute.Function) error {
	if fn == nil {
		return nil
	}
	if f, ok := fn.(*function); ok {
		f.args = nil
		return nil
	}
	return fmt.Errorf("soft device: function belongs to another executable")
}

type function struct {
	exe  *executable
	name string
	args map[int]interface{}
}

// Implements compute.Function.
func (f *function) Name() string {
	return f.name
}

// Implements compute.Function.
func (f *function) SetArg(index int, arg interface{}) error {
	switch arg.(type) {
	case *buffer, int32, uint32, float32:
		f.args[index] = arg
		return nil
	case compute.Buffer:
		return fmt.Errorf("soft device: arg %d of kernel %s is a buffer from another device", index, f.name)
	}
	return fmt.Errorf("soft device: unsupported arg type %T at index %d of kernel %s", arg, index, f.name)
}

// Execute the kernel over a 1D range.
func (f *function) run(globalsize int) error {
	args, err := f.decodeArgs()
	if err != nil {
		return err
	}

	dev := f.exe.device
	switch f.name {
	case entryIsect, entryIsectIndirect:
		dev.dispatch(globalsize, func(gid int) {
			if int32(gid) < args.numRays() {
				traverseClosest(args, gid)
			}
		})
	case entryOcclude, entryOccludeIndirect:
		dev.dispatch(globalsize, func(gid int) {
			if int32(gid) < args.numRays() {
				traverseAny(args, gid)
			}
		})
	}

	return nil
}

// Decode the fixed fat-BVH argument list: nodes, vertices, faces,
// shapes, rays, offset, ray count (scalar or buffer), hits, stack.
func (f *function) decodeArgs() (*kernelArgs, error) {
	args := &kernelArgs{}

	nodesBuf, err := f.bufferArg(0, "nodes")
	if err != nil {
		return nil, err
	}
	args.nodes = fatNodeView(nodesBuf.data)

	vertexBuf, err := f.bufferArg(1, "vertices")
	if err != nil {
		return nil, err
	}
	args.vertices = vec4View(vertexBuf.data)

	faceBuf, err := f.bufferArg(2, "faces")
	if err != nil {
		return nil, err
	}
	args.faces = faceView(faceBuf.data)

	shapeBuf, err := f.bufferArg(3, "shapes")
	if err != nil {
		return nil, err
	}
	args.shapes = shapeView(shapeBuf.data)

	rayBuf, err := f.bufferArg(4, "rays")
	if err != nil {
		return nil, err
	}
	args.rays = rayView(rayBuf.data)

	offset, bound := f.args[5].(int32)
	if !bound {
		return nil, fmt.Errorf("soft device: kernel %s arg 5 (offset) is not an int32 scalar", f.name)
	}
	args.offset = offset

	// The direct queries pass the ray count by value, the indirect ones
	// as a single-int device buffer read at dispatch time.
	switch raycount := f.args[6].(type) {
	case int32:
		args.numRays = func() int32 { return raycount }
	case *buffer:
		counts := int32View(raycount.data)
		args.numRays = func() int32 { return counts[0] }
	default:
		return nil, fmt.Errorf("soft device: kernel %s arg 6 (raycount) has unexpected type %T", f.name, f.args[6])
	}

	hitBuf, err := f.bufferArg(7, "hits")
	if err != nil {
		return nil, err
	}
	switch f.name {
	case entryIsect, entryIsectIndirect:
		args.isect = intersectionView(hitBuf.data)
	case entryOcclude, entryOccludeIndirect:
		args.occluded = int32View(hitBuf.data)
	}

	stackBuf, err := f.bufferArg(8, "stack")
	if err != nil {
		return nil, err
	}
	args.stack = int32View(stackBuf.data)

	return args, nil
}

func (f *function) bufferArg(index int, name string) (*buffer, error) {
	buf, ok := f.args[index].(*buffer)
	if !ok {
		return nil, fmt.Errorf("soft device: kernel %s arg %d (%s) is not a buffer", f.name, index, name)
	}
	return buf, nil
}
