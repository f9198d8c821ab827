package intersect

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/achilleasa/rigel/accel"
	"github.com/achilleasa/rigel/compute"
	"github.com/achilleasa/rigel/log"
	"github.com/achilleasa/rigel/scene"
	"github.com/achilleasa/rigel/types"
)

const (
	// Preferred work group size for Radeon-class devices.
	workGroupSize = 64

	// Per-ray traversal stack depth. The strategy rejects hierarchies
	// deeper than this bound.
	MaxStackDepth = 48

	// Largest ray batch the strategy sizes its initial stack for.
	MaxBatchSize = 1024 * 1024
)

// Kernel entry points bound at strategy construction.
const (
	kernelIsect           = "IntersectClosest"
	kernelOcclude         = "IntersectAny"
	kernelIsectIndirect   = "IntersectClosestRC"
	kernelOccludeIndirect = "IntersectAnyRC"
)

// A ray intersection strategy backed by a single unified world-space BVH
// with fat device nodes. All meshes and instances are flattened into one
// triangle stream; traversal needs only a small per-ray stack slice of a
// shared device stack buffer.
//
// The strategy is read-only during queries with one exception: the stack
// buffer is grown when a batch exceeds its capacity. Callers submitting
// queries from multiple goroutines must either pre-size by issuing the
// largest batch first or serialize the first query at each new batch
// high-water mark.
type FatBvhStrategy struct {
	logger log.Logger

	device compute.Device

	bvh *accel.Bvh

	executable          compute.Executable
	isectFunc           compute.Function
	occludeFunc         compute.Function
	isectIndirectFunc   compute.Function
	occludeIndirectFunc compute.Function

	// Primary buffers; valid iff bvh is non-nil.
	bvhBuf    compute.Buffer
	vertexBuf compute.Buffer
	faceBuf   compute.Buffer
	shapeBuf  compute.Buffer
	raycntBuf compute.Buffer

	// Traversal stack; retained across rebuilds, grown on demand.
	stackBuf compute.Buffer

	numFaces    int
	numVertices int
}

// Create a fat-BVH strategy for the given device. The kernel source is
// selected by the device platform and compiled immediately; the four
// query entry points are bound before returning.
func NewFatBvhStrategy(dev compute.Device) (*FatBvhStrategy, error) {
	source, headers, err := kernelSource(dev.Platform())
	if err != nil {
		return nil, err
	}

	s := &FatBvhStrategy{
		logger: log.New("fatbvh"),
		device: dev,
	}

	s.executable, err = dev.CompileExecutable(source, headers, "")
	if err != nil {
		return nil, fmt.Errorf("fatbvh: compiling kernels: %w", err)
	}

	for _, binding := range []struct {
		name string
		dst  *compute.Function
	}{
		{kernelIsect, &s.isectFunc},
		{kernelOcclude, &s.occludeFunc},
		{kernelIsectIndirect, &s.isectIndirectFunc},
		{kernelOccludeIndirect, &s.occludeIndirectFunc},
	} {
		*binding.dst, err = s.executable.CreateFunction(binding.name)
		if err != nil {
			s.Close()
			return nil, err
		}
	}

	return s, nil
}

// Get the number of flattened faces resident on the device.
func (s *FatBvhStrategy) NumFaces() int {
	return s.numFaces
}

// Get the number of flattened vertices resident on the device.
func (s *FatBvhStrategy) NumVertices() int {
	return s.numVertices
}

// Get the height of the installed hierarchy; 0 when none is installed.
func (s *FatBvhStrategy) Height() int {
	if s.bvh == nil {
		return 0
	}
	return s.bvh.Height()
}

// Resident buffer accessors, intended for tools and tests. All returned
// buffers are nil until a successful preprocess and must be treated as
// read-only.
func (s *FatBvhStrategy) NodeBuffer() compute.Buffer   { return s.bvhBuf }
func (s *FatBvhStrategy) VertexBuffer() compute.Buffer { return s.vertexBuf }
func (s *FatBvhStrategy) FaceBuffer() compute.Buffer   { return s.faceBuf }
func (s *FatBvhStrategy) ShapeBuffer() compute.Buffer  { return s.shapeBuf }

// Get the traversal stack buffer; nil until the first preprocess.
func (s *FatBvhStrategy) StackBuffer() compute.Buffer { return s.stackBuf }

// Rebuild all device-resident data from the world. A no-op unless the
// world reports a change or no hierarchy is installed yet. On error the
// strategy holds no hierarchy and no primary buffers.
func (s *FatBvhStrategy) Preprocess(world *scene.World) error {
	if s.bvh != nil && !world.HasChanged() && world.StateChange() == scene.StateChangeNone {
		return nil
	}

	s.releasePrimary()

	// Check that a full batch worth of traversal stack fits in a single
	// device allocation before doing any work.
	spec := s.device.Spec()
	if spec.MaxAllocSize <= uint64(MaxBatchSize)*MaxStackDepth*4 {
		return ErrStackMemory
	}

	numShapes := len(world.Shapes)

	// Stable partition: meshes first, instances after in their original
	// relative order.
	shapes := make([]scene.Shape, 0, numShapes)
	for _, sh := range world.Shapes {
		if !sh.IsInstance() {
			shapes = append(shapes, sh)
		}
	}
	numMeshes := len(shapes)
	for _, sh := range world.Shapes {
		if sh.IsInstance() {
			shapes = append(shapes, sh)
		}
	}
	numInstances := numShapes - numMeshes

	// Face indices inside each mesh are relative to 0; these offsets
	// locate every shape inside the flattened streams.
	faceStart := make([]int32, numShapes)
	vertexStart := make([]int32, numShapes)
	numFaces := 0
	numVertices := 0
	for i, sh := range shapes {
		mesh := baseMesh(sh)
		faceStart[i] = int32(numFaces)
		vertexStart[i] = int32(numVertices)
		numFaces += mesh.NumFaces()
		numVertices += mesh.NumVertices()
	}

	bounds := make([]types.Box, numFaces)
	shapeData := make([]ShapeData, numShapes)

	// Meshes report world-space face bounds directly.
	parallelFor(numMeshes, func(i int) {
		mesh := shapes[i].(*scene.Mesh)
		for j := 0; j < mesh.NumFaces(); j++ {
			bounds[faceStart[i]+int32(j)] = mesh.FaceBounds(j, false)
		}
		_, minv := mesh.Transform()
		shapeData[i] = newShapeData(mesh.Id(), mesh.Mask(), minv)
	})

	// Instances use their own transform for the base shape geometry, so
	// object space bounds are fetched and transformed manually.
	parallelFor(numInstances, func(n int) {
		i := numMeshes + n
		inst := shapes[i].(*scene.Instance)
		mesh := inst.BaseShape()
		m, minv := inst.Transform()
		for j := 0; j < mesh.NumFaces(); j++ {
			bounds[faceStart[i]+int32(j)] = types.TransformBox(mesh.FaceBounds(j, true), m)
		}
		shapeData[i] = newShapeData(inst.Id(), inst.Mask(), minv)
	})

	enableSah := false
	if val, exists := world.Options.GetOption(scene.OptionBvhBuilder); exists && val == "sah" {
		enableSah = true
	}

	start := time.Now()
	bvh := accel.NewBvh(enableSah)
	if err := bvh.Build(bounds); err != nil {
		return err
	}
	if numFaces > 0 && bvh.Height() >= MaxStackDepth {
		return ErrTooDeep
	}

	var translator accel.FatNodeTranslator
	translator.Process(bvh)

	var err error
	s.bvhBuf, err = s.device.CreateBuffer(len(translator.Nodes)*accel.FatNodeSize, compute.BufferRead, fatNodeBytes(translator.Nodes))
	if err != nil {
		return s.abortPreprocess(err)
	}

	if err = s.packVertices(shapes, numMeshes, numVertices, vertexStart); err != nil {
		return s.abortPreprocess(err)
	}

	if err = s.packFaces(shapes, numFaces, faceStart, vertexStart, bvh.Indices()); err != nil {
		return s.abortPreprocess(err)
	}

	s.shapeBuf, err = s.device.CreateBuffer(numShapes*ShapeDataSize, compute.BufferRead, shapeDataBytes(shapeData))
	if err != nil {
		return s.abortPreprocess(err)
	}

	s.raycntBuf, err = s.device.CreateBuffer(4, compute.BufferWrite, nil)
	if err != nil {
		return s.abortPreprocess(err)
	}

	if s.stackBuf == nil {
		s.stackBuf, err = s.device.CreateBuffer(MaxBatchSize*MaxStackDepth, compute.BufferWrite, nil)
		if err != nil {
			return s.abortPreprocess(err)
		}
	}

	// Commit all uploads before any query can observe the buffers.
	if err = s.device.Finish(0); err != nil {
		return s.abortPreprocess(err)
	}

	s.bvh = bvh
	s.numFaces = numFaces
	s.numVertices = numVertices
	world.ClearChanges()

	s.logger.Debugf(
		"preprocessed %d shapes (%d meshes, %d instances) into %d faces / %d vertices, bvh height %d, in %d ms",
		numShapes, numMeshes, numInstances, numFaces, numVertices, bvh.Height(),
		time.Since(start).Nanoseconds()/1e6,
	)

	return nil
}

// Transform every vertex to world space and write it to the device
// vertex buffer at the owning shape's offset.
func (s *FatBvhStrategy) packVertices(shapes []scene.Shape, numMeshes, numVertices int, vertexStart []int32) error {
	var err error
	s.vertexBuf, err = s.device.CreateBuffer(numVertices*int(unsafe.Sizeof(types.Vec4{})), compute.BufferRead, nil)
	if err != nil {
		return err
	}
	if numVertices == 0 {
		return nil
	}

	data, ev, err := s.device.MapBuffer(s.vertexBuf, 0, 0, s.vertexBuf.Size(), compute.MapWrite)
	if err != nil {
		return err
	}
	if err = ev.Wait(); err != nil {
		return err
	}

	vertexData := unsafe.Slice((*types.Vec4)(unsafe.Pointer(&data[0])), numVertices)

	parallelFor(len(shapes), func(i int) {
		var m types.Mat4
		var mesh *scene.Mesh
		if i < numMeshes {
			mesh = shapes[i].(*scene.Mesh)
			m, _ = mesh.Transform()
		} else {
			inst := shapes[i].(*scene.Instance)
			mesh = inst.BaseShape()
			m, _ = inst.Transform()
		}

		src := mesh.VertexData()
		for j := range src {
			vertexData[vertexStart[i]+int32(j)] = m.Mul4x1(src[j])
		}
	})

	ev, err = s.device.UnmapBuffer(s.vertexBuf, 0, data)
	if err != nil {
		return err
	}
	return ev.Wait()
}

// Write the flattened face records in BVH leaf order. Mesh-relative
// vertex indices are rebased against the owning shape's offset into the
// device vertex buffer.
func (s *FatBvhStrategy) packFaces(shapes []scene.Shape, numFaces int, faceStart, vertexStart []int32, reordering []int32) error {
	var err error
	s.faceBuf, err = s.device.CreateBuffer(numFaces*FaceDataSize, compute.BufferRead, nil)
	if err != nil {
		return err
	}
	if numFaces == 0 {
		return nil
	}

	// Invert faceStart with one linear walk so the per-face shape lookup
	// below is O(1) instead of a binary search per face.
	faceShape := make([]int32, numFaces)
	for k := range shapes {
		end := numFaces
		if k+1 < len(shapes) {
			end = int(faceStart[k+1])
		}
		for f := int(faceStart[k]); f < end; f++ {
			faceShape[f] = int32(k)
		}
	}

	data, ev, err := s.device.MapBuffer(s.faceBuf, 0, 0, s.faceBuf.Size(), compute.MapWrite)
	if err != nil {
		return err
	}
	if err = ev.Wait(); err != nil {
		return err
	}

	faceData := unsafe.Slice((*FaceData)(unsafe.Pointer(&data[0])), numFaces)

	for i := 0; i < numFaces; i++ {
		orig := reordering[i]
		shapeIdx := faceShape[orig]
		mesh := baseMesh(shapes[shapeIdx])

		faceIdx := orig - faceStart[shapeIdx]
		face := mesh.FaceData()[faceIdx]
		startIdx := vertexStart[shapeIdx]

		faceData[i] = FaceData{
			Idx:      [3]int32{face.Idx[0] + startIdx, face.Idx[1] + startIdx, face.Idx[2] + startIdx},
			ShapeIdx: shapeIdx,
			Id:       faceIdx,
			Cnt:      0,
		}
	}

	ev, err = s.device.UnmapBuffer(s.faceBuf, 0, data)
	if err != nil {
		return err
	}
	return ev.Wait()
}

// Find the closest hit for numrays rays. The completion event is
// returned; the hit buffer holds one Intersection record per ray once it
// fires. A non-nil waitEvent orders the dispatch after it.
func (s *FatBvhStrategy) QueryIntersection(queueidx int, rays compute.Buffer, numrays int, hits compute.Buffer, waitEvent compute.Event) (compute.Event, error) {
	if err := s.ensureStack(numrays); err != nil {
		return nil, err
	}
	if err := s.bindArgs(s.isectFunc, rays, int32(numrays), hits); err != nil {
		return nil, err
	}
	return s.device.Execute(s.isectFunc, queueidx, roundUpWorkSize(numrays), workGroupSize, waitEvent)
}

// Check numrays rays for any hit. The hit buffer holds one int32 per ray:
// OcclusionHit when blocked, NullId otherwise.
func (s *FatBvhStrategy) QueryOcclusion(queueidx int, rays compute.Buffer, numrays int, hits compute.Buffer, waitEvent compute.Event) (compute.Event, error) {
	if err := s.ensureStack(numrays); err != nil {
		return nil, err
	}
	if err := s.bindArgs(s.occludeFunc, rays, int32(numrays), hits); err != nil {
		return nil, err
	}
	return s.device.Execute(s.occludeFunc, queueidx, roundUpWorkSize(numrays), workGroupSize, waitEvent)
}

// Find the closest hit with the ray count read from a device buffer at
// kernel run time. maxrays bounds the dispatch size and the stack
// allocation.
func (s *FatBvhStrategy) QueryIntersectionIndirect(queueidx int, rays compute.Buffer, numrays compute.Buffer, maxrays int, hits compute.Buffer, waitEvent compute.Event) (compute.Event, error) {
	if err := s.ensureStack(maxrays); err != nil {
		return nil, err
	}
	if err := s.bindArgs(s.isectIndirectFunc, rays, numrays, hits); err != nil {
		return nil, err
	}
	return s.device.Execute(s.isectIndirectFunc, queueidx, roundUpWorkSize(maxrays), workGroupSize, waitEvent)
}

// Check rays for any hit with the ray count read from a device buffer at
// kernel run time.
func (s *FatBvhStrategy) QueryOcclusionIndirect(queueidx int, rays compute.Buffer, numrays compute.Buffer, maxrays int, hits compute.Buffer, waitEvent compute.Event) (compute.Event, error) {
	if err := s.ensureStack(maxrays); err != nil {
		return nil, err
	}
	if err := s.bindArgs(s.occludeIndirectFunc, rays, numrays, hits); err != nil {
		return nil, err
	}
	return s.device.Execute(s.occludeIndirectFunc, queueidx, roundUpWorkSize(maxrays), workGroupSize, waitEvent)
}

// Release all device resources owned by the strategy.
func (s *FatBvhStrategy) Close() {
	s.releasePrimary()

	if s.stackBuf != nil {
		s.device.DeleteBuffer(s.stackBuf)
		s.stackBuf = nil
	}

	for _, fn := range []*compute.Function{&s.isectFunc, &s.occludeFunc, &s.isectIndirectFunc, &s.occludeIndirectFunc} {
		if *fn != nil {
			s.executable.DeleteFunction(*fn)
			*fn = nil
		}
	}

	if s.executable != nil {
		s.device.DeleteExecutable(s.executable)
		s.executable = nil
	}
}

// Release the five primary buffers and drop the installed hierarchy.
func (s *FatBvhStrategy) releasePrimary() {
	for _, buf := range []*compute.Buffer{&s.bvhBuf, &s.vertexBuf, &s.faceBuf, &s.shapeBuf, &s.raycntBuf} {
		if *buf != nil {
			s.device.DeleteBuffer(*buf)
			*buf = nil
		}
	}
	s.bvh = nil
	s.numFaces = 0
	s.numVertices = 0
}

func (s *FatBvhStrategy) abortPreprocess(err error) error {
	s.releasePrimary()
	return err
}

// Grow the shared traversal stack if the batch needs more than its
// current capacity. Each ray owns MaxStackDepth int-sized slots.
func (s *FatBvhStrategy) ensureStack(numrays int) error {
	required := 4 * numrays * MaxStackDepth
	if s.stackBuf != nil && required <= s.stackBuf.Size() {
		return nil
	}

	if s.stackBuf != nil {
		if err := s.device.DeleteBuffer(s.stackBuf); err != nil {
			return err
		}
		s.stackBuf = nil
	}

	var err error
	s.stackBuf, err = s.device.CreateBuffer(required, compute.BufferWrite, nil)
	return err
}

// Bind the kernel argument list shared by all four queries. The ray
// count is an int32 scalar for the direct queries and the ray count
// buffer for the indirect ones.
func (s *FatBvhStrategy) bindArgs(fn compute.Function, rays compute.Buffer, raycount interface{}, hits compute.Buffer) error {
	args := []interface{}{
		s.bvhBuf,
		s.vertexBuf,
		s.faceBuf,
		s.shapeBuf,
		rays,
		int32(0), // ray buffer offset
		raycount,
		hits,
		s.stackBuf,
	}
	for i, arg := range args {
		if err := fn.SetArg(i, arg); err != nil {
			return err
		}
	}
	return nil
}

func roundUpWorkSize(numrays int) int {
	return (numrays + workGroupSize - 1) / workGroupSize * workGroupSize
}

func baseMesh(sh scene.Shape) *scene.Mesh {
	if inst, ok := sh.(*scene.Instance); ok {
		return inst.BaseShape()
	}
	return sh.(*scene.Mesh)
}

func newShapeData(id, mask uint32, minv types.Mat4) ShapeData {
	return ShapeData{
		Id:              int32(id),
		Mask:            int32(mask),
		InvTransform:    minv,
		AngularVelocity: types.QuatIdent().Vec4(),
	}
}

func fatNodeBytes(nodes []accel.FatNode) []byte {
	if len(nodes) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&nodes[0])), len(nodes)*accel.FatNodeSize)
}

func shapeDataBytes(shapes []ShapeData) []byte {
	if len(shapes) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&shapes[0])), len(shapes)*ShapeDataSize)
}
