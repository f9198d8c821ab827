package soft

import (
	"unsafe"

	"github.com/achilleasa/rigel/accel"
	"github.com/achilleasa/rigel/intersect"
	"github.com/achilleasa/rigel/types"
)

// Argument set shared by the four fat-BVH kernels. Slices alias the
// bound device buffers directly.
type kernelArgs struct {
	nodes    []accel.FatNode
	vertices []types.Vec4
	faces    []intersect.FaceData
	shapes   []intersect.ShapeData
	rays     []intersect.Ray
	offset   int32
	numRays  func() int32
	isect    []intersect.Intersection
	occluded []int32
	stack    []int32
}

// Native implementation of the IntersectClosest / IntersectClosestRC
// entry points for one lane.
func traverseClosest(args *kernelArgs, gid int) {
	r := &args.rays[int(args.offset)+gid]
	if !r.Active() {
		return
	}

	origin := r.Origin.Vec3()
	dir := r.Dir.Vec3()
	invdir := invDir(dir)
	raymask := r.Mask()

	best := intersect.Intersection{
		ShapeId: intersect.NullId,
		PrimId:  intersect.NullId,
		UVWT:    types.Vec4{0, 0, 0, r.Origin[3]},
	}

	if len(args.nodes) > 0 {
		stack := args.stack[gid*intersect.MaxStackDepth:]
		sp := 0
		stack[sp] = 0
		sp++

		for sp > 0 {
			sp--
			node := &args.nodes[stack[sp]]

			if !intersectBox(origin, invdir, best.UVWT[3], node.Min, node.Max) {
				continue
			}

			if node.Start != -1 {
				for i := node.Start; i < node.Start+node.Cnt; i++ {
					face := &args.faces[i]
					if args.shapes[face.ShapeIdx].Mask&raymask == 0 {
						continue
					}

					t, u, v, hit := intersectTriangle(origin, dir, best.UVWT[3],
						args.vertices[face.Idx[0]].Vec3(),
						args.vertices[face.Idx[1]].Vec3(),
						args.vertices[face.Idx[2]].Vec3())
					if hit {
						best.ShapeId = args.shapes[face.ShapeIdx].Id
						best.PrimId = face.Id
						best.UVWT = types.Vec4{u, v, 0, t}
					}
				}
			} else {
				stack[sp] = node.Left
				stack[sp+1] = node.Right
				sp += 2
			}
		}
	}

	args.isect[gid] = best
}

// Native implementation of the IntersectAny / IntersectAnyRC entry
// points for one lane.
func traverseAny(args *kernelArgs, gid int) {
	r := &args.rays[int(args.offset)+gid]
	if !r.Active() {
		return
	}

	origin := r.Origin.Vec3()
	dir := r.Dir.Vec3()
	invdir := invDir(dir)
	maxt := r.Origin[3]
	raymask := r.Mask()

	args.occluded[gid] = intersect.NullId

	if len(args.nodes) == 0 {
		return
	}

	stack := args.stack[gid*intersect.MaxStackDepth:]
	sp := 0
	stack[sp] = 0
	sp++

	for sp > 0 {
		sp--
		node := &args.nodes[stack[sp]]

		if !intersectBox(origin, invdir, maxt, node.Min, node.Max) {
			continue
		}

		if node.Start != -1 {
			for i := node.Start; i < node.Start+node.Cnt; i++ {
				face := &args.faces[i]
				if args.shapes[face.ShapeIdx].Mask&raymask == 0 {
					continue
				}

				_, _, _, hit := intersectTriangle(origin, dir, maxt,
					args.vertices[face.Idx[0]].Vec3(),
					args.vertices[face.Idx[1]].Vec3(),
					args.vertices[face.Idx[2]].Vec3())
				if hit {
					args.occluded[gid] = intersect.OcclusionHit
					return
				}
			}
		} else {
			stack[sp] = node.Left
			stack[sp+1] = node.Right
			sp += 2
		}
	}
}

// Component-wise direction reciprocal. Zero components divide to +Inf
// which the slab test handles naturally.
func invDir(dir types.Vec3) types.Vec3 {
	return types.Vec3{1 / dir[0], 1 / dir[1], 1 / dir[2]}
}

// Slab test against an axis-aligned box.
func intersectBox(origin, invdir types.Vec3, maxt float32, pmin, pmax types.Vec3) bool {
	t0 := float32(0)
	t1 := maxt

	for axis := 0; axis < 3; axis++ {
		near := (pmin[axis] - origin[axis]) * invdir[axis]
		far := (pmax[axis] - origin[axis]) * invdir[axis]
		if near > far {
			near, far = far, near
		}
		if near > t0 {
			t0 = near
		}
		if far < t1 {
			t1 = far
		}
	}

	return t1 >= t0
}

// Moeller-Trumbore ray/triangle test bounded by maxt.
func intersectTriangle(origin, dir types.Vec3, maxt float32, v1, v2, v3 types.Vec3) (t, u, v float32, hit bool) {
	e1 := v2.Sub(v1)
	e2 := v3.Sub(v1)

	s1 := dir.Cross(e2)
	det := s1.Dot(e1)
	if det > -1e-10 && det < 1e-10 {
		return 0, 0, 0, false
	}

	invdet := 1 / det
	dist := origin.Sub(v1)
	b1 := dist.Dot(s1) * invdet
	if b1 < 0 || b1 > 1 {
		return 0, 0, 0, false
	}

	s2 := dist.Cross(e1)
	b2 := dir.Dot(s2) * invdet
	if b2 < 0 || b1+b2 > 1 {
		return 0, 0, 0, false
	}

	t = e2.Dot(s2) * invdet
	if t < 0 || t > maxt {
		return 0, 0, 0, false
	}

	return t, b1, b2, true
}

func fatNodeView(data []byte) []accel.FatNode {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*accel.FatNode)(unsafe.Pointer(&data[0])), len(data)/accel.FatNodeSize)
}

func vec4View(data []byte) []types.Vec4 {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*types.Vec4)(unsafe.Pointer(&data[0])), len(data)/int(unsafe.Sizeof(types.Vec4{})))
}

func faceView(data []byte) []intersect.FaceData {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*intersect.FaceData)(unsafe.Pointer(&data[0])), len(data)/intersect.FaceDataSize)
}

func shapeView(data []byte) []intersect.ShapeData {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*intersect.ShapeData)(unsafe.Pointer(&data[0])), len(data)/intersect.ShapeDataSize)
}

func rayView(data []byte) []intersect.Ray {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*intersect.Ray)(unsafe.Pointer(&data[0])), len(data)/intersect.RaySize)
}

func intersectionView(data []byte) []intersect.Intersection {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*intersect.Intersection)(unsafe.Pointer(&data[0])), len(data)/intersect.IntersectionSize)
}

func int32View(data []byte) []int32 {
	if len(data) == 0 {
		return nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&data[0])), len(data)/4)
}
