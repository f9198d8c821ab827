package intersect

import "github.com/achilleasa/rigel/types"

// Size of the device ray and intersection records in bytes.
const (
	RaySize          = 48
	IntersectionSize = 32
)

// Marker stored in Intersection.ShapeId and occlusion result slots when
// a ray does not hit any geometry.
const NullId int32 = -1

// Result stored in occlusion result slots when a ray is blocked.
const OcclusionHit int32 = 1

// A device ray record.
type Ray struct {
	// Origin with the maximum hit distance in the w component.
	Origin types.Vec4

	// Direction with the ray time in the w component. The time value is
	// reserved for motion blur and is not consumed by the fat-BVH kernels.
	Dir types.Vec4

	// Extra[0] is the ray visibility mask, Extra[1] the active flag.
	// Inactive rays are skipped by all kernels.
	Extra [2]int32

	// Backface culling flag. Carried for layout compatibility; the
	// fat-BVH kernels do not read it and never cull backfaces.
	DoBackfaceCulling int32

	Padding int32
}

// Create an active ray with all visibility bits raised.
func NewRay(origin, dir types.Vec3, maxt float32) Ray {
	return Ray{
		Origin: origin.Vec4(maxt),
		Dir:    dir.Vec4(0),
		Extra:  [2]int32{-1, 1},
	}
}

// Get the ray visibility mask.
func (r *Ray) Mask() int32 {
	return r.Extra[0]
}

// Set the ray visibility mask.
func (r *Ray) SetMask(mask int32) {
	r.Extra[0] = mask
}

// Check whether the ray participates in queries.
func (r *Ray) Active() bool {
	return r.Extra[1] != 0
}

// A device intersection record produced by the closest-hit kernels.
type Intersection struct {
	// Id of the shape hit by the ray or NullId on miss.
	ShapeId int32

	// Primitive id of the hit face within the shape.
	PrimId int32

	Padding [2]int32

	// Barycentric hit coordinates in x/y and the hit distance in w.
	UVWT types.Vec4
}

// Check whether the record describes a hit.
func (isect *Intersection) Hit() bool {
	return isect.ShapeId != NullId
}
