package intersect

import "github.com/achilleasa/rigel/types"

// Size of the device face and shape records in bytes.
const (
	FaceDataSize  = 32
	ShapeDataSize = 112
)

// A flattened triangle as uploaded to the device face buffer. Faces are
// stored in BVH leaf order; Idx holds absolute indices into the device
// vertex buffer.
type FaceData struct {
	Idx [3]int32

	// Index of the owning shape in the device shape table.
	ShapeIdx int32

	// Primitive id of the face within the owning shape.
	Id int32

	// Traversal counter consumed by the kernels; zero initialized.
	Cnt int32

	Padding [2]int32
}

// A shape descriptor as uploaded to the device shape table.
type ShapeData struct {
	// Shape id reported in intersection records.
	Id int32

	// Root BVH node of the shape. Reserved: the unified world-space BVH
	// kernels do not consume it, the field keeps the record layout
	// compatible with the two-level strategies.
	BvhIdx int32

	// Visibility mask tested against the ray mask.
	Mask int32

	Padding int32

	// World-to-object transform.
	InvTransform types.Mat4

	// Motion blur data; written but not consumed at trace time.
	LinearVelocity  types.Vec4
	AngularVelocity types.Vec4
}
