package scene

// An instance shares the geometry of a base mesh but carries its own
// world transform, id and visibility mask. The base mesh reference is
// non-owning; the world owns all attached shapes.
type Instance struct {
	shapeBase

	base *Mesh
}

// Create a new instance of the given base mesh with an identity transform.
func NewInstance(base *Mesh) *Instance {
	return &Instance{
		shapeBase: newShapeBase(),
		base:      base,
	}
}

// Implements Shape.
func (inst *Instance) IsInstance() bool {
	return true
}

// Get the mesh whose geometry this instance shares.
func (inst *Instance) BaseShape() *Mesh {
	return inst.base
}
