package scene

import "github.com/achilleasa/rigel/types"

type StateChange uint32

// Shape-level state changes tracked by the world. The strategies rebuild
// their acceleration structures when any bit is raised.
const (
	StateChangeNone      StateChange = 0
	StateChangeTransform StateChange = 1 << iota
	StateChangeMask
	StateChangeId
	StateChangeGeometry
)

// The Shape interface is implemented by all world-attachable primitives.
type Shape interface {
	// Get shape id.
	Id() uint32

	// Set shape id.
	SetId(id uint32)

	// Get visibility mask.
	Mask() uint32

	// Set visibility mask.
	SetMask(mask uint32)

	// Get the world transform and its inverse.
	Transform() (m, minv types.Mat4)

	// Set the world transform. The inverse is computed and cached.
	SetTransform(m types.Mat4)

	// Check whether this shape instances another shape's geometry.
	IsInstance() bool
}

// Common state shared by all shape implementations.
type shapeBase struct {
	id   uint32
	mask uint32

	m    types.Mat4
	minv types.Mat4

	// Owning world; nil until attached.
	world *World
}

func newShapeBase() shapeBase {
	return shapeBase{
		mask: 0xFFFFFFFF,
		m:    types.Ident4(),
		minv: types.Ident4(),
	}
}

// Get shape id.
func (s *shapeBase) Id() uint32 {
	return s.id
}

// Set shape id.
func (s *shapeBase) SetId(id uint32) {
	s.id = id
	s.raise(StateChangeId)
}

// Get visibility mask.
func (s *shapeBase) Mask() uint32 {
	return s.mask
}

// Set visibility mask.
func (s *shapeBase) SetMask(mask uint32) {
	s.mask = mask
	s.raise(StateChangeMask)
}

// Get the world transform and its inverse.
func (s *shapeBase) Transform() (m, minv types.Mat4) {
	return s.m, s.minv
}

// Set the world transform. The inverse is computed and cached.
func (s *shapeBase) SetTransform(m types.Mat4) {
	s.m = m
	s.minv = m.Inverse()
	s.raise(StateChangeTransform)
}

func (s *shapeBase) raise(change StateChange) {
	if s.world != nil {
		s.world.raiseStateChange(change)
	}
}
