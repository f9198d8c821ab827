package scene

import "github.com/achilleasa/rigel/types"

// A triangle face. Idx contains indices into the owning mesh vertex list
// and Id is the primitive id of the face within the mesh.
type Face struct {
	Idx [3]int32
	Id  int32
}

// A triangle mesh. Vertex positions are stored in object space; the world
// transform is applied when the mesh is flattened into device buffers.
type Mesh struct {
	shapeBase

	vertices []types.Vec4
	faces    []Face
}

// Create a new mesh from a vertex position list and a flat index list.
// The index list length must be a multiple of 3; each consecutive triple
// forms one face whose primitive id is its ordinal within the mesh.
func NewMesh(vertices []types.Vec3, indices []int32) *Mesh {
	mesh := &Mesh{
		shapeBase: newShapeBase(),
		vertices:  make([]types.Vec4, len(vertices)),
		faces:     make([]Face, len(indices)/3),
	}

	for i, v := range vertices {
		mesh.vertices[i] = v.Vec4(1.0)
	}

	for f := 0; f < len(mesh.faces); f++ {
		mesh.faces[f] = Face{
			Idx: [3]int32{indices[f*3], indices[f*3+1], indices[f*3+2]},
			Id:  int32(f),
		}
	}

	return mesh
}

// Implements Shape.
func (m *Mesh) IsInstance() bool {
	return false
}

// Get the number of faces in the mesh.
func (m *Mesh) NumFaces() int {
	return len(m.faces)
}

// Get the number of vertices in the mesh.
func (m *Mesh) NumVertices() int {
	return len(m.vertices)
}

// Get the object space vertex positions.
func (m *Mesh) VertexData() []types.Vec4 {
	return m.vertices
}

// Get the face list.
func (m *Mesh) FaceData() []Face {
	return m.faces
}

// Get the bounding box of face j. If objectSpace is false the three face
// vertices are pushed through the mesh world transform before enclosing.
func (m *Mesh) FaceBounds(j int, objectSpace bool) types.Box {
	face := m.faces[j]
	box := types.EmptyBox()
	for _, idx := range face.Idx {
		p := m.vertices[idx].Vec3()
		if !objectSpace {
			p = m.m.TransformPoint(p)
		}
		box = box.GrowPoint(p)
	}
	return box
}
