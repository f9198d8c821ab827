package scene

import (
	"testing"

	"github.com/achilleasa/rigel/types"
)

func TestWorldChangeTracking(t *testing.T) {
	world := NewWorld()
	if !world.HasChanged() {
		t.Fatal("expected a fresh world to report a pending change")
	}

	world.ClearChanges()
	if world.HasChanged() || world.StateChange() != StateChangeNone {
		t.Fatal("expected no pending changes after clear")
	}

	mesh := triangleMesh()
	world.AttachShape(mesh)
	if !world.HasChanged() {
		t.Fatal("expected attach to mark the world changed")
	}

	world.ClearChanges()
	mesh.SetTransform(types.Translate(types.XYZ(1, 0, 0)))
	if world.StateChange()&StateChangeTransform == 0 {
		t.Fatal("expected transform change to raise the transform bit")
	}

	world.ClearChanges()
	mesh.SetMask(0x2)
	if world.StateChange()&StateChangeMask == 0 {
		t.Fatal("expected mask change to raise the mask bit")
	}

	world.ClearChanges()
	world.DetachShape(mesh)
	if !world.HasChanged() {
		t.Fatal("expected detach to mark the world changed")
	}
	if len(world.Shapes) != 0 {
		t.Fatalf("expected no shapes after detach; got %d", len(world.Shapes))
	}

	// Detached shapes must not reach into the world anymore.
	world.ClearChanges()
	mesh.SetMask(0x4)
	if world.StateChange() != StateChangeNone {
		t.Fatal("expected detached shape mutation to leave the world untouched")
	}
}

func TestMeshFaceBounds(t *testing.T) {
	mesh := triangleMesh()
	mesh.SetTransform(types.Translate(types.XYZ(10, 0, 0)))

	object := mesh.FaceBounds(0, true)
	if object.Min != types.XYZ(0, 0, 0) || object.Max != types.XYZ(1, 1, 0) {
		t.Fatalf("unexpected object space bounds: %+v", object)
	}

	world := mesh.FaceBounds(0, false)
	if world.Min != types.XYZ(10, 0, 0) || world.Max != types.XYZ(11, 1, 0) {
		t.Fatalf("unexpected world space bounds: %+v", world)
	}
}

func TestMeshFaceData(t *testing.T) {
	mesh := NewMesh(
		[]types.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0}},
		[]int32{0, 1, 2, 1, 3, 2},
	)

	if mesh.NumFaces() != 2 || mesh.NumVertices() != 4 {
		t.Fatalf("unexpected mesh counts: %d faces, %d vertices", mesh.NumFaces(), mesh.NumVertices())
	}

	faces := mesh.FaceData()
	for i, face := range faces {
		if face.Id != int32(i) {
			t.Fatalf("expected face %d to carry primitive id %d; got %d", i, i, face.Id)
		}
	}
	if faces[1].Idx != [3]int32{1, 3, 2} {
		t.Fatalf("unexpected second face indices: %v", faces[1].Idx)
	}

	// Vertices are stored as Vec4 with w=1 for device upload.
	for i, v := range mesh.VertexData() {
		if v[3] != 1 {
			t.Fatalf("expected vertex %d to have w=1; got %f", i, v[3])
		}
	}
}

func TestInstanceBaseShape(t *testing.T) {
	mesh := triangleMesh()
	inst := NewInstance(mesh)

	if !inst.IsInstance() {
		t.Fatal("expected instance to report IsInstance")
	}
	if mesh.IsInstance() {
		t.Fatal("expected mesh to not report IsInstance")
	}
	if inst.BaseShape() != mesh {
		t.Fatal("expected instance to reference its base mesh")
	}

	// Instance transform must not leak into the base mesh.
	inst.SetTransform(types.Translate(types.XYZ(5, 0, 0)))
	m, _ := mesh.Transform()
	if m != types.Ident4() {
		t.Fatal("expected base mesh transform to stay identity")
	}

	_, minv := inst.Transform()
	if got := minv.TransformPoint(types.XYZ(5, 0, 0)); got != types.XYZ(0, 0, 0) {
		t.Fatalf("expected cached inverse to undo the translation; got %v", got)
	}
}

func TestOptions(t *testing.T) {
	world := NewWorld()

	if _, exists := world.Options.GetOption(OptionBvhBuilder); exists {
		t.Fatal("expected unset option to report absence")
	}

	world.Options.SetOption(OptionBvhBuilder, "sah")
	val, exists := world.Options.GetOption(OptionBvhBuilder)
	if !exists || val != "sah" {
		t.Fatalf("expected option value sah; got %q (exists: %v)", val, exists)
	}
}

func triangleMesh() *Mesh {
	return NewMesh(
		[]types.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		[]int32{0, 1, 2},
	)
}
