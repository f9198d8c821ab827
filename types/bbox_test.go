package types

import "testing"

func TestBoxGrowAndUnion(t *testing.T) {
	box := EmptyBox().GrowPoint(XYZ(1, 2, 3)).GrowPoint(XYZ(-1, 5, 0))
	if box.Min != XYZ(-1, 2, 0) || box.Max != XYZ(1, 5, 3) {
		t.Fatalf("unexpected grown box: %+v", box)
	}

	other := BoxFromPoints(XYZ(0, 0, 0), XYZ(2, 1, 1))
	union := box.Union(other)
	if union.Min != XYZ(-1, 0, 0) || union.Max != XYZ(2, 5, 3) {
		t.Fatalf("unexpected union: %+v", union)
	}
}

func TestBoxCenterAndExtents(t *testing.T) {
	box := Box{Min: XYZ(0, 0, 0), Max: XYZ(2, 4, 6)}
	if box.Center() != XYZ(1, 2, 3) {
		t.Fatalf("unexpected center: %v", box.Center())
	}
	if box.Extents() != XYZ(2, 4, 6) {
		t.Fatalf("unexpected extents: %v", box.Extents())
	}
	if box.MaxDim() != 2 {
		t.Fatalf("expected z to be the longest axis; got %d", box.MaxDim())
	}
}

func TestBoxSurfaceArea(t *testing.T) {
	box := Box{Min: XYZ(0, 0, 0), Max: XYZ(1, 2, 3)}
	if exp := float32(2 * (1*2 + 2*3 + 1*3)); box.SurfaceArea() != exp {
		t.Fatalf("expected surface area %f; got %f", exp, box.SurfaceArea())
	}
}

func TestTransformBox(t *testing.T) {
	box := Box{Min: XYZ(-1, -1, -1), Max: XYZ(1, 1, 1)}

	translated := TransformBox(box, Translate(XYZ(10, 0, 0)))
	if translated.Min != XYZ(9, -1, -1) || translated.Max != XYZ(11, 1, 1) {
		t.Fatalf("unexpected translated box: %+v", translated)
	}

	scaled := TransformBox(box, Scale(XYZ(2, 1, 3)))
	if scaled.Min != XYZ(-2, -1, -3) || scaled.Max != XYZ(2, 1, 3) {
		t.Fatalf("unexpected scaled box: %+v", scaled)
	}
}
