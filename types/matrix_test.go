package types

import (
	"math"
	"testing"
)

func TestMat4MulIdent(t *testing.T) {
	m := Translate(XYZ(1, 2, 3)).Mul4(Scale(XYZ(2, 2, 2)))
	if out := m.Mul4(Ident4()); out != m {
		t.Fatalf("expected m * I == m; got %v", out)
	}
	if out := Ident4().Mul4(m); out != m {
		t.Fatalf("expected I * m == m; got %v", out)
	}
}

func TestTransformPoint(t *testing.T) {
	type spec struct {
		m   Mat4
		in  Vec3
		exp Vec3
	}
	specs := []spec{
		{Ident4(), XYZ(1, 2, 3), XYZ(1, 2, 3)},
		{Translate(XYZ(10, 0, 0)), XYZ(1, 2, 3), XYZ(11, 2, 3)},
		{Scale(XYZ(2, 3, 4)), XYZ(1, 1, 1), XYZ(2, 3, 4)},
		{Translate(XYZ(-1, -1, -1)).Mul4(Scale(XYZ(2, 2, 2))), XYZ(1, 0, 2), XYZ(1, -1, 3)},
	}

	for index, s := range specs {
		if out := s.m.TransformPoint(s.in); !vec3AlmostEq(out, s.exp) {
			t.Fatalf("[spec %d] expected %v; got %v", index, s.exp, out)
		}
	}
}

func TestInverse(t *testing.T) {
	m := Translate(XYZ(4, -2, 7)).
		Mul4(QuatFromAxisAngle(XYZ(0, 1, 0), math.Pi/3).Mat4()).
		Mul4(Scale(XYZ(2, 2, 2)))

	out := m.Mul4(m.Inverse())
	ident := Ident4()
	for i := 0; i < 16; i++ {
		if math.Abs(float64(out[i]-ident[i])) > 1e-5 {
			t.Fatalf("expected m * m^-1 == I; element %d is %f", i, out[i])
		}
	}
}

func TestInverseSingular(t *testing.T) {
	if out := (Mat4{}).Inverse(); out != Ident4() {
		t.Fatalf("expected singular matrix inverse to fall back to identity; got %v", out)
	}
}

func TestQuatRotateMatchesMat4(t *testing.T) {
	q := QuatFromAxisAngle(XYZ(0, 0, 1).Normalize(), math.Pi/2)
	in := XYZ(1, 0, 0)

	viaQuat := q.Rotate(in)
	viaMat := q.Mat4().TransformPoint(in)

	if !vec3AlmostEq(viaQuat, viaMat) {
		t.Fatalf("expected quaternion and matrix rotation to agree; got %v vs %v", viaQuat, viaMat)
	}
	if !vec3AlmostEq(viaQuat, XYZ(0, 1, 0)) {
		t.Fatalf("expected 90 degree rotation of x axis to yield y axis; got %v", viaQuat)
	}
}

func vec3AlmostEq(a, b Vec3) bool {
	for i := 0; i < 3; i++ {
		if math.Abs(float64(a[i]-b[i])) > 1e-5 {
			return false
		}
	}
	return true
}
