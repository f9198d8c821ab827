package types

import "math"

// An axis-aligned bounding box.
type Box struct {
	Min Vec3
	Max Vec3
}

// Create an empty box. An empty box has inverted extents so that the
// first point grown into it becomes its bounds.
func EmptyBox() Box {
	return Box{
		Min: Vec3{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
		Max: Vec3{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32},
	}
}

// Create a box enclosing the given points.
func BoxFromPoints(points ...Vec3) Box {
	box := EmptyBox()
	for _, p := range points {
		box = box.GrowPoint(p)
	}
	return box
}

// Grow the box to include a point.
func (b Box) GrowPoint(p Vec3) Box {
	return Box{
		Min: MinVec3(b.Min, p),
		Max: MaxVec3(b.Max, p),
	}
}

// Union two boxes.
func (b Box) Union(b2 Box) Box {
	return Box{
		Min: MinVec3(b.Min, b2.Min),
		Max: MaxVec3(b.Max, b2.Max),
	}
}

// Get the box center point.
func (b Box) Center() Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Get the box extents along each axis.
func (b Box) Extents() Vec3 {
	return b.Max.Sub(b.Min)
}

// Calculate the box surface area.
func (b Box) SurfaceArea() float32 {
	side := b.Max.Sub(b.Min)
	return 2.0 * (side[0]*side[1] + side[1]*side[2] + side[0]*side[2])
}

// Get the index of the longest box axis.
func (b Box) MaxDim() int {
	side := b.Max.Sub(b.Min)
	if side[0] >= side[1] && side[0] >= side[2] {
		return 0
	}
	if side[1] >= side[2] {
		return 1
	}
	return 2
}

// Transform the box by a matrix. Each of the 8 box corners is transformed
// and the result re-enclosed.
func TransformBox(b Box, m Mat4) Box {
	out := EmptyBox()
	for i := 0; i < 8; i++ {
		corner := Vec3{b.Min[0], b.Min[1], b.Min[2]}
		if i&1 != 0 {
			corner[0] = b.Max[0]
		}
		if i&2 != 0 {
			corner[1] = b.Max[1]
		}
		if i&4 != 0 {
			corner[2] = b.Max[2]
		}
		out = out.GrowPoint(m.TransformPoint(corner))
	}
	return out
}
