package accel

import (
	"math"
	"testing"

	"github.com/achilleasa/rigel/types"
)

func TestBuildEmpty(t *testing.T) {
	bvh := NewBvh(false)
	if err := bvh.Build(nil); err != nil {
		t.Fatal(err)
	}

	if bvh.Height() != 0 {
		t.Fatalf("expected empty tree height to be 0; got %d", bvh.Height())
	}
	if bvh.NodeCount() != 0 {
		t.Fatalf("expected empty tree to have 0 nodes; got %d", bvh.NodeCount())
	}
	if len(bvh.Indices()) != 0 {
		t.Fatalf("expected empty permutation; got %d entries", len(bvh.Indices()))
	}
}

func TestBuildSinglePrimitive(t *testing.T) {
	bounds := []types.Box{boxAt(types.XYZ(0, 0, 0), 1)}

	bvh := NewBvh(false)
	if err := bvh.Build(bounds); err != nil {
		t.Fatal(err)
	}

	if bvh.Height() != 1 {
		t.Fatalf("expected single-leaf tree height to be 1; got %d", bvh.Height())
	}
	if bvh.NodeCount() != 1 {
		t.Fatalf("expected 1 node; got %d", bvh.NodeCount())
	}

	root := bvh.Nodes()[0]
	if root.Left != -1 || root.Start != 0 || root.Count != 1 {
		t.Fatalf("expected root to be a leaf over primitive 0; got %+v", root)
	}
}

func TestPermutationCoversAllPrimitives(t *testing.T) {
	type spec struct {
		numPrims  int
		enableSah bool
	}
	specs := []spec{
		{1, false},
		{2, false},
		{7, false},
		{64, false},
		{1000, false},
		{7, true},
		{64, true},
		{1000, true},
	}

	for index, s := range specs {
		bvh := NewBvh(s.enableSah)
		if err := bvh.Build(gridBounds(s.numPrims)); err != nil {
			t.Fatalf("[spec %d] %v", index, err)
		}

		indices := bvh.Indices()
		if len(indices) != s.numPrims {
			t.Fatalf("[spec %d] expected permutation length %d; got %d", index, s.numPrims, len(indices))
		}

		seen := make(map[int32]bool, len(indices))
		for _, idx := range indices {
			if idx < 0 || int(idx) >= s.numPrims {
				t.Fatalf("[spec %d] permutation entry %d out of range", index, idx)
			}
			if seen[idx] {
				t.Fatalf("[spec %d] primitive %d appears twice in permutation", index, idx)
			}
			seen[idx] = true
		}
	}
}

func TestLeafRangesPartitionPermutation(t *testing.T) {
	for _, enableSah := range []bool{false, true} {
		bvh := NewBvh(enableSah)
		if err := bvh.Build(gridBounds(257)); err != nil {
			t.Fatal(err)
		}

		covered := make([]bool, len(bvh.Indices()))
		for _, node := range bvh.Nodes() {
			if node.Left != -1 {
				if node.Start != -1 {
					t.Fatalf("internal node carries leaf range: %+v", node)
				}
				continue
			}
			if node.Count < 1 {
				t.Fatalf("leaf with no primitives: %+v", node)
			}
			for i := node.Start; i < node.Start+node.Count; i++ {
				if covered[i] {
					t.Fatalf("leaf slot %d referenced by two leaves", i)
				}
				covered[i] = true
			}
		}

		for i, ok := range covered {
			if !ok {
				t.Fatalf("leaf slot %d not referenced by any leaf", i)
			}
		}
	}
}

func TestNodeBoundsEncloseChildren(t *testing.T) {
	bvh := NewBvh(true)
	if err := bvh.Build(gridBounds(300)); err != nil {
		t.Fatal(err)
	}

	nodes := bvh.Nodes()
	for i, node := range nodes {
		if node.Left == -1 {
			continue
		}
		for _, child := range []int32{node.Left, node.Right} {
			cb := nodes[child].Bounds
			union := node.Bounds.Union(cb)
			if union != node.Bounds {
				t.Fatalf("node %d bounds do not enclose child %d", i, child)
			}
		}
	}
}

func TestExponentialSpacingDegradesHeight(t *testing.T) {
	// Exponentially spaced centroids peel one primitive per midpoint
	// split, so the tree degenerates to a list.
	bvh := NewBvh(false)
	if err := bvh.Build(exponentialBounds(60)); err != nil {
		t.Fatal(err)
	}

	if bvh.Height() < 48 {
		t.Fatalf("expected pathological scene height to reach 48; got %d", bvh.Height())
	}
}

// Bounds for a row of unit boxes; keeps midpoint splits balanced.
func gridBounds(n int) []types.Box {
	bounds := make([]types.Box, n)
	for i := 0; i < n; i++ {
		bounds[i] = boxAt(types.XYZ(float32(i)*2, float32(i%3), float32(i%7)), 0.5)
	}
	return bounds
}

// Bounds with centroids at 2^-i along x.
func exponentialBounds(n int) []types.Box {
	bounds := make([]types.Box, n)
	for i := 0; i < n; i++ {
		x := float32(math.Pow(2, float64(-i)))
		bounds[i] = boxAt(types.XYZ(x, 0, 0), x*0.25)
	}
	return bounds
}

func boxAt(center types.Vec3, half float32) types.Box {
	return types.Box{
		Min: center.Sub(types.XYZ(half, half, half)),
		Max: center.Add(types.XYZ(half, half, half)),
	}
}
