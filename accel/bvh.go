package accel

import (
	"sort"
	"time"

	"github.com/achilleasa/rigel/log"
	"github.com/achilleasa/rigel/types"
)

const (
	// Leaves are emitted once a partition shrinks to this many primitives.
	maxLeafPrims = 2

	// Number of bins evaluated per axis by the SAH splitter.
	numSahBins = 16
)

// A node of the host-side BVH. Nodes are stored in preorder; leaves set
// Left/Right to -1 and reference a range of the leaf-order permutation.
type BuildNode struct {
	Bounds types.Box

	// Child node indices; -1 for leaves.
	Left  int32
	Right int32

	// Leaf primitive range into Indices(); Start is -1 for internal nodes.
	Start int32
	Count int32
}

type primRef struct {
	idx    int32
	bounds types.Box
	center types.Vec3
}

// A binary bounding-volume hierarchy over a set of primitive bounds.
type Bvh struct {
	logger log.Logger

	useSah bool

	nodes   []BuildNode
	indices []int32
	height  int
}

// Create a new BVH builder. When enableSah is true splits are selected
// with a binned surface-area heuristic, otherwise the midpoint of the
// centroid bounds along the longest axis is used.
func NewBvh(enableSah bool) *Bvh {
	return &Bvh{
		logger: log.New("bvh"),
		useSah: enableSah,
	}
}

// Build the hierarchy over the given primitive bounds. Bounds index i is
// treated as primitive id i; the leaf-order permutation returned by
// Indices() maps leaf positions back to these ids. Building an empty set
// yields an empty tree of height 0.
func (b *Bvh) Build(bounds []types.Box) error {
	b.nodes = b.nodes[:0]
	b.indices = b.indices[:0]
	b.height = 0

	if len(bounds) == 0 {
		return nil
	}

	prims := make([]primRef, len(bounds))
	for i, box := range bounds {
		prims[i] = primRef{
			idx:    int32(i),
			bounds: box,
			center: box.Center(),
		}
	}

	start := time.Now()
	b.partition(prims, 1)
	b.logger.Debugf(
		"built bvh over %d primitives in %d ms: height %d, %d nodes, %d leaf slots",
		len(bounds), time.Since(start).Nanoseconds()/1e6, b.height, len(b.nodes), len(b.indices),
	)

	return nil
}

// Get the leaf-order permutation: Indices()[i] is the original primitive
// id occupying leaf position i.
func (b *Bvh) Indices() []int32 {
	return b.indices
}

// Get the maximum root-to-leaf depth (inclusive). An empty tree has
// height 0, a single-node tree height 1.
func (b *Bvh) Height() int {
	return b.height
}

// Get the node list in preorder.
func (b *Bvh) Nodes() []BuildNode {
	return b.nodes
}

// Get the number of nodes in the hierarchy.
func (b *Bvh) NodeCount() int {
	return len(b.nodes)
}

// Get the bounds of the root node.
func (b *Bvh) Bounds() types.Box {
	if len(b.nodes) == 0 {
		return types.EmptyBox()
	}
	return b.nodes[0].Bounds
}

// Partition prims into a subtree and return the new subtree root index.
func (b *Bvh) partition(prims []primRef, depth int) int32 {
	if depth > b.height {
		b.height = depth
	}

	nodeBounds := types.EmptyBox()
	centroidBounds := types.EmptyBox()
	for _, prim := range prims {
		nodeBounds = nodeBounds.Union(prim.bounds)
		centroidBounds = centroidBounds.GrowPoint(prim.center)
	}

	if len(prims) <= maxLeafPrims {
		return b.createLeaf(nodeBounds, prims)
	}

	var lhs, rhs []primRef
	if b.useSah {
		lhs, rhs = splitSah(prims, centroidBounds)
	} else {
		lhs, rhs = splitMidpoint(prims, centroidBounds)
	}

	// Degenerate centroid distributions defeat both planes; fall back
	// to an equal-count median split to guarantee termination.
	if len(lhs) == 0 || len(rhs) == 0 {
		lhs, rhs = splitMedian(prims, centroidBounds.MaxDim())
	}

	nodeIndex := int32(len(b.nodes))
	b.nodes = append(b.nodes, BuildNode{
		Bounds: nodeBounds,
		Start:  -1,
	})

	left := b.partition(lhs, depth+1)
	right := b.partition(rhs, depth+1)
	b.nodes[nodeIndex].Left = left
	b.nodes[nodeIndex].Right = right

	return nodeIndex
}

func (b *Bvh) createLeaf(bounds types.Box, prims []primRef) int32 {
	start := int32(len(b.indices))
	for _, prim := range prims {
		b.indices = append(b.indices, prim.idx)
	}

	nodeIndex := int32(len(b.nodes))
	b.nodes = append(b.nodes, BuildNode{
		Bounds: bounds,
		Left:   -1,
		Right:  -1,
		Start:  start,
		Count:  int32(len(prims)),
	})

	return nodeIndex
}

// Split at the midpoint of the centroid bounds along the longest axis.
func splitMidpoint(prims []primRef, centroidBounds types.Box) ([]primRef, []primRef) {
	axis := centroidBounds.MaxDim()
	pivot := centroidBounds.Center()[axis]

	split := 0
	for i := range prims {
		if prims[i].center[axis] < pivot {
			prims[i], prims[split] = prims[split], prims[i]
			split++
		}
	}

	return prims[:split], prims[split:]
}

// Split into equal halves ordered by centroid along the given axis.
func splitMedian(prims []primRef, axis int) ([]primRef, []primRef) {
	sort.Slice(prims, func(i, j int) bool {
		return prims[i].center[axis] < prims[j].center[axis]
	})
	mid := len(prims) / 2
	return prims[:mid], prims[mid:]
}

type sahBin struct {
	bounds types.Box
	count  int
}

// Select the split plane by binning primitive centroids along each axis
// and scoring candidate planes with count * surface area of each side.
func splitSah(prims []primRef, centroidBounds types.Box) ([]primRef, []primRef) {
	extents := centroidBounds.Extents()

	bestScore := float32(len(prims)) * centroidBounds.SurfaceArea()
	bestAxis := -1
	bestPlane := float32(0)
	found := false

	for axis := 0; axis < 3; axis++ {
		if extents[axis] <= 0 {
			continue
		}

		var bins [numSahBins]sahBin
		for i := range bins {
			bins[i].bounds = types.EmptyBox()
		}

		scale := float32(numSahBins) / extents[axis]
		for _, prim := range prims {
			bin := int((prim.center[axis] - centroidBounds.Min[axis]) * scale)
			if bin >= numSahBins {
				bin = numSahBins - 1
			}
			bins[bin].bounds = bins[bin].bounds.Union(prim.bounds)
			bins[bin].count++
		}

		// Evaluate the plane after each bin boundary.
		for split := 1; split < numSahBins; split++ {
			lbounds, rbounds := types.EmptyBox(), types.EmptyBox()
			lcount, rcount := 0, 0
			for i := 0; i < split; i++ {
				if bins[i].count > 0 {
					lbounds = lbounds.Union(bins[i].bounds)
					lcount += bins[i].count
				}
			}
			for i := split; i < numSahBins; i++ {
				if bins[i].count > 0 {
					rbounds = rbounds.Union(bins[i].bounds)
					rcount += bins[i].count
				}
			}
			if lcount == 0 || rcount == 0 {
				continue
			}

			score := float32(lcount)*lbounds.SurfaceArea() + float32(rcount)*rbounds.SurfaceArea()
			if score < bestScore {
				bestScore = score
				bestAxis = axis
				bestPlane = centroidBounds.Min[axis] + float32(split)/scale
				found = true
			}
		}
	}

	if !found {
		return splitMidpoint(prims, centroidBounds)
	}

	split := 0
	for i := range prims {
		if prims[i].center[bestAxis] < bestPlane {
			prims[i], prims[split] = prims[split], prims[i]
			split++
		}
	}

	return prims[:split], prims[split:]
}
