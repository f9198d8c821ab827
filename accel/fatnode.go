package accel

import "github.com/achilleasa/rigel/types"

// The size of a translated node in bytes.
const FatNodeSize = 48

// A device-resident BVH node augmented with parent and sibling links.
// Nodes are emitted in preorder; the record is 48 bytes so an array of
// them uploads with 16-byte alignment.
type FatNode struct {
	// Bounding box min extent. Left holds the index of the left child
	// or -1 for leaves.
	Min  types.Vec3
	Left int32

	// Bounding box max extent. Right holds the index of the right child
	// or -1 for leaves.
	Max   types.Vec3
	Right int32

	// Parent node index; -1 for the root.
	Parent int32

	// Index of the other child of the parent; -1 for the root.
	Sibling int32

	// Leaf primitive range in BVH leaf order, indexing the reordered
	// face buffer. Start is -1 for internal nodes.
	Start int32
	Cnt   int32
}

// Translates a host BVH into the fat node array uploaded to the device.
type FatNodeTranslator struct {
	Nodes []FatNode
}

// Convert the host hierarchy. Leaf ranges reference positions in the
// reordered face buffer, not original primitive ids. Processing an empty
// hierarchy yields an empty node list.
func (t *FatNodeTranslator) Process(bvh *Bvh) {
	t.Nodes = t.Nodes[:0]
	if bvh.NodeCount() == 0 {
		return
	}
	t.emit(bvh.Nodes(), 0, -1, -1)
}

// Emit the subtree rooted at host node hostIdx and return its index in
// the output array.
func (t *FatNodeTranslator) emit(hostNodes []BuildNode, hostIdx, parent, sibling int32) int32 {
	host := &hostNodes[hostIdx]

	outIdx := int32(len(t.Nodes))
	t.Nodes = append(t.Nodes, FatNode{
		Min:     host.Bounds.Min,
		Max:     host.Bounds.Max,
		Left:    -1,
		Right:   -1,
		Parent:  parent,
		Sibling: sibling,
		Start:   host.Start,
		Cnt:     host.Count,
	})

	if host.Left != -1 {
		left := t.emit(hostNodes, host.Left, outIdx, -1)
		right := t.emit(hostNodes, host.Right, outIdx, left)
		t.Nodes[left].Sibling = right
		t.Nodes[outIdx].Left = left
		t.Nodes[outIdx].Right = right
		t.Nodes[outIdx].Start = -1
		t.Nodes[outIdx].Cnt = 0
	}

	return outIdx
}
