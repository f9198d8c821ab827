package intersect

import "errors"

var (
	// The device cannot allocate the traversal stack for a full ray batch.
	ErrStackMemory = errors.New("fatbvh: device cannot allocate enough stack memory, try the plain bvh strategy instead")

	// The built hierarchy is deeper than the per-ray stack bound.
	ErrTooDeep = errors.New("fatbvh: hierarchy depth risks a traversal stack overflow for this scene, try the plain bvh strategy instead")
)
