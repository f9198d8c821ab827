package cmd

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/achilleasa/rigel/compute"
	"github.com/achilleasa/rigel/compute/soft"
	"github.com/achilleasa/rigel/intersect"
	"github.com/achilleasa/rigel/scene"
	"github.com/achilleasa/rigel/types"
	"github.com/urfave/cli"
)

// Benchmark the fat-bvh strategy against a synthetic scene on the
// software reference device.
func Bench(ctx *cli.Context) error {
	gridSide := ctx.Int("grid")
	numRays := ctx.Int("rays")
	if gridSide < 1 || numRays < 1 {
		return fmt.Errorf("bench: grid and ray counts must be positive")
	}

	world := scene.NewWorld()
	if ctx.Bool("sah") {
		world.Options.SetOption(scene.OptionBvhBuilder, "sah")
	}

	mesh := gridMesh(gridSide)
	world.AttachShape(mesh)

	// An instanced copy floating above the grid doubles the triangle
	// count without duplicating geometry host-side.
	inst := scene.NewInstance(mesh)
	inst.SetId(1)
	inst.SetTransform(types.Translate(types.XYZ(0, 0, 2)))
	world.AttachShape(inst)

	dev := soft.NewDevice()
	defer dev.Close()

	strategy, err := intersect.NewFatBvhStrategy(dev)
	if err != nil {
		return err
	}
	defer strategy.Close()

	start := time.Now()
	if err = strategy.Preprocess(world); err != nil {
		return err
	}
	logger.Noticef(
		"preprocessed %d faces / %d vertices (bvh height %d) in %d ms",
		strategy.NumFaces(), strategy.NumVertices(), strategy.Height(),
		time.Since(start).Nanoseconds()/1e6,
	)

	// Fire a uniform grid of downward rays over the mesh footprint.
	rays := make([]intersect.Ray, numRays)
	for i := range rays {
		u := float32(i%gridSide) / float32(gridSide)
		v := float32(i/gridSide%gridSide) / float32(gridSide)
		rays[i] = intersect.NewRay(types.XYZ(u, v, 5), types.XYZ(0, 0, -1), 100)
	}

	rayBuf, err := dev.CreateBuffer(len(rays)*intersect.RaySize, compute.BufferRead, rayBytes(rays))
	if err != nil {
		return err
	}
	defer dev.DeleteBuffer(rayBuf)

	hitBuf, err := dev.CreateBuffer(len(rays)*intersect.IntersectionSize, compute.BufferWrite, nil)
	if err != nil {
		return err
	}
	defer dev.DeleteBuffer(hitBuf)

	start = time.Now()
	ev, err := strategy.QueryIntersection(0, rayBuf, len(rays), hitBuf, nil)
	if err != nil {
		return err
	}
	if err = ev.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	hitData := make([]byte, hitBuf.Size())
	if _, err = dev.ReadBuffer(hitBuf, 0, 0, hitData); err != nil {
		return err
	}

	hits := unsafe.Slice((*intersect.Intersection)(unsafe.Pointer(&hitData[0])), len(rays))
	numHits := 0
	for i := range hits {
		if hits[i].Hit() {
			numHits++
		}
	}

	logger.Noticef(
		"traced %d rays in %d ms (%.2f Mrays/s), %d hits",
		len(rays), elapsed.Nanoseconds()/1e6,
		float64(len(rays))/elapsed.Seconds()/1e6, numHits,
	)

	return nil
}

// Build a gridSide x gridSide quad grid over the unit square at z=0,
// split into two triangles per cell.
func gridMesh(gridSide int) *scene.Mesh {
	verts := make([]types.Vec3, 0, (gridSide+1)*(gridSide+1))
	for y := 0; y <= gridSide; y++ {
		for x := 0; x <= gridSide; x++ {
			verts = append(verts, types.XYZ(float32(x)/float32(gridSide), float32(y)/float32(gridSide), 0))
		}
	}

	indices := make([]int32, 0, gridSide*gridSide*6)
	stride := int32(gridSide + 1)
	for y := int32(0); y < int32(gridSide); y++ {
		for x := int32(0); x < int32(gridSide); x++ {
			v0 := y*stride + x
			indices = append(indices,
				v0, v0+1, v0+stride,
				v0+1, v0+stride+1, v0+stride,
			)
		}
	}

	return scene.NewMesh(verts, indices)
}

func rayBytes(rays []intersect.Ray) []byte {
	if len(rays) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&rays[0])), len(rays)*intersect.RaySize)
}
