package intersect

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/achilleasa/rigel/compute"
	"github.com/achilleasa/rigel/kernels"
)

// When true the strategies compile the kernel sources embedded in the
// binary; otherwise the sources are read from KernelDir at construction
// time (useful while iterating on kernel code).
var EmbedKernels = true

// Root of the on-disk kernel tree used when EmbedKernels is false.
var KernelDir = "kernels"

// Select the fat-BVH kernel source for a platform. OpenCL-dialect source
// also serves the software reference device, which consumes the same
// entry point names and buffer layouts.
func kernelSource(platform compute.Platform) (source string, headers []string, err error) {
	switch platform {
	case compute.PlatformOpenCL, compute.PlatformSoftware:
		if EmbedKernels {
			return kernels.FatBvhOpenCL(), nil, nil
		}
		return readKernel(filepath.Join(KernelDir, "CL", "fatbvh.cl"), filepath.Join(KernelDir, "CL", "common.cl"))
	case compute.PlatformVulkan:
		if EmbedKernels {
			return kernels.FatBvhVulkan(), nil, nil
		}
		return readKernel(filepath.Join(KernelDir, "GLSL", "fatbvh.comp"))
	}
	return "", nil, fmt.Errorf("fatbvh: no kernel source for platform %s", platform)
}

func readKernel(path string, headerPaths ...string) (string, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("fatbvh: loading kernel source: %w", err)
	}

	headers := make([]string, 0, len(headerPaths))
	for _, hdr := range headerPaths {
		hdrData, err := os.ReadFile(hdr)
		if err != nil {
			return "", nil, fmt.Errorf("fatbvh: loading kernel header: %w", err)
		}
		headers = append(headers, string(hdrData))
	}

	return strings.Join(append(headers, string(data)), "\n"), nil, nil
}
