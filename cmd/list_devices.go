package cmd

import (
	"fmt"
	"os"

	"github.com/achilleasa/rigel/compute/opencl"
	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli"
)

// List available opencl devices.
func ListDevices(ctx *cli.Context) error {
	clPlatforms, err := opencl.GetPlatformInfo()
	if err != nil {
		return err
	}

	logger.Noticef("system provides %d opencl platform(s)", len(clPlatforms))

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Platform", "Version", "Device", "Type", "Speed (GFlops)"})
	for pIdx, platformInfo := range clPlatforms {
		for _, device := range platformInfo.Devices {
			table.Append([]string{
				fmt.Sprintf("%02d: %s", pIdx, platformInfo.Name),
				platformInfo.Version,
				device.Name,
				device.Type.String(),
				fmt.Sprintf("%d", device.Speed),
			})
		}
	}
	table.Render()

	return nil
}
