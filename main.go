package main

import (
	"os"

	"github.com/achilleasa/rigel/cmd"
	"github.com/urfave/cli"
)

func main() {
	cli.VersionFlag = cli.BoolFlag{
		Name:  "version",
		Usage: "print only the version",
	}

	app := cli.NewApp()
	app.Name = "rigel"
	app.Usage = "run GPU-accelerated ray intersection queries"
	app.Version = "0.1.0"
	app.Flags = []cli.Flag{
		cli.BoolFlag{
			Name:  "v",
			Usage: "enable verbose logging",
		},
		cli.BoolFlag{
			Name:  "vv",
			Usage: "enable even more verbose logging",
		},
	}
	app.Before = cmd.SetupLogging
	app.Commands = []cli.Command{
		{
			Name:   "list-devices",
			Usage:  "list available opencl devices",
			Action: cmd.ListDevices,
		},
		{
			Name:  "bench",
			Usage: "benchmark the fat-bvh strategy on a synthetic scene",
			Description: `
Build a synthetic scene out of a triangle grid plus an instanced copy,
preprocess it with the fat-bvh strategy on the software reference device
and fire a batch of primary rays at it, reporting build and query
timings.`,
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "grid",
					Value: 64,
					Usage: "triangle grid side length",
				},
				cli.IntFlag{
					Name:  "rays",
					Value: 1 << 16,
					Usage: "number of rays per query batch",
				},
				cli.BoolFlag{
					Name:  "sah",
					Usage: "build the hierarchy with the SAH splitter",
				},
			},
			Action: cmd.Bench,
		},
	}

	app.Run(os.Args)
}
