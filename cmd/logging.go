package cmd

import (
	"github.com/achilleasa/rigel/log"
	"github.com/urfave/cli"
)

var logger = log.New("rigel")

// Adjust log verbosity from the global cli flags.
func SetupLogging(ctx *cli.Context) error {
	if ctx.GlobalBool("v") {
		log.SetLevel(log.Info)
	}

	if ctx.GlobalBool("vv") {
		log.SetLevel(log.Debug)
	}

	return nil
}
