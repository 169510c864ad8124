package main

import (
	"os"

	"github.com/alecthomas/kong"
)

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("dashboard"),
		kong.Description("Course dashboard state service"),
		kong.UsageOnError(),
	)
	if err := ctx.Run(&cli); err != nil {
		ctx.Errorf("%v", err)
		os.Exit(1)
	}
}
