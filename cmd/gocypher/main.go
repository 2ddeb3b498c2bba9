package main

import (
	"github.com/brunobiangulo/gocypher/internal/cli"
)

// Set by ldflags at build time
var (
	version = ""
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cli.SetVersionInfo(version, commit, date)
	cli.Execute()
}
