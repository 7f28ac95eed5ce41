package main

import (
	"fmt"
	"os"

	"github.com/mattepiu/drift/internal/cli"
)

// Populated at build time via -ldflags.
var (
	version = ""
	commit  = ""
	date    = ""
)

func main() {
	cli.SetBuildInfo(version, commit, date)
	if err := cli.Run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "drift: %v\n", err)
		os.Exit(1)
	}
}
