package main

import (
	cmd "partnerbundle/cmd/partnerbundle"
)

var (
	// Version is set at build time with -ldflags "-X main.Version=..."
	Version = "devel"
	// Build is set at build time with -ldflags "-X main.Build=..."
	Build = "unknown"
)

func main() {
	cmd.Run(Version, Build)
}
