package main

import (
	"github.com/robotalks/motorlink/pkg/cli/sh"
	"github.com/robotalks/motorlink/pkg/l1/env"
)

//go-build: CGO_ENABLED=0

func init() {
	env.SetupConnectorFlags()
}

func main() {
	sh.Main()
}
