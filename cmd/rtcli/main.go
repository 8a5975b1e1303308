package main

//go-build: CGO_ENABLED=0

import (
	"github.com/robotalks/rtserial/pkg/cli/sh"
	"github.com/robotalks/rtserial/pkg/config"
)

func init() {
	config.SetupFlags()
}

func main() {
	sh.Main()
}
