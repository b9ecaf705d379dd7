package main

import (
	"github.com/BioHazard786/meshroom/internal/cli"
)

func main() {
	cli.Execute()
}
