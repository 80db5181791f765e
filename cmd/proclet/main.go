package main

import (
	"github.com/Paintersrp/proclet/internal/cli"
	"github.com/Paintersrp/proclet/internal/metrics"
)

func main() {
	metrics.EmitBuildInfo()
	cli.Execute()
}
