package main

import (
	"os"

	"github.com/talos-perf/talos/cmd/talos/cmd"
	"github.com/talos-perf/talos/internal/common"
	"github.com/talos-perf/talos/internal/common/taloserrors"
)

// Config is handled by cmd/root.go
func main() {
	common.ConfigureLogging(false)
	err := cmd.RootCmd().Execute()
	os.Exit(taloserrors.ExitCode(err))
}
