package main

import (
	"os"

	"github.com/armadaproject/queuecapacity/cmd/capacitycalc/cmd"
	"github.com/armadaproject/queuecapacity/internal/common/logging"
)

func main() {
	logging.ConfigureCommandLineLogging()
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
