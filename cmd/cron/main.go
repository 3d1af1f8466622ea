// Command cricmirror runs the Cricbuzz sync scheduler and its maintenance commands.
package main

import (
	"os"

	"github.com/cricmirror/core/pkg/logger"
)

func main() {
	logger.SetupLogger()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
