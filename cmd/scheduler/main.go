// Command scheduler runs the discovery loop and the source/article admin
// surface.
package main

import (
	"fmt"
	"os"

	"github.com/jonesrussell/newsagent/internal/bootstrap"
)

func main() {
	if err := bootstrap.StartScheduler(); err != nil {
		fmt.Fprintf(os.Stderr, "scheduler: %v\n", err)
		os.Exit(1)
	}
}
