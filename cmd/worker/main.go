// Command worker consumes the job queue and runs the enrichment pipeline.
package main

import (
	"fmt"
	"os"

	"github.com/jonesrussell/newsagent/internal/bootstrap"
)

func main() {
	if err := bootstrap.StartWorker(); err != nil {
		fmt.Fprintf(os.Stderr, "worker: %v\n", err)
		os.Exit(1)
	}
}
