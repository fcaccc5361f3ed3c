// Command api serves the NewsAgent Job API: job submission, status
// introspection, and dead-letter queue operations.
package main

import (
	"fmt"
	"os"

	"github.com/jonesrussell/newsagent/internal/bootstrap"
)

func main() {
	if err := bootstrap.StartAPI(); err != nil {
		fmt.Fprintf(os.Stderr, "api: %v\n", err)
		os.Exit(1)
	}
}
