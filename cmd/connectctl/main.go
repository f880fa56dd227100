// connectctl configures cloud-storage connectors for a data platform project.
package main

import (
	"os"

	"github.com/datalab/connectctl/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
