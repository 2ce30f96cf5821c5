// Command pinpoint-analytics builds and deploys the Pinpoint analytics stack.
package main

import (
	"os"

	"github.com/leapstack-labs/pinpoint-analytics/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
