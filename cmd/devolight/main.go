// Command devolight routes devotional messages to persona agents and
// serves the routing API.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
