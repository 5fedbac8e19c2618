// Command smsctl runs operator tasks: migrations, seeding, tokens and inbound simulation.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
