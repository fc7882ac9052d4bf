// Command notectl is the operator's tool for the tenant lifecycle: checking
// configuration and inspecting or provisioning a user's tenant database
// outside of the sign-in path.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
