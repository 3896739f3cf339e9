// Command consentctl drives the consent store from a terminal. It runs the
// same reconciliation as the browser against a marquee server, keeping the
// local copy and the visitor identity in a state directory.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
