// Command scalectl drives the scheduling engine from a terminal: preflight,
// gated generate/simulate with risk acknowledgment, weekly analysis,
// governance and exports.
package main

import (
	"os"
)

func main() {
	os.Exit(Run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}
