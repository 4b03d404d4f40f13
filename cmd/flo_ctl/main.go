// Command flo_ctl inspects and drains the wallet node's reconciliation queues.
// It opens the configured storage directly, so with the pebble driver the node
// must be stopped first.
package main

import (
	"fmt"
	"os"
)

func main() {
	ctx, stop := signalContext()
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
