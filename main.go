// genircon is an interactive console client for GeniRCON servers.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"genircon/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "genircon: %v\n", err)
		os.Exit(1)
	}
}
