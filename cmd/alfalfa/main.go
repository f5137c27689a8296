package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root, cmdCtx := newRootCommand()
	err := root.ExecuteContext(ctx)
	stop()
	if closeErr := cmdCtx.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		// An interrupted serialize keeps the frames stored so far.
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "alfalfa:", err)
		}
		os.Exit(1)
	}
}
