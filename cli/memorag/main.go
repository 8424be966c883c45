package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	memoragcmder "github.com/papercomputeco/memorag/cmd/memorag"
	"github.com/papercomputeco/memorag/pkg/cliui"
)

func main() {
	// Provider API keys may live in a .env file.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := memoragcmder.NewMemoragCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", cliui.FailMark, cliui.ErrorStyle.Render(err.Error()))
		stop()
		os.Exit(1)
	}
}
