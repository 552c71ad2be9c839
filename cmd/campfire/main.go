package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jwebster45206/campfire/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		if !errors.Is(err, cli.ErrValidationFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
