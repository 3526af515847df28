package main

import (
	"context"
	"fmt"
	"os"

	"feedcore/internal/cli"
)

func main() {
	if err := cli.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err.Message)
		os.Exit(err.Code)
	}
}
