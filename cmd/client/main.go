package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/goalkeeper/internal/client/cli"
)

func main() {

	ctx := context.Background()
	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

}
