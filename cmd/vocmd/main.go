package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/doeshing/vocmd/internal/infrastructure/cli"
)

func main() {
	ctx := context.Background()
	opts := cli.Options{
		Verbose:   envFlag("VOCMD_DEBUG"),
		Ephemeral: envFlag("VOCMD_EPHEMERAL"),
	}

	root, closeContainer, err := cli.NewRootCmd(ctx, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	err = root.ExecuteContext(ctx)
	if cerr := closeContainer(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func envFlag(name string) bool {
	v := os.Getenv(name)
	return strings.EqualFold(v, "1") || strings.EqualFold(v, "true")
}
