// Package main implements the querymigrate CLI.
package main

import (
	"context"
	"os"

	"github.com/hemanthest/dataquerymigration/internal/cli"
)

func main() {
	os.Exit(cli.Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
