package main

import (
	"os"

	"labattend/internal/cli"
)

func main() {
	os.Exit(cli.Execute(cli.ConfigOpener, os.Args[1:], os.Stdout, os.Stderr))
}
