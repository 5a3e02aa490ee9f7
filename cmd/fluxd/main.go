package main

import (
	"os"

	"fluxd/internal/cli"
)

func main() {
	os.Exit(cli.Main())
}
