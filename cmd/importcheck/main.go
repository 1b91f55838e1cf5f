package main

import (
	"os"

	"importcheck/internal/ui/cli"
)

func main() {
	os.Exit(cli.Run(os.Args[1:]))
}
