package main

import (
	"os"

	"github.com/retailcore/noos-go/internal/adapters/cli"
)

func main() {
	os.Exit(cli.Execute())
}
