package main

import (
	"os"

	"github.com/altolabs/clefshift/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
