package main

import (
	"os"

	"github.com/ayusman/mudra/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
