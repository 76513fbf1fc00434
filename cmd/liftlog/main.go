package main

import (
	"os"

	"github.com/claude/liftlog/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
