// Package main provides the tablejoin command.
package main

import (
	"os"

	"github.com/NerdMeNot/tablejoin/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
