package main

import (
	"os"

	"github.com/ducminhle1904/crypto-risk-engine/cmd/risk-engine/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
