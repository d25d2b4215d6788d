package main

import (
	"os"

	"github.com/1rokoko/stripe-deposit-sub000/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		os.Exit(1)
	}
}
