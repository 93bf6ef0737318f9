package main

import (
	"fmt"
	"os"

	"github.com/veilcash/go-veil/cmd/veil/launcher"
)

func main() {
	if err := launcher.Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
