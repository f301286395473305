package main

import (
	"fmt"
	"os"

	"github.com/sys-apps-go/search/internal/cmd"
)

func main() {
	if err := cmd.NewSizeCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
