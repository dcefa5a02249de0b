package main

import (
	"os"

	"github.com/0xArtex/excalidraw-mcp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
