package main

import (
	"github.com/jo-hoe/ocrmd/cmd/ocrmd/cmd"
)

func main() {
	cmd.Execute()
}
