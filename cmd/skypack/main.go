package main

import (
	"os"

	"github.com/albertocavalcante/skypack/internal/cmd/skypack"
)

func main() {
	os.Exit(skypack.Run(os.Args[1:]))
}
