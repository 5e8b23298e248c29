package main

import (
	"fmt"
	"os"

	"github.com/jghoshh/arise/backend"
	"github.com/jghoshh/arise/frontend"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("usage: arise [server|shell]")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "server":
		backend.RunBackend()
	case "shell":
		frontend.RunFrontend()
	default:
		fmt.Printf("unknown command %q, expected server or shell\n", os.Args[1])
		os.Exit(1)
	}
}
