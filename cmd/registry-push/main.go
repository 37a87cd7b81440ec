package main

import (
	"log"

	"github.com/opdev/registry-push/cmd/registry-push/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
