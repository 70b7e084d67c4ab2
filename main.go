package main

import (
	"log"

	"github.com/beanbocchi/cumulus/internal"
)

func main() {
	if err := internal.Start(); err != nil {
		log.Panicf("failed to start gateway: %v", err)
	}

	select {}
}
