package main

import (
	"log"

	"github.com/janwychowaniak/flowbridge/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
