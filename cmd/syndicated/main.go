package main

import (
	"log"

	"tokensyndicate/services/syndicated"
)

func main() {
	if err := syndicated.Main(); err != nil {
		log.Fatal(err)
	}
}
