package main

import (
	"log"

	"github.com/input-output-hk/catalyst-forge-libs/aws/s3copy/cmd/s3copy/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
