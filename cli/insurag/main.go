package main

import (
	"os"

	"github.com/joho/godotenv"

	insuragcmder "github.com/papercomputeco/insurag/cmd/insurag"
)

func main() {
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	cmd := insuragcmder.NewInsuragCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
