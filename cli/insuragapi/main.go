package main

import (
	"os"

	"github.com/joho/godotenv"

	apicmder "github.com/papercomputeco/insurag/cmd/insurag/serve/api"
)

func main() {
	_ = godotenv.Load()

	cmd := apicmder.NewAPICmd()
	cmd.Use = "insuragapi"
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .insurag/ config directory")
	cmd.PersistentFlags().String("log-format", "auto", "Log output: auto, pretty, json or text")

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
