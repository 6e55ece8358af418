package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"producer-service/internal/cli"
)

func main() {
	// Delivery failures are logged by the command itself and never reach here.
	// Only CLI misuse or a sink that cannot listen exits non-zero.
	if err := cli.NewRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("Failed to execute command")
		os.Exit(1)
	}
}
