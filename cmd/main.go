package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"trivia-room-service/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		log.Error().Err(err).Msg("trivia-room-service failed")
		os.Exit(1)
	}
}
