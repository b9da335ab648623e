package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/osce/go/internal/config"
	"github.com/mcdev12/osce/go/internal/natsbus"
)

func setupLogging(level string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func natsConfig(cfg config.AppConfig) natsbus.Config {
	nc := natsbus.DefaultConfig()
	nc.URL = cfg.NATSURL
	nc.PublishTicks = cfg.PublishTicks
	return nc
}
