package main

import (
	"errors"
	"log"
	"os"

	"intakebot/bot"
	"intakebot/core/bootstrap"
	corecmd "intakebot/core/cmd"
	coreconfig "intakebot/core/config"
	coretelegram "intakebot/core/telegram"
	"intakebot/guard"
)

type configCarrier struct {
	cfg *coreconfig.Config
}

func (c configCarrier) CoreConfig() *coreconfig.Config { return c.cfg }

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			cfg, err := coreconfig.Load(path)
			if err != nil {
				return nil, err
			}
			return configCarrier{cfg: cfg}, nil
		},
		Bootstrap: func(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, func(), error) {
			res, err := bootstrap.Run(bootstrap.Options{Config: carrier.CoreConfig()})
			if err != nil {
				return nil, nil, err
			}
			app := bot.New(carrier.CoreConfig(), res.Store)
			return app, res.Guard.Release, nil
		},
	})
	if err != nil {
		// Guard contention and a live competing poller are graceful refusals,
		// not failures: exactly one instance is supposed to win.
		if errors.Is(err, guard.ErrActiveInstance) || errors.Is(err, coretelegram.ErrConflict) {
			log.Printf("yielding to active instance: %v", err)
			os.Exit(0)
		}
		log.Fatalf("fatal: %v", err)
	}
}
