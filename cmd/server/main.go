package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"refhub/entity"
	"refhub/impl/attribution"
	"refhub/impl/auth"
	"refhub/impl/bootstrap"
	"refhub/impl/core"
	"refhub/impl/ledger"
	"refhub/impl/notifier"
	"refhub/impl/registry"
	"refhub/internal/config"
	"refhub/internal/database"
	"refhub/internal/http-server/api"
	"refhub/internal/telegram"
	"refhub/internal/whatsapp"
	"refhub/lib/logger"
	"refhub/lib/sl"
)

func main() {
	configPath := flag.String("conf", "config.yml", "path to config file")
	logPath := flag.String("log", "/var/log/refhub.log", "path to log file")
	flag.Parse()

	conf := config.MustLoad(*configPath)
	log := logger.SetupLogger(conf.Env, *logPath)
	log.Info("starting refhub", slog.String("config", *configPath), slog.String("env", conf.Env))

	db := database.NewMongoClient(conf)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.EnsureIndexes(ctx); err != nil {
		log.Error("ensure indexes", sl.Err(err))
		os.Exit(1)
	}

	reg := registry.New(db, log)
	seed := bootstrap.New(db, reg, conf.DefaultAdmin, log)
	if err := seed.Ensure(ctx); err != nil {
		log.Error("seed default admin", sl.Err(err))
		os.Exit(1)
	}

	ntf := notifier.New(db, log)
	ntf.Register(entity.ChannelWhatsApp, whatsapp.NewClient(conf.WhatsApp.BaseUrl, log))
	if conf.Telegram.Enabled {
		sender, err := telegram.NewSender(conf.Telegram.ApiKey, log)
		if err != nil {
			log.Error("telegram sender", sl.Err(err))
			os.Exit(1)
		}
		ntf.Register(entity.ChannelTelegram, sender)
	}

	res := attribution.New(reg, db, seed, log)
	led := ledger.New(db, log)
	ath := auth.New(db, conf.Auth.JwtSecret, conf.Auth.TokenTTL)

	handler := core.New(db, ath, reg, res, led, ntf, conf.Auth.BroadcastKey, log)

	if err := api.New(conf, log, handler); err != nil {
		log.Error("api server stopped", sl.Err(err))
		os.Exit(1)
	}
}
