package main

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/code-o-holic/ai-toolkit-datasets/internal/config"
	httpserver "github.com/code-o-holic/ai-toolkit-datasets/internal/http"
	"github.com/code-o-holic/ai-toolkit-datasets/internal/services"
	"github.com/code-o-holic/ai-toolkit-datasets/internal/settings"
	"github.com/code-o-holic/ai-toolkit-datasets/internal/worker"
)

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	settingsStore, err := settings.NewStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to init settings store: %v", err)
	}

	captioner := worker.NewCaptioner(settingsStore, services.NewCaptionService(), cfg.OpenAIAPIKey, cfg.CaptionInterval, log)
	go captioner.Start(context.Background())

	srv, err := httpserver.NewServer(cfg, settingsStore, log)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	if err := srv.Run(); err != nil {
		log.Fatalf("server stopped with error: %v", err)
	}
}
