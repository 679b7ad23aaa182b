package main

import (
	"flag"
	"log"
	"os"

	"SigFuse/internal/di"
	"SigFuse/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	var (
		cfg *config.Config
		err error
	)
	if _, statErr := os.Stat(*configPath); statErr == nil {
		cfg, err = config.LoadWithEnv(*configPath)
	} else {
		log.Printf("config file %s not found, using defaults", *configPath)
		cfg, err = config.Default()
	}
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s redis=%s clickhouse=%v kafka=%v",
		cfg.Environment, cfg.Redis.Addr, cfg.ClickHouse.Enabled, cfg.Kafka.Enabled)

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
