package main

import (
	"flag"
	"log"

	"github.com/pulsedesk/slack-sync/pkg/app/api"
	"github.com/pulsedesk/slack-sync/pkg/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	if err := api.NewServer(cfg).Run(); err != nil {
		log.Fatalf("syncd exited with error: %v", err)
	}
}
