// Command buildd runs the self-hosted template build service.
package main

import (
	"context"
	"fmt"
	"log"

	"github.com/onewithdev/peterbot-sandbox/internal/buildd"
	"github.com/onewithdev/peterbot-sandbox/internal/config"
	"github.com/onewithdev/peterbot-sandbox/internal/ecr"
	"github.com/onewithdev/peterbot-sandbox/internal/events"
	"github.com/onewithdev/peterbot-sandbox/internal/podman"
	"github.com/onewithdev/peterbot-sandbox/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx := context.Background()

	engine, err := podman.NewClient(cfg.Engine)
	if err != nil {
		log.Fatalf("failed to initialize container engine: %v", err)
	}
	version, err := engine.Version(ctx)
	if err != nil {
		log.Fatalf("container engine not responding: %v", err)
	}
	log.Printf("buildd: using %s %s", cfg.Engine, version)

	store, err := buildd.OpenStore(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to open build store: %v", err)
	}
	defer store.Close()

	registry := buildd.NewRegistry()
	hub := buildd.NewHub()
	builder := buildd.NewBuilder(engine, store, registry, hub).
		WithContextDir(cfg.ContextDir)

	if cfg.ECRRegistry != "" {
		ecrCfg := &ecr.Config{
			Registry:   cfg.ECRRegistry,
			Repository: cfg.ECRRepository,
			Region:     cfg.ECRRegion,
		}
		builder.WithECR(ecrCfg)
		log.Printf("buildd: pushing template images to %s/%s", ecrCfg.Registry, ecrCfg.Repository)
	}

	if cfg.NATSURL != "" {
		pub, err := events.NewPublisher(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect event publisher: %v", err)
		}
		defer pub.Close()
		builder.WithEvents(pub)
		log.Printf("buildd: publishing build events to %s", cfg.NATSURL)
	}

	if cfg.S3Bucket != "" {
		logStore, err := storage.NewLogStore(storage.S3Config{
			Endpoint:        cfg.S3Endpoint,
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			ForcePathStyle:  cfg.S3ForcePathStyle,
		})
		if err != nil {
			log.Fatalf("failed to initialize log archive: %v", err)
		}
		builder.WithLogArchive(logStore)
		log.Printf("buildd: archiving build logs to s3://%s", cfg.S3Bucket)
	}

	if cfg.APIKey == "" {
		log.Printf("buildd: WARNING: no API key configured, authentication disabled")
	}

	srv := buildd.NewServer(builder, store, registry, hub, cfg.APIKey)
	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("buildd: listening on %s", addr)
	if err := srv.Start(addr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
