package main

import (
	"context"
	"log"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/algojuke/discovery/internal/config"
	"github.com/algojuke/discovery/internal/wiring"
	"github.com/algojuke/discovery/pkg/enrichment"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Printf("Starting enrichment worker: address=%s namespace=%s queue=%s",
		cfg.Temporal.Address, cfg.Temporal.Namespace, cfg.Temporal.TaskQueue)

	db, store, err := wiring.OpenIndex(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to open index: %v", err)
	}
	defer db.Close()

	encoder, err := wiring.NewEncoder(cfg)
	if err != nil {
		log.Fatalf("Failed to create encoder: %v", err)
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.Address,
		Namespace: cfg.Temporal.Namespace,
	})
	if err != nil {
		log.Fatalf("Failed to create Temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	w.RegisterWorkflowWithOptions(enrichment.TrackEnrichmentWorkflow, workflow.RegisterOptions{
		Name: cfg.Temporal.WorkflowName,
	})
	acts := enrichment.NewActivities(store, encoder)
	w.RegisterActivity(acts.EnrichTrack)

	log.Printf("Registered workflow %s and activity EnrichTrack", cfg.Temporal.WorkflowName)

	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}
