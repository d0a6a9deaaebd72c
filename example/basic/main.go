package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/ghalamif/TailFlow"
)

func main() {
	flow, err := tailflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := flow.Run(ctx)
	if err != nil {
		log.Fatalf("runtime exited: %v", err)
	}
	log.Printf("done: %s", summary)
}
