package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/TailFlow"
)

func main() {
	flow, err := tailflow.Conf("../../data/config.yaml", tailflow.WithFlowMode(tailflow.ModeAnalyze))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sink, batches, closeBatches := tailflow.NewChannelSink("fanout", 32)
	defer closeBatches()

	done := make(chan struct{})
	go func() {
		defer close(done)
		fanoutWorker("alerts", batches)
	}()

	// analyze mode only tails; feed the file from here
	go publish(ctx, flow.Config().File.Path, flow.Config().File.LineUnit())

	if _, err := flow.Run(ctx, tailflow.StreamOutSink(sink)); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
	closeBatches()
	<-done
}

func publish(ctx context.Context, path, unit string) {
	pub, err := tailflow.NewPublisher(path, unit)
	if err != nil {
		log.Printf("publisher: %v", err)
		return
	}
	defer pub.Close()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	v := 20.0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v += 0.25
			if err := pub.PublishValue(v); err != nil {
				log.Printf("publish: %v", err)
				return
			}
		}
	}
}

func fanoutWorker(name string, batches <-chan []tailflow.Snapshot) {
	for batch := range batches {
		for _, s := range batch {
			if s.H1.OK && s.H1.Mean > 30 {
				fmt.Printf("[%s] 1h average %.2f above threshold at %s\n", name, s.H1.Mean, s.AsOf.Format(time.RFC3339))
				continue
			}
			fmt.Printf("[%s] %d readings in the last hour\n", name, s.H1.Count)
		}
	}
}
