package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/ghalamif/TailFlow/pkg/tailflow"
)

func main() {
	flow, err := tailflow.Conf("../../data/config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	callback := func(batch []tailflow.Snapshot) error {
		for _, s := range batch {
			fmt.Printf("%s source=%s 1h=%s 6h=%s 12h=%s\n",
				s.AsOf.Format(time.RFC3339),
				s.Source,
				describe(s.H1),
				describe(s.H6),
				describe(s.H12),
			)
		}
		return nil
	}

	// replay a short burst instead of the configured simulator
	_, err = flow.
		StreamIN(tailflow.StreamInValues(time.Second, 21.5, 22.0, 22.75, 23.1)).
		Run(ctx, tailflow.StreamOutCallback("stdout", callback))
	if err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}

func describe(avg tailflow.WindowAverage) string {
	if !avg.OK {
		return "n/a"
	}
	return fmt.Sprintf("%.2f(n=%d)", avg.Mean, avg.Count)
}
