package pipeline

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ghalamif/TailFlow/internal/adapters/tail"
	"github.com/ghalamif/TailFlow/internal/ports"
)

// EchoService prints every line appended to the file from now on.
type EchoService struct {
	path     string
	out      io.Writer
	interval time.Duration
	obs      ports.Observability
	prefix   string
}

func NewEchoService(path string, out io.Writer, pollInterval time.Duration, obs ports.Observability) *EchoService {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &EchoService{path: path, out: out, interval: pollInterval, obs: obs}
}

func (e *EchoService) String() string { return "echo" }

// WithPrefix labels every echoed line, e.g. "[reader] ".
func (e *EchoService) WithPrefix(p string) *EchoService {
	e.prefix = p
	return e
}

func (e *EchoService) Serve(ctx context.Context) error {
	r, err := tail.Open(e.path, tail.WithObserver(func(ev tail.Event) {
		e.obs.LogWarn("echo_file_"+string(ev.Kind), ports.Field{Key: "path", Value: e.path})
	}))
	if err != nil {
		return err
	}
	defer r.Close()

	e.obs.LogInfo("tailing", ports.Field{Key: "path", Value: e.path})
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, ok, err := r.Poll()
		if err != nil {
			e.obs.LogError("tail_poll_failed", err, ports.Field{Key: "path", Value: e.path})
		}
		if ok {
			if _, err := fmt.Fprintln(e.out, e.prefix+strings.TrimSpace(line)); err != nil {
				return fmt.Errorf("echo: %w", err)
			}
			continue
		}
		if !sleep(ctx, e.interval) {
			return ctx.Err()
		}
	}
}
