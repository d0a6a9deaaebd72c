package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ghalamif/TailFlow"
	"github.com/ghalamif/TailFlow/internal/logging"
)

const defaultMetricsURL = "http://localhost:9100/metrics"

// statsTargets are the counters printed by the stats command, in order.
var statsTargets = []string{
	"tailflow_records_written_total",
	"tailflow_records_ingested_total",
	"tailflow_lines_rejected_total",
	"tailflow_snapshots_emitted_total",
	"tailflow_truncations_total",
	"tailflow_queue_length",
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "tailflow: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cmd, arg, err := parseArgs(args)
	if err != nil {
		printUsage(os.Stderr)
		return err
	}

	switch cmd {
	case "help":
		printUsage(os.Stdout)
		return nil
	case "validate":
		return validateCommand()
	case "stats":
		return statsCommand(arg)
	}

	mode, _ := modeFor(cmd)
	return runtimeCommand(mode, arg)
}

// parseArgs splits the command line into a command and its optional
// argument. A bare path runs the full pipeline on it.
func parseArgs(args []string) (cmd, arg string, err error) {
	if len(args) == 0 {
		return "run", "", nil
	}
	cmd = args[0]
	switch cmd {
	case "-h", "--help":
		cmd = "help"
	case "run", "write", "read", "analyze", "stats":
	case "validate", "help":
		if len(args) > 1 {
			return "", "", fmt.Errorf("%s takes no arguments", cmd)
		}
		return cmd, "", nil
	default:
		if strings.HasPrefix(cmd, "-") {
			return "", "", fmt.Errorf("unknown flag %q", cmd)
		}
		if len(args) > 1 {
			return "", "", fmt.Errorf("unknown command %q", cmd)
		}
		return "run", cmd, nil
	}
	if len(args) > 2 {
		return "", "", fmt.Errorf("%s takes at most one argument", cmd)
	}
	if len(args) == 2 {
		arg = args[1]
	}
	return cmd, arg, nil
}

func modeFor(cmd string) (tailflow.Mode, bool) {
	switch cmd {
	case "run":
		return tailflow.ModeRun, true
	case "write":
		return tailflow.ModeWrite, true
	case "read":
		return tailflow.ModeRead, true
	case "analyze":
		return tailflow.ModeAnalyze, true
	}
	return "", false
}

func loadConfig() (*tailflow.Config, error) {
	cfg, err := tailflow.LoadConfig(os.Getenv(tailflow.ConfigPathEnvVar))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func runtimeCommand(mode tailflow.Mode, path string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if path != "" {
		cfg.File.Path = path
	}
	logging.Init(cfg.Logging)

	rt, err := tailflow.NewRuntime(cfg, tailflow.WithMode(mode))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	summary, err := rt.Run(ctx)
	fmt.Printf("\n[main] stopped: %s\n", summary)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func validateCommand() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	out, err := cfg.YAML()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(out)
	return err
}

func statsCommand(url string) error {
	if url == "" {
		url = defaultMetricsURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	client := &http.Client{Timeout: 5 * time.Second}
	fmt.Printf("Streaming metrics from %s (Ctrl+C to stop)\n", url)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printMetricsSnapshot(ctx, client, url); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

func printMetricsSnapshot(ctx context.Context, client *http.Client, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	values, err := scrapeMetrics(resp.Body, statsTargets)
	if err != nil {
		return err
	}
	fmt.Println(formatStats(time.Now(), values))
	return nil
}

// scrapeMetrics sums every sample of the named metrics in a Prometheus text
// exposition, so labelled series collapse into one total.
func scrapeMetrics(r io.Reader, names []string) (map[string]float64, error) {
	values := make(map[string]float64, len(names))
	for _, name := range names {
		values[name] = 0
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, name := range names {
			rest, ok := strings.CutPrefix(line, name)
			if !ok || rest == "" || (rest[0] != ' ' && rest[0] != '{') {
				continue
			}
			if i := strings.LastIndexByte(rest, '}'); i >= 0 {
				rest = rest[i+1:]
			}
			var value float64
			if _, err := fmt.Sscanf(strings.TrimSpace(rest), "%g", &value); err == nil {
				values[name] += value
			}
		}
	}
	return values, scanner.Err()
}

func formatStats(now time.Time, values map[string]float64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", now.Format(time.RFC3339))
	for _, name := range statsTargets {
		short := strings.TrimSuffix(strings.TrimPrefix(name, "tailflow_"), "_total")
		fmt.Fprintf(&b, " %s=%g", short, values[name])
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, `TailFlow CLI

Usage:
  tailflow [command] [path|url]

Commands:
  run [path]      Write simulated readings, tail them and report rolling averages (default)
  write [path]    Only append readings to the data file
  read [path]     Only echo lines appended to the data file
  analyze [path]  Tail an existing data file and report rolling averages
  validate        Print the effective configuration as YAML
  stats [url]     Poll the Prometheus metrics endpoint and print live counters

The configuration file is read from $%s when set.

Examples:
  tailflow
  tailflow write ./data/temp.dat
  TAILFLOW_CONFIG=./data/config.yaml tailflow analyze
  tailflow stats http://localhost:9100/metrics
`, tailflow.ConfigPathEnvVar)
}
