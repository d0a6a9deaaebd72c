package opcua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"
	"github.com/rs/zerolog"

	"github.com/ghalamif/TailFlow/internal/domain"
	"github.com/ghalamif/TailFlow/internal/logging"
	"github.com/ghalamif/TailFlow/internal/ports"
)

const monitorHandle uint32 = 1

// Config captures the runtime details required to open an OPC UA session.
type Config struct {
	Endpoint         string        `koanf:"endpoint" yaml:"endpoint"`
	NodeID           string        `koanf:"node_id" yaml:"node_id"`
	Username         string        `koanf:"username" yaml:"username,omitempty"`
	Password         string        `koanf:"password" yaml:"-"`
	SecurityMode     string        `koanf:"security_mode" yaml:"security_mode"`
	SecurityPolicy   string        `koanf:"security_policy" yaml:"security_policy"`
	ApplicationName  string        `koanf:"application_name" yaml:"application_name"`
	PublishInterval  time.Duration `koanf:"publish_interval" yaml:"publish_interval"`
	SamplingInterval time.Duration `koanf:"sampling_interval" yaml:"sampling_interval"`
}

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "TailFlow"
	}
	if c.PublishInterval <= 0 {
		c.PublishInterval = time.Second
	}
	if c.SamplingInterval < 0 {
		c.SamplingInterval = 0
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if c.NodeID == "" {
		return errors.New("node_id is required")
	}
	if _, err := ua.ParseNodeID(c.NodeID); err != nil {
		return fmt.Errorf("parse node id %q: %w", c.NodeID, err)
	}
	return nil
}

// Source subscribes to a single node and turns its data changes into
// readings.
type Source struct {
	cfg Config
	log zerolog.Logger
}

func NewSource(cfg Config) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Source{cfg: cfg, log: logging.Component("opcua")}, nil
}

func (s *Source) Name() string { return "opcua:" + s.cfg.NodeID }

func (s *Source) Run(ctx context.Context, emit func(domain.Record) error) error {
	client, err := opcua.NewClient(s.cfg.Endpoint, s.clientOptions()...)
	if err != nil {
		return fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("opcua connect: %w", err)
	}
	defer s.closeClient(client)

	notifyCh := make(chan *opcua.PublishNotificationData, 16)
	sub, err := client.Subscribe(ctx, &opcua.SubscriptionParameters{
		Interval: s.cfg.PublishInterval,
	}, notifyCh)
	if err != nil {
		return fmt.Errorf("opcua subscribe: %w", err)
	}
	defer s.cancelSubscription(sub)

	nodeID, err := ua.ParseNodeID(s.cfg.NodeID)
	if err != nil {
		return fmt.Errorf("parse node id %q: %w", s.cfg.NodeID, err)
	}
	req := opcua.NewMonitoredItemCreateRequestWithDefaults(nodeID, ua.AttributeIDValue, monitorHandle)
	if s.cfg.SamplingInterval > 0 {
		req.RequestedParameters.SamplingInterval = float64(s.cfg.SamplingInterval / time.Millisecond)
	}
	res, err := sub.Monitor(ctx, ua.TimestampsToReturnBoth, req)
	if err != nil {
		return fmt.Errorf("monitor node %q: %w", s.cfg.NodeID, err)
	}
	if len(res.Results) == 0 {
		return fmt.Errorf("monitor node %q failed: empty result", s.cfg.NodeID)
	}
	if res.Results[0].StatusCode != ua.StatusOK {
		return fmt.Errorf("monitor node %q failed: %s", s.cfg.NodeID, res.Results[0].StatusCode)
	}

	s.log.Info().Str("endpoint", s.cfg.Endpoint).Str("node_id", s.cfg.NodeID).Msg("opcua subscription active")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notif := <-notifyCh:
			if notif == nil {
				continue
			}
			if notif.Error != nil {
				s.log.Warn().Err(notif.Error).Msg("opcua notification error")
				continue
			}
			for _, rec := range s.records(notif.Value) {
				if err := emit(rec); err != nil {
					return err
				}
			}
		}
	}
}

// records extracts the readings for the monitored node from a
// notification payload. Unsupported payloads yield nothing.
func (s *Source) records(val any) []domain.Record {
	data, ok := val.(*ua.DataChangeNotification)
	if !ok {
		return nil
	}

	out := make([]domain.Record, 0, len(data.MonitoredItems))
	for _, item := range data.MonitoredItems {
		if item == nil || item.ClientHandle != monitorHandle || item.Value == nil {
			continue
		}
		fv, ok := variantToFloat(item.Value.Value)
		if !ok {
			s.log.Debug().Str("node_id", s.cfg.NodeID).Msgf("skipping unsupported value type %T", item.Value.Value)
			continue
		}

		ts := item.Value.SourceTimestamp
		if ts.IsZero() {
			ts = item.Value.ServerTimestamp
		}
		if ts.IsZero() {
			ts = time.Now()
		}
		out = append(out, domain.Record{Timestamp: ts.Truncate(time.Second), Value: fv})
	}
	return out
}

func (s *Source) clientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(s.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(s.cfg.SecurityPolicy)),
		opcua.ApplicationName(s.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}
	if s.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(s.cfg.Username, s.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}
	return opts
}

func (s *Source) cancelSubscription(sub *opcua.Subscription) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sub.Cancel(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn().Err(err).Msg("opcua subscription cancel")
	}
}

func (s *Source) closeClient(client *opcua.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn().Err(err).Msg("opcua client close")
	}
}

func variantToFloat(v *ua.Variant) (float64, bool) {
	if v == nil {
		return 0, false
	}

	switch val := v.Value().(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return float64(val), true
	case uint8:
		return float64(val), true
	case int16:
		return float64(val), true
	case uint16:
		return float64(val), true
	case int32:
		return float64(val), true
	case uint32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint64:
		return float64(val), true
	default:
		return 0, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var _ ports.Source = (*Source)(nil)
