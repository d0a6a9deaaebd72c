package opcua

import (
	"testing"
	"time"

	"github.com/gopcua/opcua/ua"
)

func TestConfigDefaultsAndValidate(t *testing.T) {
	cfg := Config{Endpoint: "opc.tcp://localhost:4840", NodeID: "ns=2;s=Temperature"}
	cfg.ApplyDefaults()
	if cfg.SecurityMode != "None" || cfg.PublishInterval != time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	if err := (&Config{NodeID: "ns=2;s=T"}).Validate(); err == nil {
		t.Fatalf("expected missing endpoint error")
	}
	if err := (&Config{Endpoint: "opc.tcp://x"}).Validate(); err == nil {
		t.Fatalf("expected missing node id error")
	}
}

func TestRecordsFromDataChange(t *testing.T) {
	src, err := NewSource(Config{Endpoint: "opc.tcp://localhost:4840", NodeID: "ns=2;s=Temperature"})
	if err != nil {
		t.Fatalf("new source: %v", err)
	}

	ts := time.Date(2025, 3, 1, 12, 0, 0, 500, time.UTC)
	notif := &ua.DataChangeNotification{
		MonitoredItems: []*ua.MonitoredItemNotification{
			{ClientHandle: monitorHandle, Value: &ua.DataValue{Value: ua.MustVariant(float32(21.5)), SourceTimestamp: ts}},
			{ClientHandle: 99, Value: &ua.DataValue{Value: ua.MustVariant(1.0)}},
			{ClientHandle: monitorHandle, Value: &ua.DataValue{Value: ua.MustVariant("n/a")}},
		},
	}

	recs := src.records(notif)
	if len(recs) != 1 {
		t.Fatalf("expected 1 record, got %d", len(recs))
	}
	if recs[0].Value != 21.5 || !recs[0].Timestamp.Equal(ts.Truncate(time.Second)) {
		t.Fatalf("unexpected record %+v", recs[0])
	}

	if got := src.records("not a notification"); got != nil {
		t.Fatalf("expected nil for unsupported payload, got %v", got)
	}
}

func TestVariantToFloat(t *testing.T) {
	cases := []struct {
		in   *ua.Variant
		want float64
		ok   bool
	}{
		{ua.MustVariant(int32(-4)), -4, true},
		{ua.MustVariant(uint16(7)), 7, true},
		{ua.MustVariant(2.25), 2.25, true},
		{ua.MustVariant(true), 0, false},
		{nil, 0, false},
	}
	for _, tc := range cases {
		got, ok := variantToFloat(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("variantToFloat(%v) = %v,%v want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestNormalizeSecurityMode(t *testing.T) {
	if normalizeSecurityMode("sign+encrypt") != "SignAndEncrypt" {
		t.Fatalf("expected SignAndEncrypt")
	}
	if normalizeSecurityMode("bogus") != "None" {
		t.Fatalf("expected None fallback")
	}
}
