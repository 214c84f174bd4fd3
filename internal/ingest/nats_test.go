package ingest

import (
	"testing"
	"time"

	"waterwatch/internal/config"
	"waterwatch/test/testutil"
)

func TestNATSSubscriberIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skip integration test in short mode")
	}

	url, stopNATS := testutil.StartLocalNATSServer(t)
	defer stopNATS()

	sink := &testSink{}
	cfg := config.NATSIngestConfig{Enabled: true, Subject: "waterwatch.readings.tank-1"}
	subscriber, err := NewNATSSubscriber([]string{url}, cfg, sink, nil, nil)
	if err != nil {
		t.Fatalf("new subscriber: %v", err)
	}
	defer subscriber.Close()

	publisher := testutil.ConnectNATS(t, url)
	if err := publisher.Publish(cfg.Subject, []byte(testReadingJSON(30))); err != nil {
		t.Fatalf("publish reading: %v", err)
	}
	if err := publisher.Publish(cfg.Subject, []byte("null")); err != nil {
		t.Fatalf("publish no-data: %v", err)
	}
	if err := publisher.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		sink.mu.Lock()
		done := len(sink.order) == 2
		sink.mu.Unlock()
		if done {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.order) != 2 || sink.order[0] != "reading" || sink.order[1] != "empty" {
		t.Fatalf("unexpected delivery order: %v", sink.order)
	}
}
