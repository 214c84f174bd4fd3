package e2e

import (
	"testing"
	"time"

	"waterwatch/test/testutil"

	"github.com/nats-io/nats.go"
)

// startLocalNATSServer starts a local JetStream NATS process for e2e tests.
// Params: testing handle for lifecycle/error reporting.
// Returns: server URL and stop callback.
func startLocalNATSServer(tb testing.TB) (string, func()) {
	return testutil.StartLocalNATSServer(tb)
}

// publishNATSReading publishes one reading payload on core NATS.
// Params: server URL, subject, and JSON body.
// Returns: connect/publish/flush error.
func publishNATSReading(url, subject, body string) error {
	nc, err := nats.Connect(url)
	if err != nil {
		return err
	}
	defer nc.Close()
	if err := nc.Publish(subject, []byte(body)); err != nil {
		return err
	}
	return nc.FlushTimeout(3 * time.Second)
}
