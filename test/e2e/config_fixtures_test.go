package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// e2eServiceOptions defines per-instance settings embedded into e2e configs.
type e2eServiceOptions struct {
	Port       int
	Mode       string
	DeviceID   string
	NATSURL    string
	WebhookURL string
	Relay      bool
}

// e2eConfig builds service config used in e2e tests.
// Params: instance options.
// Returns: TOML config string.
func e2eConfig(options e2eServiceOptions) string {
	mode := options.Mode
	if mode == "" {
		mode = "single"
	}
	device := options.DeviceID
	if device == "" {
		device = "tank-1"
	}
	cfg := fmt.Sprintf(`
[service]
name = "waterwatch"
device_id = "%s"
mode = "%s"

[log.console]
enabled = true
level = "error"
format = "line"

[http]
listen = "127.0.0.1:%d"

[ingest.http]
enabled = true

[notify]
repeat_every_sec = 300

[notify.queue]
max_attempts = 1

[relay]
enabled = %t
`, device, mode, options.Port, options.Relay)
	if options.NATSURL != "" {
		cfg += fmt.Sprintf(`
[nats]
url = ["%s"]

[ingest.nats]
enabled = true
`, options.NATSURL)
	}
	if options.WebhookURL != "" {
		cfg += fmt.Sprintf(`
[notify.webhook]
enabled = true
url = "%s"
timeout_sec = 2
`, options.WebhookURL)
	}
	return cfg
}

type webhookCall struct {
	Action       string `json:"action"`
	ID           string `json:"id"`
	Notification *struct {
		Title    string `json:"title"`
		Body     string `json:"body"`
		Critical bool   `json:"critical"`
	} `json:"notification"`
}

// webhookCollector records webhook transport calls.
type webhookCollector struct {
	mu    sync.Mutex
	calls []webhookCall
}

func (c *webhookCollector) Handle(w http.ResponseWriter, r *http.Request) {
	var call webhookCall
	if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	c.mu.Lock()
	c.calls = append(c.calls, call)
	c.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (c *webhookCollector) Count(action, id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, call := range c.calls {
		if call.Action == action && call.ID == id {
			count++
		}
	}
	return count
}

func (c *webhookCollector) Snapshot() []webhookCall {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]webhookCall(nil), c.calls...)
}
