// Package notify sends customer notices.  Delivery is always best-effort:
// a failed send is logged and retried by the outbox dispatcher, never
// propagated into the request that queued it.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Notifier sends one notice over a channel (email or sms).  Implementations
// must be safe for concurrent use by the dispatcher.
type Notifier interface {
	Notify(ctx context.Context, channel, to, template string, payload []byte) error
}

// ConsoleNotifier logs notices instead of sending them.  Used in
// development and as the fallback when no relay is configured.
type ConsoleNotifier struct{}

func NewConsole() *ConsoleNotifier { return &ConsoleNotifier{} }

func (n *ConsoleNotifier) Notify(_ context.Context, channel, to, template string, _ []byte) error {
	log.Printf("[notify] %s -> %s :: %s", channel, to, template)
	return nil
}

// RelayNotifier POSTs the notice payload to an external delivery relay
// (the platform's email/SMS service).  The relay owns templating and
// provider failover; this service only hands over the rendered context.
type RelayNotifier struct {
	relayURL   string
	httpClient *http.Client
}

// NewRelay builds a RelayNotifier for the given relay endpoint.
func NewRelay(relayURL string, timeout time.Duration) *RelayNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RelayNotifier{relayURL: relayURL, httpClient: &http.Client{Timeout: timeout}}
}

func (n *RelayNotifier) Notify(ctx context.Context, channel, to, template string, payload []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.relayURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Notice-Channel", channel)
	req.Header.Set("X-Notice-Template", template)
	req.Header.Set("X-Notice-To", to)
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("notify relay: status %d", resp.StatusCode)
	}
	return nil
}
