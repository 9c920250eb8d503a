// Package outbox delivers the side effects recorded alongside session
// state transitions: automation callbacks to the downstream workflow engine
// and customer notices.  Deliveries run outside the request path with
// exponential backoff, so a crash between a committed transition and its
// side effect is recovered on the next poll instead of silently lost.
package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/tablekeep/guarantee-service/internal/model"
	"github.com/tablekeep/guarantee-service/internal/notify"
	"github.com/tablekeep/guarantee-service/internal/repository"
)

// maxAttempts caps delivery retries before a message is parked as failed
// for manual retry from the dashboard.
const maxAttempts = 8

// Dispatcher polls the outbox table and delivers pending messages.
type Dispatcher struct {
	outbox       *repository.OutboxRepo
	notifier     notify.Notifier
	httpClient   *http.Client
	pollInterval time.Duration
	batchSize    int
}

// NewDispatcher builds a Dispatcher.  notifier handles email/sms notices;
// automation callbacks are plain webhook POSTs to the callback URL each
// session carries.
func NewDispatcher(outboxRepo *repository.OutboxRepo, notifier notify.Notifier, pollInterval time.Duration) *Dispatcher {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	return &Dispatcher{
		outbox:       outboxRepo,
		notifier:     notifier,
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		pollInterval: pollInterval,
		batchSize:    50,
	}
}

// Run polls until ctx is cancelled.  Intended to be started as a goroutine
// from main.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drain(ctx)
		}
	}
}

// drain delivers one batch of due messages.  Each message succeeds or fails
// independently; one unreachable endpoint must not block the others.
func (d *Dispatcher) drain(ctx context.Context) {
	due, err := d.outbox.Due(ctx, d.batchSize)
	if err != nil {
		log.Printf("outbox: poll failed: %v", err)
		return
	}
	for _, message := range due {
		if err := d.deliver(ctx, &message); err != nil {
			attempts := message.Attempts + 1
			exhausted := attempts >= maxAttempts
			next := time.Now().UTC().Add(backoff(attempts))
			if markErr := d.outbox.MarkAttemptFailed(ctx, message.ID, attempts, next, err.Error(), exhausted); markErr != nil {
				log.Printf("outbox: record failure for message %d: %v", message.ID, markErr)
			}
			log.Printf("outbox: deliver message=%d kind=%s session=%d attempt=%d failed: %v",
				message.ID, message.Kind, message.GuaranteeSessionID, attempts, err)
			continue
		}
		if err := d.outbox.MarkDelivered(ctx, message.ID); err != nil {
			log.Printf("outbox: mark delivered for message %d: %v", message.ID, err)
		}
	}
}

// backoff doubles per attempt from 30s, capped at one hour.
func backoff(attempts int) time.Duration {
	d := 30 * time.Second
	for i := 1; i < attempts && d < time.Hour; i++ {
		d *= 2
	}
	if d > time.Hour {
		d = time.Hour
	}
	return d
}

func (d *Dispatcher) deliver(ctx context.Context, message *model.OutboxMessage) error {
	switch message.Kind {
	case model.OutboxAutomation:
		return d.deliverAutomation(ctx, message)
	case model.OutboxEmail:
		return d.deliverNotice(ctx, "email", message)
	case model.OutboxSms:
		return d.deliverNotice(ctx, "sms", message)
	default:
		return fmt.Errorf("unknown outbox kind %q", message.Kind)
	}
}

// automationEnvelope picks the delivery fields out of the stored payload.
func automationEnvelope(payload []byte) (callbackURL string, err error) {
	var body struct {
		Context struct {
			CallbackURL string `json:"callback_url"`
		} `json:"context"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", fmt.Errorf("decode automation payload: %w", err)
	}
	return body.Context.CallbackURL, nil
}

func (d *Dispatcher) deliverAutomation(ctx context.Context, message *model.OutboxMessage) error {
	callbackURL, err := automationEnvelope(message.Payload)
	if err != nil {
		return err
	}
	if callbackURL == "" {
		// No workflow registered for this session; nothing to notify.
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(message.Payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return fmt.Errorf("automation callback: status %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) deliverNotice(ctx context.Context, channel string, message *model.OutboxMessage) error {
	var body struct {
		To       string `json:"to"`
		Template string `json:"template"`
	}
	if err := json.Unmarshal(message.Payload, &body); err != nil {
		return fmt.Errorf("decode notice payload: %w", err)
	}
	if body.To == "" {
		return nil
	}
	return d.notifier.Notify(ctx, channel, body.To, body.Template, message.Payload)
}
