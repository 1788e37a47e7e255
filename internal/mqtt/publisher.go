package mqtt

import (
	"context"
	"encoding/json"
	"path"
	"sync"
	"time"

	"github.com/tphakala/linewalk/internal/datastore"
	"github.com/tphakala/linewalk/internal/logger"
)

// Record event types
const (
	EventSaved   = "saved"
	EventDeleted = "deleted"
)

const recordsSubtopic = "records"

// RecordEvent is the JSON payload published for every saved or deleted record
type RecordEvent struct {
	Event      string    `json:"event"`
	ID         string    `json:"id"`
	Name       string    `json:"name,omitempty"`
	Source     string    `json:"source,omitempty"`
	Category   string    `json:"category,omitempty"`
	Style      string    `json:"style,omitempty"`
	Model      string    `json:"model,omitempty"`
	Line       string    `json:"line,omitempty"`
	Auditor    string    `json:"auditor,omitempty"`
	Items      int       `json:"items,omitempty"`
	Inspected  int       `json:"inspected,omitempty"`
	Failed     int       `json:"failed,omitempty"`
	Percentage float64   `json:"percentage,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher turns record changes into MQTT messages. Publishing runs in the
// background so the form never waits on the broker.
type Publisher struct {
	client  Client
	topic   string
	source  string
	timeout time.Duration
	now     func() time.Time
	log     logger.Logger
	wg      sync.WaitGroup
}

// NewPublisher creates a publisher sending to <cfg.Topic>/records.
// source identifies this instance in the payload.
func NewPublisher(client Client, cfg Config, source string, log logger.Logger) *Publisher {
	if log == nil {
		log = GetLogger()
	}
	timeout := cfg.PublishTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().PublishTimeout
	}
	return &Publisher{
		client:  client,
		topic:   path.Join(cfg.Topic, recordsSubtopic),
		source:  source,
		timeout: timeout,
		now:     time.Now,
		log:     log,
	}
}

// Topic returns the topic record events are published to
func (p *Publisher) Topic() string { return p.topic }

// RecordSaved publishes a "saved" event with the record's header and totals
func (p *Publisher) RecordSaved(ctx context.Context, rec *datastore.Record) {
	if rec == nil {
		return
	}
	sum := rec.Summary()
	p.publish(ctx, &RecordEvent{
		Event:      EventSaved,
		ID:         rec.ID,
		Name:       rec.Name,
		Source:     p.source,
		Category:   rec.Header.Category,
		Style:      rec.Header.Style,
		Model:      rec.Header.Model,
		Line:       rec.Header.Line,
		Auditor:    rec.Header.Auditor,
		Items:      sum.TotalItems,
		Inspected:  sum.InspectedItems,
		Failed:     sum.Failed,
		Percentage: sum.Percentage,
		Timestamp:  rec.SavedAt,
	})
}

// RecordDeleted publishes a "deleted" event
func (p *Publisher) RecordDeleted(ctx context.Context, id string) {
	p.publish(ctx, &RecordEvent{
		Event:     EventDeleted,
		ID:        id,
		Source:    p.source,
		Timestamp: p.now(),
	})
}

func (p *Publisher) publish(ctx context.Context, ev *RecordEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		p.log.Error("failed to encode record event",
			logger.String("record_id", ev.ID),
			logger.Error(err))
		return
	}

	// The request context ends with the request; only its values are kept.
	ctx = context.WithoutCancel(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, p.timeout)
		defer cancel()

		if err := p.client.Publish(ctx, p.topic, payload); err != nil {
			p.log.Warn("record event not delivered",
				logger.String("event", ev.Event),
				logger.String("record_id", ev.ID),
				logger.Error(err))
			return
		}
		p.log.Debug("record event published",
			logger.String("event", ev.Event),
			logger.String("record_id", ev.ID))
	}()
}

// Wait blocks until in-flight publishes have finished
func (p *Publisher) Wait() { p.wg.Wait() }

// Close waits for in-flight publishes and disconnects the client
func (p *Publisher) Close() {
	p.wg.Wait()
	p.client.Disconnect()
}
