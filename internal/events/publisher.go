// Package events publishes build lifecycle events to NATS JetStream so
// other parts of the Peterbot infrastructure can react to template
// rebuilds.
package events

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/onewithdev/peterbot-sandbox/pkg/types"
)

// Event subjects under the TEMPLATE_BUILDS stream.
const (
	SubjectBuildStarted   = "template.builds.started"
	SubjectBuildSucceeded = "template.builds.succeeded"
	SubjectBuildFailed    = "template.builds.failed"
)

// BuildEvent is the JSON payload published to NATS.
type BuildEvent struct {
	BuildID   string    `json:"build_id"`
	Template  string    `json:"template"`
	Tag       string    `json:"tag,omitempty"`
	Status    string    `json:"status"`
	ImageRef  string    `json:"image_ref,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher publishes build events to NATS JetStream.
type Publisher struct {
	nc *nats.Conn
	js nats.JetStreamContext
}

// NewPublisher connects to NATS and ensures the TEMPLATE_BUILDS stream
// exists.
func NewPublisher(natsURL string) (*Publisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to get JetStream context: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     "TEMPLATE_BUILDS",
		Subjects: []string{"template.builds.>"},
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		// Stream may already exist, that's OK
		log.Printf("events: stream setup: %v", err)
	}

	return &Publisher{nc: nc, js: js}, nil
}

// Publish sends a build event. Publish failures are logged, not returned:
// event delivery must never fail a build.
func (p *Publisher) Publish(subject string, build *types.TemplateBuild) {
	if p == nil {
		return
	}

	event := BuildEvent{
		BuildID:   build.ID,
		Template:  build.Name,
		Tag:       build.Tag,
		Status:    build.Status,
		ImageRef:  build.ImageRef,
		Error:     build.Error,
		Timestamp: time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("events: marshal build event: %v", err)
		return
	}

	if _, err := p.js.Publish(subject, payload); err != nil {
		log.Printf("events: publish %s for build %s: %v", subject, build.ID, err)
	}
}

// Close drains the NATS connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	p.nc.Drain()
}
