// Package events publishes artifact lifecycle events to NATS. Publishing is
// best effort and optional: a nil publisher is a safe no-op, and a failed
// publish never affects the generation pipeline.
package events

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/docgen/internal/logfields"
)

// ArtifactEvent describes a generation or eviction occurrence.
type ArtifactEvent struct {
	ArtifactID string    `json:"artifact_id"`
	TemplateID string    `json:"template_id"`
	FileName   string    `json:"file_name"`
	Format     string    `json:"format"`
	SizeBytes  int64     `json:"size_bytes"`
	CreatedBy  string    `json:"created_by"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher sends events to NATS subjects under a configured prefix.
type Publisher struct {
	conn          *nats.Conn
	subjectPrefix string
	logger        *slog.Logger
}

// Connect dials the NATS server. An empty URL returns a nil publisher,
// which disables publishing.
func Connect(url, subjectPrefix string, logger *slog.Logger) (*Publisher, error) {
	if url == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	conn, err := nats.Connect(url,
		nats.Name("docgen"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	logger.Info("Connected to NATS", slog.String("url", url))
	return &Publisher{conn: conn, subjectPrefix: subjectPrefix, logger: logger}, nil
}

// ArtifactGenerated publishes a generation event.
func (p *Publisher) ArtifactGenerated(ev ArtifactEvent) {
	p.publish("artifact.generated", ev)
}

// ArtifactEvicted publishes an eviction event.
func (p *Publisher) ArtifactEvicted(ev ArtifactEvent) {
	p.publish("artifact.evicted", ev)
}

func (p *Publisher) publish(suffix string, ev ArtifactEvent) {
	if p == nil || p.conn == nil {
		return
	}
	subject := p.subjectPrefix + "." + suffix
	data, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("Could not marshal artifact event", logfields.Error(err))
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("Could not publish artifact event",
			slog.String("subject", subject), logfields.Error(err))
	}
}

// Close drains the connection.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("NATS drain failed", logfields.Error(err))
	}
}
