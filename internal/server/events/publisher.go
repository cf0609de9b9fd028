// Package events announces committed document versions to other services.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectVersionFinalized carries VersionFinalized payloads.
const SubjectVersionFinalized = "casevault.documents.version.finalized"

// VersionFinalized is published once per committed DocumentVersion.
type VersionFinalized struct {
	TenantID    string    `json:"tenantId"`
	CaseID      string    `json:"caseId"`
	DocumentID  string    `json:"documentId"`
	VersionID   string    `json:"versionId"`
	Version     int       `json:"version"`
	Key         string    `json:"key"`
	FileName    string    `json:"fileName"`
	FileSize    int64     `json:"fileSize"`
	ContentType string    `json:"contentType"`
	UploaderID  string    `json:"uploaderId"`
	IntentID    string    `json:"intentId,omitempty"`
	FinalizedAt time.Time `json:"finalizedAt"`
}

// Publisher delivers events. Delivery is best effort.
type Publisher interface {
	PublishVersionFinalized(ctx context.Context, evt VersionFinalized) error
}

// Nop drops every event.
type Nop struct{}

func (Nop) PublishVersionFinalized(context.Context, VersionFinalized) error { return nil }

type natsConn interface {
	Publish(subj string, data []byte) error
	Drain() error
}

// NatsPublisher publishes JSON payloads on core NATS subjects.
type NatsPublisher struct {
	conn natsConn
}

// NewNatsPublisher connects to url with reconnects enabled.
func NewNatsPublisher(url, name string) (*NatsPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NatsPublisher{conn: conn}, nil
}

func (p *NatsPublisher) PublishVersionFinalized(ctx context.Context, evt VersionFinalized) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(SubjectVersionFinalized, data); err != nil {
		return fmt.Errorf("publish %s: %w", SubjectVersionFinalized, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NatsPublisher) Close() error {
	return p.conn.Drain()
}
