// Package publisher announces finished datasets to downstream consumers.
package publisher

import (
	"context"
	"time"
)

// Publisher sends one payload to topic and returns the message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// NoOp drops every message.
type NoOp struct{}

// Publish returns an empty message ID.
func (NoOp) Publish(context.Context, string, any) (string, error) {
	return "", nil
}

// DatasetReady is published after a successful crawl run.
type DatasetReady struct {
	RunID           string    `json:"run_id"`
	Source          string    `json:"source"`
	Output          string    `json:"output"`
	URI             string    `json:"uri,omitempty"`
	SHA256          string    `json:"sha256"`
	FirstDay        string    `json:"first_day,omitempty"`
	LastDay         string    `json:"last_day,omitempty"`
	Days            int       `json:"days"`
	RecordsAppended int       `json:"records_appended"`
	FinishedAt      time.Time `json:"finished_at"`
}
