package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher is the part of *nats.Conn the NATS sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSNotifier publishes events as JSON on <prefix>.match.completed,
// <prefix>.match.updated and <prefix>.board.assigned.
type NATSNotifier struct {
	pub    Publisher
	prefix string
}

func NewNATSNotifier(pub Publisher, prefix string) *NATSNotifier {
	return &NATSNotifier{pub: pub, prefix: prefix}
}

// Connect dials the NATS server.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("darts-bracket"),
		nats.Timeout(10*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return conn, nil
}

func (n *NATSNotifier) MatchCompleted(ctx context.Context, e MatchEvent) {
	n.publish(ctx, "match.completed", e)
}

func (n *NATSNotifier) MatchUpdated(ctx context.Context, e MatchEvent) {
	n.publish(ctx, "match.updated", e)
}

func (n *NATSNotifier) BoardAssigned(ctx context.Context, e BoardEvent) {
	n.publish(ctx, "board.assigned", e)
}

func (n *NATSNotifier) publish(ctx context.Context, subject string, payload any) {
	if n.prefix != "" {
		subject = n.prefix + "." + subject
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.WarnContext(ctx, "failed to encode event", "subject", subject, "error", err)
		return
	}
	if err := n.pub.Publish(subject, data); err != nil {
		slog.WarnContext(ctx, "failed to publish event", "subject", subject, "error", err)
	}
}
