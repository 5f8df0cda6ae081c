package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"gamepub/internal/errs"
	"gamepub/internal/ports"
)

const DefaultSubjectPrefix = "gamepub"

// NATSPublisher publishes lifecycle events as JSON on <prefix>.versions.<action>.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

var _ ports.EventPublisher = (*NATSPublisher)(nil)

// Connect dials the server and keeps reconnecting in the background after a drop.
func Connect(url string, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, errs.Wrapf(err, "connect nats %s", url)
	}
	return conn, nil
}

func NewNATSPublisher(conn *nats.Conn, prefix string) *NATSPublisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSPublisher{conn: conn, prefix: prefix}
}

// Subject is the subject a transition with action is published on.
func Subject(prefix string, action string) string {
	return prefix + ".versions." + strings.ToLower(strings.TrimSpace(action))
}

func (p *NATSPublisher) PublishTransition(ctx context.Context, event ports.TransitionEvent) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if strings.TrimSpace(event.Action) == "" {
		return errors.New("event action is required")
	}

	body, err := json.Marshal(event)
	if err != nil {
		return errs.Wrap(err, "encode transition event")
	}
	if err := p.conn.Publish(Subject(p.prefix, event.Action), body); err != nil {
		return errs.Wrap(err, "publish transition event")
	}
	return nil
}
