// Package notify publishes build events to NATS. Publishing is best-effort:
// failures are logged and never fail the build.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
)

const defaultTimeout = 5 * time.Second

// Conn is the subset of *nats.Conn the notifier uses.
type Conn interface {
	Publish(subject string, data []byte) error
	FlushTimeout(timeout time.Duration) error
	Close()
}

// Dialer opens a connection.
type Dialer func(url string, opts ...nats.Option) (Conn, error)

func dialNATS(url string, opts ...nats.Option) (Conn, error) {
	return nats.Connect(url, opts...)
}

// Notifier publishes BuildEvents.
type Notifier struct {
	cfg    config.NotifyConfig
	dial   Dialer
	logger *slog.Logger
}

// New creates a notifier. A nil dial uses nats.Connect.
func New(cfg config.NotifyConfig, logger *slog.Logger, dial Dialer) *Notifier {
	if dial == nil {
		dial = dialNATS
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{cfg: cfg, dial: dial, logger: logger}
}

// Enabled reports whether a NATS URL is configured.
func (n *Notifier) Enabled() bool { return n.cfg.NATSURL != "" }

// Notify publishes ev and waits for the server to acknowledge the flush.
// It returns the publish error for callers that want it; the pipeline only logs it.
func (n *Notifier) Notify(ctx context.Context, ev BuildEvent) error {
	if !n.Enabled() {
		return nil
	}
	timeout := n.cfg.Timeout.Std()
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := n.publish(ev, timeout)
	if err != nil {
		n.logger.Warn("Failed to publish build event",
			logfields.URL(n.cfg.NATSURL), logfields.Subject(n.cfg.Subject), logfields.Error(err))
		return err
	}
	n.logger.Info("Published build event",
		logfields.Subject(n.cfg.Subject), slog.String("status", ev.Status), logfields.RunID(ev.ID))
	return nil
}

func (n *Notifier) publish(ev BuildEvent, timeout time.Duration) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode build event: %w", err)
	}
	conn, err := n.dial(n.cfg.NATSURL,
		nats.Name("docpipe"),
		nats.Timeout(timeout),
		nats.MaxReconnects(0),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	defer conn.Close()

	if err := conn.Publish(n.cfg.Subject, data); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if err := conn.FlushTimeout(timeout); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}
