package publisher

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"transitnow/internal/metrics"
	"transitnow/internal/realtime"
)

const drainTimeout = 5 * time.Second

// conn is the subset of *nats.Conn used for publishing.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// NATSPublisher fans each vehicle snapshot out as one JSON message per
// vehicle on <prefix>.<route>.<vehicle>.
type NATSPublisher struct {
	pub     conn
	closed  chan struct{} // closed by the connection's ClosedHandler
	prefix  string
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url, prefix string, m *metrics.Collector, logger *slog.Logger) (*NATSPublisher, error) {
	closed := make(chan struct{})
	nc, err := nats.Connect(url,
		nats.Name("transitnow"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info("nats connection closed")
			close(closed)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	p := newPublisher(nc, prefix, m, logger)
	p.closed = closed
	logger.Info("nats connected", "url", nc.ConnectedUrl(), "subject_prefix", p.prefix)
	return p, nil
}

func newPublisher(c conn, prefix string, m *metrics.Collector, logger *slog.Logger) *NATSPublisher {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = "vehicles"
	}
	return &NATSPublisher{pub: c, prefix: prefix, metrics: m, logger: logger}
}

// Close flushes pending messages and closes the connection. Drain is
// asynchronous, so Close waits for the connection to report closed.
func (p *NATSPublisher) Close() {
	if err := p.pub.Drain(); err != nil {
		p.logger.Warn("nats drain failed", "error", err)
		return
	}
	if p.closed == nil {
		return
	}
	select {
	case <-p.closed:
	case <-time.After(drainTimeout):
		p.logger.Warn("nats drain timed out")
	}
}

// PublishVehicles publishes every vehicle. It attempts all of them and
// returns the joined errors.
func (p *NATSPublisher) PublishVehicles(vehicles []realtime.Vehicle) error {
	var errs []error
	published := 0
	for _, v := range vehicles {
		subject := p.Subject(v)
		b, err := json.Marshal(v)
		if err == nil {
			err = p.pub.Publish(subject, b)
		}
		if err != nil {
			p.metrics.PublishFailed()
			errs = append(errs, fmt.Errorf("publish %s: %w", subject, err))
			continue
		}
		published++
	}
	p.metrics.Published(published)
	p.logger.Debug("vehicles published", "count", published, "errors", len(errs))
	return errors.Join(errs...)
}

// Subject returns the subject a vehicle is published on.
func (p *NATSPublisher) Subject(v realtime.Vehicle) string {
	return fmt.Sprintf("%s.%s.%s", p.prefix, subjectToken(v.RouteID), subjectToken(v.ID))
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
