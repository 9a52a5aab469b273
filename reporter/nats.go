package reporter

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
)

// DefaultSubject is the NATS subject reports are published on
const DefaultSubject = "replayer.results"

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes each report's upload payload to a NATS subject
type NATSSink struct {
	conn    publisher
	subject string
	close   func()
}

// NewNATSSink connects to the NATS server at url
func NewNATSSink(url, subject string) (*NATSSink, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	conn, err := nats.Connect(url, nats.Name("replayer"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to connect to NATS at %s", url)
	}
	return &NATSSink{conn: conn, subject: subject, close: conn.Close}, nil
}

func (n *NATSSink) Send(ctx context.Context, report Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := report.payload()
	if err != nil {
		return err
	}
	return errors.Wrap(n.conn.Publish(n.subject, payload), "Failed to publish report")
}

// Close closes the NATS connection
func (n *NATSSink) Close() {
	if n.close != nil {
		n.close()
	}
}
