package realtime

import (
	"context"

	"github.com/nats-io/nats.go"
)

// NATSTransport publishes each event on a subject equal to its channel.
type NATSTransport struct {
	nc *nats.Conn
}

func NewNATSTransport(url, clientName string) (*NATSTransport, error) {
	nc, err := nats.Connect(url, nats.Name(clientName), nats.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}
	return &NATSTransport{nc: nc}, nil
}

func (t *NATSTransport) Name() string { return "nats" }

func (t *NATSTransport) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return t.nc.Publish(channel, payload)
}

func (t *NATSTransport) Close() error {
	return t.nc.Drain()
}
