package relay

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"

	"linebridge/internal/logging"
)

// Publisher sends envelopes to the relay server over short-lived connections.
// Each publish dials, calls, and closes, so a restarted server needs no
// reconnect handling on this side.
type Publisher struct {
	path    string
	timeout time.Duration
	logger  *slog.Logger
}

// NewPublisher configures a publisher against the given socket path. timeout
// bounds the dial plus the acknowledged call.
func NewPublisher(path string, timeout time.Duration, logger *slog.Logger) *Publisher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Publisher{path: path, timeout: timeout, logger: logger}
}

// Publish validates the envelope and delivers it, waiting for the server's
// acknowledgement. Transport failures wrap ErrTransport; validation failures
// do not, they are caller bugs.
func (p *Publisher) Publish(ctx context.Context, env Envelope) error {
	if err := env.Validate(); err != nil {
		return err
	}

	deadline := time.Now().Add(p.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	conn, err := net.DialTimeout("unix", p.path, time.Until(deadline))
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrTransport, p.path, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(deadline)

	client := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	defer client.Close()

	var resp DeliverResponse
	call := client.Go("Relay.Deliver", DeliverRequest{Envelope: env}, &resp, nil)
	select {
	case <-call.Done:
		if call.Error != nil {
			return fmt.Errorf("%w: deliver: %v", ErrTransport, call.Error)
		}
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrTransport, ctx.Err())
	}
	if !resp.Accepted {
		return fmt.Errorf("%w: envelope not accepted", ErrTransport)
	}

	p.logger.Debug("envelope delivered",
		logging.String("envelope_type", env.Type),
		logging.Int64(logging.FieldSubscription, env.Subscription))
	return nil
}
