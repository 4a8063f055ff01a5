package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"linebridge/internal/logging"
)

// Handler consumes envelopes drained from the queue in publish order.
type Handler func(ctx context.Context, env Envelope) error

// Server accepts relayed envelopes over a Unix domain socket and feeds them
// to a single consumer goroutine.
type Server struct {
	path      string
	handler   Handler
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server
	queue     chan Envelope

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool

	connWG     sync.WaitGroup
	consumerWG sync.WaitGroup
}

// handlerTimeout bounds one envelope delivery. The handler context is
// detached from the server context: an acked envelope must still be delivered
// while the server drains during shutdown.
const handlerTimeout = 30 * time.Second

// NewServer configures the relay server at the given socket path. queueSize
// bounds how many accepted envelopes may await the consumer; beyond that,
// Deliver nacks.
func NewServer(ctx context.Context, path string, queueSize int, handler Handler, logger *slog.Logger) (*Server, error) {
	if handler == nil {
		return nil, errors.New("relay server requires a handler")
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	srv := &Server{
		path:      path,
		handler:   handler,
		logger:    logger,
		listener:  listener,
		rpcServer: rpc.NewServer(),
		queue:     make(chan Envelope, queueSize),
		ctx:       serverCtx,
		cancel:    cancel,
	}

	if err := srv.rpcServer.RegisterName("Relay", &service{server: srv}); err != nil {
		cancel()
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}
	return srv, nil
}

// Serve starts the accept loop and the consumer until the context is
// canceled.
func (s *Server) Serve() {
	s.logger.Debug("relay server listening", logging.String("socket", s.path))

	s.consumerWG.Add(1)
	go func() {
		defer s.consumerWG.Done()
		s.consume()
	}()

	s.connWG.Add(1)
	go func() {
		defer s.connWG.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "relay_accept_failed"))
				continue
			}
			s.connWG.Add(1)
			go func(c net.Conn) {
				defer s.connWG.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops accepting, waits for in-flight deliveries, drains the queue
// through the consumer, and removes the socket file. The queue is drained
// before the server context is canceled: every envelope in it was already
// acked to its publisher, so shutdown must not abandon it.
func (s *Server) Close() {
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.connWG.Wait()

	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.mu.Unlock()

	s.consumerWG.Wait()
	s.cancel()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "relay_socket_cleanup_failed"))
	}
}

// consume drains the queue in publish order. Each delivery runs under its own
// timeout rather than the server context, so envelopes still in the queue at
// shutdown are handed to the handler with a live context. Handler failures
// are logged and never stop the loop; the envelope is already acked, so the
// failure belongs to the downstream push, not the transport.
func (s *Server) consume() {
	for env := range s.queue {
		ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
		err := s.handler(ctx, env)
		cancel()
		if err != nil {
			s.logger.Error("envelope handling failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "relay_handler_failed"),
				logging.String("envelope_type", env.Type),
				logging.Int64(logging.FieldSubscription, env.Subscription))
		}
	}
}

type service struct {
	server *Server
}

// Deliver validates the envelope and queues it for the consumer. A full
// queue or a shutting-down server is a nack.
func (s *service) Deliver(req DeliverRequest, resp *DeliverResponse) error {
	srv := s.server
	if err := req.Envelope.Validate(); err != nil {
		return fmt.Errorf("invalid envelope: %w", err)
	}

	select {
	case <-srv.ctx.Done():
		return errors.New("relay server shutting down")
	default:
	}

	if err := srv.enqueue(req.Envelope); err != nil {
		return err
	}
	resp.Accepted = true
	srv.logger.Debug("envelope accepted",
		logging.String("envelope_type", req.Envelope.Type),
		logging.Int64(logging.FieldSubscription, req.Envelope.Subscription))
	return nil
}

// enqueue adds the envelope under the close lock; rpc service calls run on
// their own goroutines and must never race the queue being closed.
func (s *Server) enqueue(env Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("relay server shutting down")
	}
	select {
	case s.queue <- env:
		return nil
	default:
		return fmt.Errorf("relay queue full (%d pending)", cap(s.queue))
	}
}
