package processor

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"loyalty-service/internal/observability"
)

// StreamConfig configures the firehose WebSocket client.
type StreamConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing control frames.
	WriteTimeout time.Duration
}

// DefaultStreamConfig returns default firehose configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

// Stream consumes the provider event firehose over WebSocket and funnels
// each decoded event into the intake. It reconnects with exponential
// backoff; the archive's deterministic event ids absorb any overlap
// between pre- and post-reconnect deliveries.
type Stream struct {
	endpoint string
	config   StreamConfig
	intake   *Intake
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	reconnecting atomic.Bool

	done chan struct{}
	wg   sync.WaitGroup
}

// StreamOptions contains configuration for creating a Stream.
type StreamOptions struct {
	Endpoint string
	Intake   *Intake
	Config   *StreamConfig
	Logger   *log.Logger
}

// NewStream connects to the firehose endpoint and starts consuming.
func NewStream(ctx context.Context, opts StreamOptions) (*Stream, error) {
	if opts.Intake == nil {
		return nil, fmt.Errorf("stream: intake is required")
	}

	cfg := DefaultStreamConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[stream] ", log.LstdFlags|log.Lshortfile)
	}

	s := &Stream{
		endpoint: opts.Endpoint,
		config:   cfg,
		intake:   opts.Intake,
		logger:   logger,
		done:     make(chan struct{}),
	}

	if err := s.connect(ctx); err != nil {
		return nil, err
	}

	s.wg.Add(1)
	go s.readLoop()

	s.wg.Add(1)
	go s.pingLoop()

	return s, nil
}

// connect establishes the WebSocket connection.
func (s *Stream) connect(ctx context.Context) error {
	s.connMu.Lock()
	defer s.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		return fmt.Errorf("firehose dial: %w", err)
	}

	s.conn = conn
	return nil
}

// Close closes the firehose connection and waits for the loops to exit.
func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return nil // Already closed
	}

	close(s.done)

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.conn.Close()
	}
	s.connMu.Unlock()

	s.wg.Wait()
	return nil
}

// readLoop reads messages from the firehose and feeds the intake.
func (s *Stream) readLoop() {
	defer s.wg.Done()

	reconnectDelay := s.config.ReconnectDelay

	for !s.closed.Load() {
		s.connMu.Lock()
		conn := s.conn
		s.connMu.Unlock()

		if conn == nil {
			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(s.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}

			if !s.reconnecting.Swap(true) {
				go s.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > s.config.MaxReconnectDelay {
				reconnectDelay = s.config.MaxReconnectDelay
			}

			select {
			case <-s.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		// Reset delay on successful read
		reconnectDelay = s.config.ReconnectDelay

		s.handleMessage(message)
	}
}

// handleMessage decodes and archives one firehose frame. Decode and
// verification failures are logged and skipped so one bad frame does not
// stall the stream.
func (s *Stream) handleMessage(message []byte) {
	in, err := DecodeEvent(message)
	if err != nil {
		s.logger.Printf("skipping undecodable frame: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := s.intake.Process(ctx, in, time.Now().UnixMilli()); err != nil {
		s.logger.Printf("skipping event %s/%s: %v", in.Provider, in.ExternalID, err)
	}
}

// reconnect waits out the backoff delay and re-dials.
func (s *Stream) reconnect(delay time.Duration) {
	defer s.reconnecting.Store(false)

	if s.closed.Load() {
		return
	}

	select {
	case <-s.done:
		return
	case <-time.After(delay):
	}

	s.connMu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.connMu.Unlock()

	observability.RecordStreamReconnect()
	s.logger.Printf("reconnecting to firehose %s", s.endpoint)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.connect(ctx); err != nil {
		// Reconnect failed, readLoop will trigger another attempt
		s.logger.Printf("reconnect failed: %v", err)
	}
}

// pingLoop keeps the connection alive with periodic ping frames.
func (s *Stream) pingLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.connMu.Lock()
			if s.conn != nil {
				s.conn.SetWriteDeadline(time.Now().Add(s.config.WriteTimeout))
				s.conn.WriteMessage(websocket.PingMessage, nil)
			}
			s.connMu.Unlock()
		}
	}
}
