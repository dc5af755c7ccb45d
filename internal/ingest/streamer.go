package ingest

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/cbattlegear/forkalytics/internal/event"
	"github.com/cbattlegear/forkalytics/pkg/logging"
)

const (
	streamReconnectBase = time.Second
	streamReconnectMax  = time.Minute
)

// StreamerConfig configures the websocket connection to the instance's
// streaming endpoint.
type StreamerConfig struct {
	// InstanceURL is the base URL of the source instance, e.g.
	// "https://social.example".
	InstanceURL string

	// AccessToken authenticates the streaming connection. Optional for
	// instances with open public timelines.
	AccessToken string

	// Stream selects the timeline; defaults to "public:local".
	Stream string
}

// Streamer holds one websocket connection to the streaming API and feeds
// every frame through the upsert engine, one at a time, in arrival order.
// Reconnection uses exponential backoff and is entirely the streamer's
// concern; the engine never sees connection state.
type Streamer struct {
	cfg    StreamerConfig
	engine *Engine
	logger logging.Logger
	dialer *websocket.Dialer
}

// NewStreamer creates a streamer for the configured instance.
func NewStreamer(cfg StreamerConfig, engine *Engine, logger logging.Logger) *Streamer {
	if cfg.Stream == "" {
		cfg.Stream = "public:local"
	}
	return &Streamer{
		cfg:    cfg,
		engine: engine,
		logger: logger,
		dialer: &websocket.Dialer{HandshakeTimeout: 15 * time.Second},
	}
}

// streamFrame is the wire format of one streaming API message. Payload is a
// JSON-encoded string containing the actual object.
type streamFrame struct {
	Event   string `json:"event"`
	Payload string `json:"payload"`
}

// Run connects and consumes frames until the context is cancelled,
// reconnecting with backoff on any connection failure.
func (s *Streamer) Run(ctx context.Context) error {
	backoff := streamReconnectBase
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, err := s.connect(ctx)
		if err != nil {
			s.logger.WithError(err).WithField("backoff", backoff).Warn("Stream connect failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, streamReconnectMax)
			continue
		}

		s.logger.WithField("stream", s.cfg.Stream).Info("Stream connected")
		backoff = streamReconnectBase

		if err := s.consume(ctx, conn); err != nil {
			conn.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.WithError(err).Warn("Stream connection lost")
		}
	}
}

func (s *Streamer) connect(ctx context.Context) (*websocket.Conn, error) {
	endpoint, err := url.Parse(s.cfg.InstanceURL)
	if err != nil {
		return nil, err
	}
	switch endpoint.Scheme {
	case "https":
		endpoint.Scheme = "wss"
	case "http":
		endpoint.Scheme = "ws"
	}
	endpoint.Path = "/api/v1/streaming"

	query := endpoint.Query()
	query.Set("stream", s.cfg.Stream)
	if s.cfg.AccessToken != "" {
		query.Set("access_token", s.cfg.AccessToken)
	}
	endpoint.RawQuery = query.Encode()

	conn, _, err := s.dialer.DialContext(ctx, endpoint.String(), nil)
	return conn, err
}

func (s *Streamer) consume(ctx context.Context, conn *websocket.Conn) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var frame streamFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			s.logger.WithError(err).Warn("Unparseable stream frame")
			continue
		}

		env, ok := envelopeFromFrame(frame)
		if !ok {
			continue
		}

		// One event at a time, in order. A store failure is logged and the
		// event dropped; replay happens from the raw event log.
		if err := s.engine.HandleEnvelope(ctx, env); err != nil {
			s.logger.WithError(err).WithField("kind", env.Kind).Error("Failed to process stream event")
		}
	}
}

// envelopeFromFrame maps streaming API event names onto envelope kinds.
// Unrecognized events (notifications, filters) are dropped.
func envelopeFromFrame(frame streamFrame) (event.Envelope, bool) {
	switch frame.Event {
	case "update":
		return event.Envelope{Kind: event.KindUpsert, Payload: json.RawMessage(frame.Payload)}, true
	case "status.update":
		return event.Envelope{Kind: event.KindEdit, Payload: json.RawMessage(frame.Payload)}, true
	case "delete":
		id, err := json.Marshal(frame.Payload)
		if err != nil {
			return event.Envelope{}, false
		}
		return event.Envelope{Kind: event.KindDelete, Payload: id}, true
	default:
		return event.Envelope{}, false
	}
}
