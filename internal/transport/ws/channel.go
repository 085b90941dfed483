// Package ws implements the event channel client: one long-lived websocket
// connection carrying named events in {type, payload} envelopes. Handlers are
// dispatched serially from the read loop, so subscribers get run-to-completion
// semantics without locking.
package ws

import (
	"context"
	"encoding/json"
	"net/url"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"quizboard-client/internal/app"
	"quizboard-client/internal/domain"
)

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Channel is a process-wide event channel connection. It reconnects on read
// failure (redials gated by a rate limiter) and synthesizes a local
// _reconnected event so room views can re-emit their join intents.
type Channel struct {
	endpoint string
	clientID string
	log      zerolog.Logger
	dialer   *websocket.Dialer
	limiter  *rate.Limiter

	send chan envelope

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	connMu sync.Mutex
	conn   *websocket.Conn

	subMu  sync.Mutex
	subs   map[string]map[int]func([]byte)
	nextID int
}

// Dial connects to the channel endpoint. The first connection is established
// synchronously so callers fail fast on a bad endpoint.
func Dial(ctx context.Context, endpoint string, log zerolog.Logger) (*Channel, error) {
	runCtx, cancel := context.WithCancel(context.Background())
	c := &Channel{
		endpoint: endpoint,
		clientID: uuid.NewString(),
		log:      log.With().Str("component", "channel").Logger(),
		dialer:   websocket.DefaultDialer,
		// one redial burst, then at most one attempt per two seconds
		limiter: rate.NewLimiter(rate.Limit(0.5), 1),
		send:    make(chan envelope, 16),
		ctx:     runCtx,
		cancel:  cancel,
		subs:    make(map[string]map[int]func([]byte)),
	}

	conn, err := c.connect(ctx)
	if err != nil {
		cancel()
		return nil, err
	}
	go c.run(conn)
	return c, nil
}

// On subscribes fn to an event and returns an idempotent cancel handle.
func (c *Channel) On(event string, fn func(payload []byte)) (cancel func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextID
	c.nextID++
	if c.subs[event] == nil {
		c.subs[event] = make(map[int]func([]byte))
	}
	c.subs[event][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			delete(c.subs[event], id)
		})
	}
}

// Emit sends a named event. Sends queue through a small buffer owned by the
// writer goroutine; during a reconnect they wait in the buffer.
func (c *Channel) Emit(event string, payload any) error {
	if c.ctx.Err() != nil {
		return domain.ErrChannelClosed
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	select {
	case c.send <- envelope{Type: event, Payload: data}:
		return nil
	case <-c.ctx.Done():
		return domain.ErrChannelClosed
	}
}

// Close tears the connection down. Idempotent.
func (c *Channel) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.connMu.Lock()
		if c.conn != nil {
			_ = c.conn.Close()
		}
		c.connMu.Unlock()
	})
}

func (c *Channel) connect(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("clientId", c.clientID)
	u.RawQuery = q.Encode()

	conn, _, err := c.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
	return conn, nil
}

func (c *Channel) run(conn *websocket.Conn) {
	first := true
	for {
		if !first {
			c.dispatch(envelope{Type: app.EventReconnected})
		}
		first = false

		c.serve(conn)
		if c.ctx.Err() != nil {
			return
		}

		var err error
		conn = nil
		for conn == nil {
			if werr := c.limiter.Wait(c.ctx); werr != nil {
				return
			}
			conn, err = c.connect(c.ctx)
			if err != nil {
				c.log.Warn().Err(err).Msg("redial failed")
			}
		}
		c.log.Info().Msg("channel reconnected")
	}
}

// serve pumps one connection until it fails. Writes go through a dedicated
// goroutine; gorilla connections do not allow concurrent writers.
func (c *Channel) serve(conn *websocket.Conn) {
	writerDone := make(chan struct{})
	readerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for {
			select {
			case env := <-c.send:
				if err := conn.WriteJSON(env); err != nil {
					c.log.Debug().Err(err).Msg("channel write failed")
					return
				}
			case <-readerDone:
				return
			case <-c.ctx.Done():
				return
			}
		}
	}()

	for {
		var env envelope
		if err := conn.ReadJSON(&env); err != nil {
			if c.ctx.Err() == nil {
				c.log.Debug().Err(err).Msg("channel read failed")
			}
			break
		}
		c.dispatch(env)
	}

	close(readerDone)
	_ = conn.Close()
	<-writerDone
}

func (c *Channel) dispatch(env envelope) {
	c.subMu.Lock()
	handlers := make([]func([]byte), 0, len(c.subs[env.Type]))
	for _, fn := range c.subs[env.Type] {
		handlers = append(handlers, fn)
	}
	c.subMu.Unlock()

	for _, fn := range handlers {
		fn(env.Payload)
	}
}
