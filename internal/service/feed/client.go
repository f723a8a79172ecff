// Package feed streams option Greeks over a websocket and exposes them as a
// pull-with-deadline queue.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"SpreadScout/internal/domain/models"
	drepo "SpreadScout/internal/domain/repository"
	"SpreadScout/pkg/logger"

	"github.com/gorilla/websocket"
)

var ErrClosed = errors.New("feed: closed")

type Config struct {
	URL            string
	Token          string
	Channel        string
	BufferSize     int
	PingInterval   time.Duration
	ReconnectDelay time.Duration
	// Upper bound for a single frame write; a shorter ctx deadline wins.
	WriteTimeout time.Duration
}

// Client implements GreeksFeed on a websocket connection.
type Client struct {
	cfg Config
	log *logger.Logger

	mu        sync.Mutex
	writeMu   sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	active    map[string]struct{}
	stop      context.CancelFunc

	events chan models.GreeksReading
	done   chan struct{}
}

func New(cfg Config, log *logger.Logger) *Client {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1024
	}
	if cfg.Channel == "" {
		cfg.Channel = "greeks"
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 15 * time.Second
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 2 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &Client{
		cfg:    cfg,
		log:    log,
		active: make(map[string]struct{}),
		events: make(chan models.GreeksReading, cfg.BufferSize),
		done:   make(chan struct{}),
	}
}

var _ drepo.GreeksFeed = (*Client)(nil)

type controlMessage struct {
	Type    string   `json:"type"`
	Channel string   `json:"channel"`
	Symbols []string `json:"symbols"`
}

type greeksEvent struct {
	Symbol string  `json:"symbol"`
	IV     float64 `json:"iv"`
	Delta  float64 `json:"delta"`
	Theta  float64 `json:"theta"`
	Gamma  float64 `json:"gamma"`
	Vega   float64 `json:"vega"`
	Time   int64   `json:"time"` // ms
}

type message struct {
	Type string        `json:"type"`
	Data []greeksEvent `json:"data"`
}

// Connect dials the feed and starts the read and ping loops.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.mu.Unlock()

	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		_ = conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.connected = true
	c.stop = cancel
	c.mu.Unlock()

	go c.readLoop(loopCtx, conn)
	go c.pingLoop(loopCtx, conn)
	c.log.Info("feed connected", logger.String("url", c.cfg.URL))
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("feed url: %w", err)
	}
	if c.cfg.Token != "" {
		q := u.Query()
		q.Set("token", c.cfg.Token)
		u.RawQuery = q.Encode()
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("feed connect: %w", err)
	}
	return conn, nil
}

// Subscribe adds symbols to the active subscription.
func (c *Client) Subscribe(ctx context.Context, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	if err := c.send(ctx, "subscribe", symbols); err != nil {
		return err
	}
	c.mu.Lock()
	for _, s := range symbols {
		c.active[s] = struct{}{}
	}
	c.mu.Unlock()
	return nil
}

// Unsubscribe removes symbols from the active subscription. Events already
// buffered for them stay in the queue.
func (c *Client) Unsubscribe(ctx context.Context, symbols []string) error {
	if len(symbols) == 0 {
		return nil
	}
	c.mu.Lock()
	for _, s := range symbols {
		delete(c.active, s)
	}
	c.mu.Unlock()
	return c.send(ctx, "unsubscribe", symbols)
}

// send writes one control frame. The write is bounded by the ctx deadline
// and by WriteTimeout. A failed write leaves the connection unusable, so it
// is closed and the read loop takes the reconnect path.
func (c *Client) send(ctx context.Context, typ string, symbols []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	conn, ok := c.conn, c.connected
	c.mu.Unlock()
	if conn == nil || !ok {
		return fmt.Errorf("feed not connected")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = conn.SetWriteDeadline(c.writeDeadline(ctx))
	if err := conn.WriteJSON(controlMessage{Type: typ, Channel: c.cfg.Channel, Symbols: symbols}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("%s %d symbols: %w", typ, len(symbols), err)
	}
	return nil
}

func (c *Client) writeDeadline(ctx context.Context) time.Time {
	deadline := time.Now().Add(c.cfg.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		return d
	}
	return deadline
}

// PollNext returns the next buffered reading, waiting until deadline.
func (c *Client) PollNext(deadline time.Time) (models.GreeksReading, error) {
	select {
	case r := <-c.events:
		return r, nil
	default:
	}
	wait := time.Until(deadline)
	if wait <= 0 {
		return models.GreeksReading{}, drepo.ErrPollTimeout
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case r := <-c.events:
		return r, nil
	case <-timer.C:
		return models.GreeksReading{}, drepo.ErrPollTimeout
	case <-c.done:
		return models.GreeksReading{}, ErrClosed
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				c.log.Debug("feed ping failed", logger.Error(err))
			}
		}
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("feed read failed", logger.Error(err))
			c.mu.Lock()
			c.connected = false
			c.mu.Unlock()
			go c.reconnectLoop()
			return
		}
		var m message
		if err := json.Unmarshal(b, &m); err != nil {
			// ignore non-event frames
			continue
		}
		if m.Type != c.cfg.Channel {
			continue
		}
		for _, d := range m.Data {
			r := models.GreeksReading{
				Symbol: d.Symbol,
				Greeks: models.Greeks{IV: d.IV, Delta: d.Delta, Theta: d.Theta, Gamma: d.Gamma, Vega: d.Vega},
			}
			if d.Time > 0 {
				r.ReceivedAt = time.UnixMilli(d.Time).UTC()
			} else {
				r.ReceivedAt = time.Now().UTC()
			}
			select {
			case c.events <- r:
			default:
				// drop on backpressure
			}
		}
	}
}

func (c *Client) reconnectLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-time.After(c.cfg.ReconnectDelay):
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.Reconnect(ctx)
		cancel()
		if err != nil {
			c.log.Warn("feed reconnect failed", logger.Error(err))
			continue
		}
		return
	}
}

// Reconnect re-dials and replays the active subscription.
func (c *Client) Reconnect(ctx context.Context) error {
	c.mu.Lock()
	if c.stop != nil {
		c.stop()
	}
	if c.conn != nil {
		_ = c.conn.Close()
	}
	c.connected = false
	c.mu.Unlock()

	if err := c.Connect(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	symbols := make([]string, 0, len(c.active))
	for s := range c.active {
		symbols = append(symbols, s)
	}
	c.mu.Unlock()
	return c.Subscribe(ctx, symbols)
}

// Close stops the loops and closes the connection. A closed client cannot
// reconnect.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.connected = false
	close(c.done)
	if c.stop != nil {
		c.stop()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
