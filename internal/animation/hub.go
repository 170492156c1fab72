// Package animation pushes dice animations and user notices to connected
// table clients over websockets.
package animation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/multiroll/internal/game/dice"
	"github.com/cory-johannsen/multiroll/internal/rolls"
)

// Frame kinds.
const (
	KindDice   = "dice"
	KindNotice = "notice"
)

// Frame is one message pushed to a client.
type Frame struct {
	Kind    string     `json:"kind"`
	Roll    *dice.Roll `json:"roll,omitempty"`
	Whisper []string   `json:"whisper,omitempty"`
	Blind   bool       `json:"blind,omitempty"`
	Level   string     `json:"level,omitempty"`
	Message string     `json:"message,omitempty"`
}

// ErrClientGone is reported for a delivery whose client disconnected first.
var ErrClientGone = errors.New("animation: client disconnected")

type delivery struct {
	frame   Frame
	written chan error
}

type client struct {
	id        string
	userID    string
	conn      *websocket.Conn
	send      chan delivery
	done      chan struct{}
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Hub is the websocket endpoint of the table clients. It implements
// rolls.Animator and rolls.Notifier.
type Hub struct {
	mu           sync.RWMutex
	clients      map[string]*client
	writeTimeout time.Duration
	logger       *zap.Logger
}

// NewHub creates a Hub whose frame writes time out after writeTimeout.
//
// Precondition: writeTimeout > 0; logger must be non-nil.
func NewHub(writeTimeout time.Duration, logger *zap.Logger) *Hub {
	return &Hub{
		clients:      make(map[string]*client),
		writeTimeout: writeTimeout,
		logger:       logger.Named("animation"),
	}
}

// ServeHTTP upgrades the request to a websocket. The "user" query parameter
// identifies the connected user for whispered rolls.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Error("failed to accept websocket connection", zap.Error(err))
		return
	}
	c := &client{
		id:     uuid.NewString(),
		userID: r.URL.Query().Get("user"),
		conn:   conn,
		send:   make(chan delivery, 64),
		done:   make(chan struct{}),
	}
	h.add(c)
	h.logger.Info("client connected", zap.String("client", c.id), zap.String("user", c.userID))

	var wg sync.WaitGroup
	wg.Go(func() { h.writeLoop(ctx, c) })
	wg.Go(func() { h.readLoop(ctx, c) })
	wg.Wait()
}

func (h *Hub) readLoop(ctx context.Context, c *client) {
	defer func() {
		h.remove(c)
		c.close()
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}()
	for {
		if _, _, err := c.conn.Read(ctx); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				h.logger.Debug("websocket read ended", zap.String("client", c.id), zap.Error(err))
			}
			return
		}
	}
}

func (h *Hub) writeLoop(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case d := <-c.send:
			err := h.write(ctx, c, d.frame)
			if d.written != nil {
				d.written <- err
			}
			if err != nil {
				h.logger.Warn("websocket write failed", zap.String("client", c.id), zap.Error(err))
				c.close()
				return
			}
		}
	}
}

func (h *Hub) write(ctx context.Context, c *client, f Frame) error {
	data, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("animation: marshalling frame: %w", err)
	}
	wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	return c.conn.Write(wctx, websocket.MessageText, data)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.id] = c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c.id)
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) recipients(whisper []string) []*client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []*client
	for _, c := range h.clients {
		if len(whisper) == 0 || slices.Contains(whisper, c.userID) {
			out = append(out, c)
		}
	}
	return out
}

// Animate pushes r to every client allowed to see it and waits until each
// frame has been written. A whispered roll only reaches the whispered users.
func (h *Hub) Animate(ctx context.Context, r *dice.Roll, vis rolls.Visibility) error {
	f := Frame{Kind: KindDice, Roll: r, Whisper: vis.Whisper, Blind: vis.Blind}

	type pending struct {
		c       *client
		written chan error
	}
	var waits []pending
	var errs []error
	for _, c := range h.recipients(vis.Whisper) {
		w := make(chan error, 1)
		select {
		case c.send <- delivery{frame: f, written: w}:
			waits = append(waits, pending{c: c, written: w})
		case <-c.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for _, p := range waits {
		select {
		case err := <-p.written:
			if err != nil {
				errs = append(errs, fmt.Errorf("client %s: %w", p.c.id, err))
			}
		case <-p.c.done:
			errs = append(errs, fmt.Errorf("client %s: %w", p.c.id, ErrClientGone))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return errors.Join(errs...)
}

// Error pushes an error notice to every client without waiting for delivery.
func (h *Hub) Error(_ context.Context, message string) {
	h.logger.Error("user notification", zap.String("message", message))
	f := Frame{Kind: KindNotice, Level: "error", Message: message}
	for _, c := range h.recipients(nil) {
		select {
		case c.send <- delivery{frame: f}:
		default:
			h.logger.Warn("notice dropped", zap.String("client", c.id))
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
