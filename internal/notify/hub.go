// Package notify pushes short-lived user notices to websocket subscribers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// TTL is how long a notice stays on screen.
const TTL = 5 * time.Second

const (
	KindSuccess = "success"
	KindError   = "error"
)

const (
	sendBuffer   = 16
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Notice is one message shown to the user.
type Notice struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type subscriber struct {
	send chan []byte
}

// Hub fans notices out to every connected websocket client.
type Hub struct {
	logger         *slog.Logger
	originPatterns []string

	mu      sync.Mutex
	subs    map[*subscriber]struct{}
	recent  []Notice
	closing bool
	now     func() time.Time
}

// NewHub creates a hub. originPatterns is passed to websocket.Accept; empty
// means same-origin only.
func NewHub(logger *slog.Logger, originPatterns ...string) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:         logger,
		originPatterns: originPatterns,
		subs:           make(map[*subscriber]struct{}),
		now:            time.Now,
	}
}

// Success publishes a success notice.
func (h *Hub) Success(msg string) { h.Publish(KindSuccess, msg) }

// Error publishes an error notice.
func (h *Hub) Error(msg string) { h.Publish(KindError, msg) }

// Publish sends a notice to all subscribers without blocking. Subscribers
// that cannot keep up are disconnected.
func (h *Hub) Publish(kind, msg string) {
	now := h.now()
	n := Notice{Kind: kind, Message: msg, At: now, ExpiresAt: now.Add(TTL)}
	data, err := json.Marshal(n)
	if err != nil {
		h.logger.Error("encoding notice", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.recent = append(h.pruneLocked(now), n)
	for s := range h.subs {
		select {
		case s.send <- data:
		default:
			h.logger.Warn("notice subscriber too slow, dropping")
			delete(h.subs, s)
			close(s.send)
		}
	}
}

// Active returns the notices that have not expired yet, oldest first.
func (h *Hub) Active() []Notice {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recent = h.pruneLocked(h.now())
	out := make([]Notice, len(h.recent))
	copy(out, h.recent)
	return out
}

// Subscribers returns the number of connected clients.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) pruneLocked(now time.Time) []Notice {
	kept := h.recent[:0]
	for _, n := range h.recent {
		if now.Before(n.ExpiresAt) {
			kept = append(kept, n)
		}
	}
	return kept
}

func (h *Hub) subscribe() (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return nil, false
	}
	s := &subscriber{send: make(chan []byte, sendBuffer)}
	h.subs[s] = struct{}{}
	return s, true
}

func (h *Hub) unsubscribe(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.send)
	}
}

// ServeHTTP upgrades the request and streams notices until the client
// goes away or the hub stops. Active notices are replayed on connect.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// The stream outlives the server's per-request timeouts.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.originPatterns})
	if err != nil {
		h.logger.Warn("websocket accept failed", "error", err)
		return
	}
	defer func() { _ = conn.CloseNow() }()

	s, ok := h.subscribe()
	if !ok {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.unsubscribe(s)

	// Clients never send; CloseRead handles control frames and cancels ctx
	// when the peer disconnects.
	ctx := conn.CloseRead(r.Context())

	for _, n := range h.Active() {
		data, err := json.Marshal(n)
		if err != nil {
			continue
		}
		if err := write(ctx, conn, data); err != nil {
			return
		}
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case data, ok := <-s.send:
			if !ok {
				_ = conn.Close(websocket.StatusGoingAway, "")
				return
			}
			if err := write(ctx, conn, data); err != nil {
				if !errors.Is(err, context.Canceled) {
					h.logger.Debug("notice write failed", "error", err)
				}
				return
			}
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// Run blocks until ctx is cancelled and then disconnects every subscriber.
func (h *Hub) Run(ctx context.Context) error {
	<-ctx.Done()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closing = true
	for s := range h.subs {
		delete(h.subs, s)
		close(s.send)
	}
	return nil
}

func write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
