// Package bridge connects the brother facade to the native host process that
// embeds the Brother SDK. It implements brother.Invoker over a WebSocket:
// each invocation is one "exec" frame, answered later by a "result" frame
// carrying the same id.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/adcondev/brother-daemon/internal/brother"
)

var (
	ErrClosed     = errors.New("bridge client closed")
	ErrDialFailed = errors.New("cannot reach native host")
)

const (
	defaultDialTimeout  = 5 * time.Second
	defaultWriteTimeout = 10 * time.Second
	defaultReadLimit    = 16 << 20 // discovery results and echoed bitmaps can be large
)

// Namespace tagged on failures the bridge produces itself.
const Namespace = "BrotherBridge"

// Config holds native host connection settings
type Config struct {
	URL          string
	Origin       string
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	ReadLimit    int64
}

// Client is a brother.Invoker backed by a WebSocket link to the native host.
// The link is dialed on first use and again after it drops; a failed dial
// fails only the call that triggered it.
type Client struct {
	cfg     Config
	pending *pendingCalls

	mu     sync.Mutex
	link   *link
	closed bool
	wg     sync.WaitGroup
}

type link struct {
	conn     *websocket.Conn
	ctx      context.Context
	cancel   context.CancelFunc
	dropOnce sync.Once
}

// NewClient creates a bridge client. No connection is made until the first Invoke.
func NewClient(cfg Config) *Client {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaultReadLimit
	}
	return &Client{
		cfg:     cfg,
		pending: newPendingCalls(),
	}
}

var _ brother.Invoker = (*Client)(nil)

// Invoke sends one capability request to the native host.
//
// Transport problems (dial failure, write failure, link lost before the
// result arrives, client closed) reach onFailure with a nil payload.
// Callbacks run on the link's read goroutine and must not block.
func (c *Client) Invoke(onSuccess brother.SuccessFunc, onFailure brother.FailureFunc, service, action string, args []any) {
	id := uuid.New().String()

	l, err := c.connect()
	if err != nil {
		log.Printf("[BRIDGE] ❌ %s(%s) not sent: %v", action, id, err)
		onFailure(nil)
		return
	}

	if args == nil {
		args = []any{}
	}
	frame, err := json.Marshal(Request{
		Tipo:    TipoExec,
		ID:      id,
		Service: service,
		Action:  action,
		Args:    args,
	})
	if err != nil {
		log.Printf("[BRIDGE] ❌ %s(%s) arguments not encodable: %v", action, id, err)
		onFailure(map[string]any{
			"message":   fmt.Sprintf("cannot encode arguments for '%s': %v", action, err),
			"namespace": Namespace,
		})
		return
	}

	c.pending.Add(id, pendingCall{
		link:      l,
		action:    action,
		onSuccess: onSuccess,
		onFailure: onFailure,
	})

	ctx, cancel := context.WithTimeout(l.ctx, c.cfg.WriteTimeout)
	defer cancel()

	if err := l.conn.Write(ctx, websocket.MessageText, frame); err != nil {
		log.Printf("[BRIDGE] ❌ %s(%s) write failed: %v", action, id, err)
		if call, ok := c.pending.Take(id); ok {
			call.onFailure(nil)
		}
		c.drop(l, err)
		return
	}

	log.Printf("[BRIDGE] 📤 Sent %s (%s)", action, id)
}

// Pending returns the number of calls waiting for a result.
func (c *Client) Pending() int {
	return c.pending.Count()
}

// Connected reports whether a link to the native host is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.link != nil
}

// URL returns the native host address.
func (c *Client) URL() string {
	return c.cfg.URL
}

// Close drops the link, fails every pending call and rejects later calls.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	l := c.link
	c.mu.Unlock()

	if l != nil {
		c.drop(l, ErrClosed)
	}
	c.wg.Wait()
	return nil
}

// connect returns the open link, dialing one if needed. The dial runs
// without holding c.mu so status queries never wait on an unreachable host.
func (c *Client) connect() (*link, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.link != nil {
		l := c.link
		c.mu.Unlock()
		return l, nil
	}
	c.mu.Unlock()

	conn, err := c.dial()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		_ = conn.CloseNow()
		return nil, ErrClosed
	}
	if c.link != nil {
		// Another call dialed first.
		_ = conn.CloseNow()
		return c.link, nil
	}

	lctx, lcancel := context.WithCancel(context.Background())
	l := &link{conn: conn, ctx: lctx, cancel: lcancel}
	c.link = l

	c.wg.Add(1)
	go c.readLoop(l)

	log.Printf("[BRIDGE] 🔌 Connected to native host %s", c.cfg.URL)
	return l, nil
}

func (c *Client) dial() (*websocket.Conn, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.DialTimeout)
	defer cancel()

	var opts *websocket.DialOptions
	if c.cfg.Origin != "" {
		opts = &websocket.DialOptions{
			HTTPHeader: http.Header{"Origin": []string{c.cfg.Origin}},
		}
	}

	conn, resp, err := websocket.Dial(ctx, c.cfg.URL, opts)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w at %s: %v", ErrDialFailed, c.cfg.URL, err)
	}
	conn.SetReadLimit(c.cfg.ReadLimit)
	return conn, nil
}

// readLoop routes result frames to their pending calls until the link drops.
func (c *Client) readLoop(l *link) {
	defer c.wg.Done()

	for {
		var resp Response
		if err := wsjson.Read(l.ctx, l.conn, &resp); err != nil {
			c.drop(l, err)
			return
		}
		c.dispatch(resp)
	}
}

func (c *Client) dispatch(resp Response) {
	if resp.Tipo != TipoResult {
		log.Printf("[BRIDGE] ⚠️ Ignoring frame of type %q", resp.Tipo)
		return
	}

	call, ok := c.pending.Take(resp.ID)
	if !ok {
		log.Printf("[BRIDGE] ⚠️ Result for unknown call %s", resp.ID)
		return
	}

	switch resp.Status {
	case StatusSuccess:
		log.Printf("[BRIDGE] 📥 %s (%s) succeeded", call.action, resp.ID)
		call.onSuccess(decodeResult(resp.Datos))
	case StatusError:
		log.Printf("[BRIDGE] 📥 %s (%s) failed", call.action, resp.ID)
		call.onFailure(decodeFailure(resp.Error))
	default:
		log.Printf("[BRIDGE] ⚠️ %s (%s) unknown status %q", call.action, resp.ID, resp.Status)
		call.onFailure(nil)
	}
}

// drop tears down l once and fails the calls still waiting on it.
func (c *Client) drop(l *link, cause error) {
	l.dropOnce.Do(func() {
		c.mu.Lock()
		if c.link == l {
			c.link = nil
		}
		c.mu.Unlock()

		if errors.Is(cause, ErrClosed) {
			_ = l.conn.Close(websocket.StatusNormalClosure, "bridge closed")
		} else {
			_ = l.conn.CloseNow()
		}
		l.cancel()

		orphans := c.pending.DrainLink(l)
		if errors.Is(cause, ErrClosed) || websocket.CloseStatus(cause) == websocket.StatusNormalClosure {
			log.Printf("[BRIDGE] 🔌 Link closed (%d call(s) in flight)", len(orphans))
		} else {
			log.Printf("[BRIDGE] ⚠️ Link lost: %v (%d call(s) in flight)", cause, len(orphans))
		}
		for _, call := range orphans {
			call.onFailure(nil)
		}
	})
}
