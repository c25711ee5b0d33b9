// Package channel keeps one live connection to the server's order-event
// stream for a customer session and fans decoded events out to per-kind
// subscribers.
//
// Delivery is at-most-once: events are handed to the subscribers registered
// at the moment they are read, and nothing missed while disconnected is
// replayed after a reconnect.
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jcmexdev/orderium/internal/notify/events"
)

const (
	DefaultMinBackoff = time.Second
	DefaultMaxBackoff = 30 * time.Second
)

type subscription struct {
	id uint64
	fn events.Handler
}

type watcher struct {
	id uint64
	fn func(connected bool)
}

// Channel is safe for concurrent use. Handlers and status watchers are
// invoked without any Channel lock held, so they may call back into it.
type Channel struct {
	transport  Transport
	session    Session
	log        *slog.Logger
	now        func() time.Time
	minBackoff time.Duration
	maxBackoff time.Duration

	mu        sync.RWMutex
	connected bool
	err       error
	nextID    uint64
	handlers  map[events.Kind][]subscription
	watchers  []watcher
	cancel    context.CancelFunc
	done      chan struct{}
}

type Option func(*Channel)

func WithLogger(l *slog.Logger) Option {
	return func(c *Channel) { c.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Channel) { c.now = now }
}

func WithBackoff(minDelay, maxDelay time.Duration) Option {
	return func(c *Channel) {
		c.minBackoff = minDelay
		c.maxBackoff = maxDelay
	}
}

func New(transport Transport, session Session, opts ...Option) *Channel {
	c := &Channel{
		transport:  transport,
		session:    session,
		log:        slog.Default(),
		now:        time.Now,
		minBackoff: DefaultMinBackoff,
		maxBackoff: DefaultMaxBackoff,
		handlers:   make(map[events.Kind][]subscription),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect starts the connection loop unless it is already running.
// It does not wait for the connection to come up.
func (c *Channel) Connect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		select {
		case <-c.done:
		default:
			return
		}
		c.cancel()
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.run(runCtx, c.done)
}

// Close stops the loop and waits for it to exit. The live connection, if
// any, is closed and watchers see a disconnected transition.
func (c *Channel) Close() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (c *Channel) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Err returns the last transport error. It is cleared by a successful connect.
func (c *Channel) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// Subscribe registers fn for events of the given kind. The returned function
// unregisters it and may be called any number of times. An event already
// being dispatched when it is called may still reach fn.
func (c *Channel) Subscribe(kind events.Kind, fn events.Handler) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.handlers[kind] = append(c.handlers[kind], subscription{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			subs := c.handlers[kind]
			for i, s := range subs {
				if s.id == id {
					c.handlers[kind] = append(subs[:i:i], subs[i+1:]...)
					break
				}
			}
		})
	}
}

// WatchStatus calls fn on every connected/disconnected transition.
func (c *Channel) WatchStatus(fn func(connected bool)) (stop func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.watchers = append(c.watchers, watcher{id: id, fn: fn})
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, w := range c.watchers {
				if w.id == id {
					c.watchers = append(c.watchers[:i:i], c.watchers[i+1:]...)
					break
				}
			}
		})
	}
}

func (c *Channel) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer c.setConnected(false)

	backoff := c.minBackoff
	for ctx.Err() == nil {
		if err := c.session.Validate(c.now()); err != nil {
			c.log.ErrorContext(ctx, "channel: session rejected", "customer_id", c.session.CustomerID, "error", err)
			c.setErr(err)
			return
		}

		conn, err := c.transport.Dial(ctx, c.session)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.WarnContext(ctx, "channel: dial failed", "retry_in", backoff, "error", err)
			c.setErr(fmt.Errorf("channel: dial: %w", err))
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, c.maxBackoff)
			continue
		}

		backoff = c.minBackoff
		c.setConnected(true)
		c.log.InfoContext(ctx, "channel: connected", "customer_id", c.session.CustomerID, "role", c.session.role())

		err = c.readLoop(ctx, conn)
		_ = conn.Close()
		c.setConnected(false)
		if ctx.Err() != nil {
			return
		}

		c.log.WarnContext(ctx, "channel: connection lost", "retry_in", backoff, "error", err)
		c.setErr(fmt.Errorf("channel: connection lost: %w", err))
		if !sleep(ctx, backoff) {
			return
		}
	}
}

func (c *Channel) readLoop(ctx context.Context, conn Conn) error {
	for {
		raw, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		ev, err := events.Decode(raw)
		if err != nil {
			c.log.WarnContext(ctx, "channel: dropping event", "error", err)
			continue
		}
		c.dispatch(ctx, ev)
	}
}

func (c *Channel) dispatch(ctx context.Context, ev events.Event) {
	c.mu.RLock()
	subs := append([]subscription(nil), c.handlers[ev.Kind()]...)
	c.mu.RUnlock()

	for _, s := range subs {
		c.invoke(ctx, s.fn, ev)
	}
}

func (c *Channel) invoke(ctx context.Context, fn events.Handler, ev events.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.log.ErrorContext(ctx, "channel: handler panicked", "event", ev.Kind(), "order_id", ev.Ref().OrderID, "panic", fmt.Sprint(r))
		}
	}()
	fn(ctx, ev)
}

func (c *Channel) setConnected(v bool) {
	c.mu.Lock()
	if c.connected == v {
		c.mu.Unlock()
		return
	}
	c.connected = v
	if v {
		c.err = nil
	}
	ws := append([]watcher(nil), c.watchers...)
	c.mu.Unlock()

	for _, w := range ws {
		w.fn(v)
	}
}

func (c *Channel) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
