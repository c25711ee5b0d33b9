// Package dispatcher turns order events into user-visible notifications and
// cache invalidations.
//
// The Dispatcher is an explicit state machine:
//
//	Idle ──Enable──▶ Connecting ──connected──▶ Active
//	  ▲                 ▲  │                     │
//	  │                 │  └──────Disable────────┤
//	  │                 └────disconnected────────┤
//	  └──────────────────────Disable─────────────┘
//
// Entering Active registers exactly one handler per event kind; leaving it,
// for any reason, unregisters every handler of that activation.
package dispatcher

import (
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/orderium/internal/notify/events"
	"github.com/jcmexdev/orderium/internal/notify/permission"
)

// State is the dispatcher's lifecycle position. A dropped connection while
// enabled reports StateConnecting rather than StateIdle: handlers are torn
// down as on Disable, but the channel keeps reconnecting and Active is
// re-entered without another Enable.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateActive     State = "active"
)

// Status is the dispatcher's public state.
type Status struct {
	IsConnected            bool
	Err                    error
	NotificationPermission permission.Permission
	State                  State
}

type Dispatcher struct {
	channel  Channel
	alerts   Alerter
	cache    Invalidator
	notifier Notifier
	gate     PermissionGate
	log      *slog.Logger
	tracer   trace.Tracer

	// lifecycle serializes Enable and Disable end to end. It is never taken
	// by onStatus, which runs on the channel loop.
	lifecycle sync.Mutex

	mu        sync.Mutex
	enabled   bool
	state     State
	unsubs    []func()
	stopWatch func()
}

// New wires a dispatcher. It starts Idle; nothing connects until Enable.
func New(
	ch Channel,
	alerter Alerter,
	cache Invalidator,
	notifier Notifier,
	gate PermissionGate,
	log *slog.Logger,
) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		channel:  ch,
		alerts:   alerter,
		cache:    cache,
		notifier: notifier,
		gate:     gate,
		log:      log,
		tracer:   otel.Tracer("github.com/jcmexdev/orderium/internal/notify/dispatcher"),
		state:    StateIdle,
	}
}

// Enable activates the permission gate and connects the channel. Calling it
// while already enabled does nothing.
func (d *Dispatcher) Enable(ctx context.Context) {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	d.mu.Lock()
	if d.enabled {
		d.mu.Unlock()
		return
	}
	d.enabled = true
	d.state = StateConnecting
	d.stopWatch = d.channel.WatchStatus(d.onStatus)
	d.mu.Unlock()

	d.log.InfoContext(ctx, "dispatcher: enabled")
	d.gate.Activate(ctx)
	d.channel.Connect(ctx)
	if d.channel.IsConnected() {
		d.onStatus(true)
	}
}

// Disable returns to Idle from any state. Once it returns no handler of
// this dispatcher is registered; an event already being handled may finish.
func (d *Dispatcher) Disable() {
	d.lifecycle.Lock()
	defer d.lifecycle.Unlock()

	d.mu.Lock()
	if !d.enabled {
		d.mu.Unlock()
		return
	}
	d.enabled = false
	d.deactivateLocked()
	d.state = StateIdle
	stop := d.stopWatch
	d.stopWatch = nil
	d.mu.Unlock()

	// the channel loop may be blocked in onStatus waiting for d.mu, so it is
	// only closed after the lock is released
	stop()
	d.channel.Close()
	d.log.Info("dispatcher: disabled")
}

func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Dispatcher) Status() Status {
	return Status{
		IsConnected:            d.channel.IsConnected(),
		Err:                    d.channel.Err(),
		NotificationPermission: d.gate.Current(),
		State:                  d.State(),
	}
}

func (d *Dispatcher) onStatus(connected bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.enabled {
		return
	}
	if connected {
		d.activateLocked()
		return
	}
	if d.state == StateActive {
		d.log.Warn("dispatcher: channel disconnected, waiting for reconnect")
	}
	d.deactivateLocked()
	d.state = StateConnecting
}

func (d *Dispatcher) activateLocked() {
	if d.state == StateActive {
		return
	}
	for _, kind := range events.Kinds {
		d.unsubs = append(d.unsubs, d.channel.Subscribe(kind, d.handle))
	}
	d.state = StateActive
	d.log.Info("dispatcher: active", "subscriptions", len(d.unsubs))
}

func (d *Dispatcher) deactivateLocked() {
	for _, unsubscribe := range d.unsubs {
		unsubscribe()
	}
	d.unsubs = nil
}

func (d *Dispatcher) handle(ctx context.Context, e events.Event) {
	ref := e.Ref()
	ctx, span := d.tracer.Start(ctx, "dispatch "+string(e.Kind()), trace.WithAttributes(
		attribute.Int64("order.id", ref.OrderID),
		attribute.String("order.number", ref.OrderNumber),
	))
	defer span.End()

	fx := describe(e)

	d.alerts.Show(ctx, fx.title, fx.body, fx.variant)
	for _, key := range fx.keys {
		d.cache.Invalidate(ctx, key)
	}

	if d.gate.Current() != permission.Granted {
		return
	}
	if _, err := d.notifier.Notify(ctx, fx.title, fx.desktop); err != nil {
		span.RecordError(err)
		d.log.WarnContext(ctx, "dispatcher: desktop notification failed", "order_id", ref.OrderID, "error", err)
	}
}
