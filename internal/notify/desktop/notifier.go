// Package desktop shows OS-level notifications. Each notification owns an
// explicit timer token that dismisses it after AutoCloseAfter unless it was
// created with RequireInteraction; closing the notification cancels the
// token.
package desktop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const AutoCloseAfter = 6 * time.Second

// DeliveredVibration is the pattern used for delivered orders.
var DeliveredVibration = []int{200, 100, 200, 100, 200}

type Options struct {
	Body               string
	Icon               string
	Tag                string
	RequireInteraction bool
	Vibrate            []int
}

// Platform is the host notification API.
type Platform interface {
	Show(title string, opts Options, onClick func()) (Handle, error)
	FocusWindow()
}

type Handle interface {
	Close() error
}

// Timer is the cancellable token returned by an AfterFunc.
type Timer interface {
	Stop() bool
}

type Notifier struct {
	platform  Platform
	afterFunc func(time.Duration, func()) Timer
	autoClose time.Duration
	log       *slog.Logger

	mu   sync.Mutex
	open map[uuid.UUID]*Notification
}

type Option func(*Notifier)

// WithAfterFunc replaces time.AfterFunc, mainly for tests.
func WithAfterFunc(fn func(time.Duration, func()) Timer) Option {
	return func(n *Notifier) { n.afterFunc = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(n *Notifier) { n.log = l }
}

func NewNotifier(platform Platform, opts ...Option) *Notifier {
	n := &Notifier{
		platform:  platform,
		autoClose: AutoCloseAfter,
		log:       slog.Default(),
		open:      make(map[uuid.UUID]*Notification),
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notification is one shown OS notification.
type Notification struct {
	ID      uuid.UUID
	Title   string
	Options Options

	notifier *Notifier

	mu     sync.Mutex
	handle Handle
	timer  Timer
	closed bool
}

// Notify shows a notification. Errors and panics from the platform are
// returned as errors.
func (n *Notifier) Notify(ctx context.Context, title string, opts Options) (*Notification, error) {
	note := &Notification{
		ID:       uuid.New(),
		Title:    title,
		Options:  opts,
		notifier: n,
	}

	handle, err := n.show(title, opts, note.click)
	if err != nil {
		return nil, err
	}

	note.mu.Lock()
	note.handle = handle
	if !note.closed && !opts.RequireInteraction {
		note.timer = n.afterFunc(n.autoClose, func() { _ = note.Close() })
	}
	alreadyClosed := note.closed
	note.mu.Unlock()

	if alreadyClosed {
		n.closeHandle(handle)
		return note, nil
	}

	n.mu.Lock()
	n.open[note.ID] = note
	n.mu.Unlock()

	n.log.DebugContext(ctx, "desktop: notification shown", "id", note.ID, "tag", opts.Tag)
	return note, nil
}

// Open returns how many notifications are currently shown.
func (n *Notifier) Open() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.open)
}

// CloseAll dismisses every open notification.
func (n *Notifier) CloseAll() {
	n.mu.Lock()
	notes := make([]*Notification, 0, len(n.open))
	for _, note := range n.open {
		notes = append(notes, note)
	}
	n.mu.Unlock()

	for _, note := range notes {
		_ = note.Close()
	}
}

// Close dismisses the notification and cancels its timer token. It is safe
// to call more than once.
func (note *Notification) Close() error {
	note.mu.Lock()
	if note.closed {
		note.mu.Unlock()
		return nil
	}
	note.closed = true
	handle, timer := note.handle, note.timer
	note.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}

	n := note.notifier
	n.mu.Lock()
	delete(n.open, note.ID)
	n.mu.Unlock()

	if handle == nil {
		return nil
	}
	return n.closeHandle(handle)
}

func (note *Notification) click() {
	note.notifier.focus()
	_ = note.Close()
}

func (n *Notifier) show(title string, opts Options, onClick func()) (h Handle, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("desktop: show panicked: %v", r)
		}
	}()
	h, err = n.platform.Show(title, opts, onClick)
	if err != nil {
		return nil, fmt.Errorf("desktop: show: %w", err)
	}
	return h, nil
}

func (n *Notifier) closeHandle(h Handle) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("desktop: close panicked: %v", r)
		}
	}()
	if err := h.Close(); err != nil {
		n.log.Warn("desktop: close notification", "error", err)
		return err
	}
	return nil
}

func (n *Notifier) focus() {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("desktop: focus panicked", "panic", fmt.Sprint(r))
		}
	}()
	n.platform.FocusWindow()
}
