// Package alerts is the in-app alert surface: a bounded, most-recent-first
// feed the storefront UI polls and renders as toasts.
package alerts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

const DefaultCapacity = 50

type Alert struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Variant     Variant   `json:"variant"`
	At          time.Time `json:"at"`
}

type Feed struct {
	capacity int
	now      func() time.Time
	log      *slog.Logger

	mu     sync.RWMutex
	alerts []Alert
}

func NewFeed(capacity int, log *slog.Logger) *Feed {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if log == nil {
		log = slog.Default()
	}
	return &Feed{capacity: capacity, now: time.Now, log: log}
}

// Show records an alert. It never fails.
func (f *Feed) Show(ctx context.Context, title, description string, variant Variant) {
	if variant == "" {
		variant = VariantDefault
	}
	a := Alert{
		ID:          uuid.NewString(),
		Title:       title,
		Description: description,
		Variant:     variant,
		At:          f.now(),
	}

	f.mu.Lock()
	f.alerts = append(f.alerts, a)
	if over := len(f.alerts) - f.capacity; over > 0 {
		f.alerts = append([]Alert(nil), f.alerts[over:]...)
	}
	f.mu.Unlock()

	f.log.InfoContext(ctx, "alert", "title", title, "description", description, "variant", variant)
}

// Recent returns up to limit alerts, newest first. limit <= 0 means all.
func (f *Feed) Recent(limit int) []Alert {
	f.mu.RLock()
	defer f.mu.RUnlock()

	n := len(f.alerts)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Alert, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, f.alerts[i])
	}
	return out
}
