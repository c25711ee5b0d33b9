package dispatcher

import (
	"context"

	"github.com/jcmexdev/orderium/internal/notify/alerts"
	"github.com/jcmexdev/orderium/internal/notify/desktop"
	"github.com/jcmexdev/orderium/internal/notify/events"
	"github.com/jcmexdev/orderium/internal/notify/permission"
)

// Channel is the live order-event connection. *channel.Channel satisfies it.
type Channel interface {
	Connect(ctx context.Context)
	Close()
	IsConnected() bool
	Err() error
	Subscribe(kind events.Kind, fn events.Handler) (unsubscribe func())
	WatchStatus(fn func(connected bool)) (stop func())
}

// Alerter is the in-app alert surface. Fire-and-forget.
type Alerter interface {
	Show(ctx context.Context, title, description string, variant alerts.Variant)
}

// Invalidator marks a query key stale. Fire-and-forget.
type Invalidator interface {
	Invalidate(ctx context.Context, key string)
}

type Notifier interface {
	Notify(ctx context.Context, title string, opts desktop.Options) (*desktop.Notification, error)
}

type PermissionGate interface {
	Activate(ctx context.Context) permission.Permission
	Current() permission.Permission
}
