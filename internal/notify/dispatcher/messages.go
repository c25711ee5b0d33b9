package dispatcher

import (
	"fmt"
	"strconv"

	"github.com/jcmexdev/orderium/internal/notify/alerts"
	"github.com/jcmexdev/orderium/internal/notify/desktop"
	"github.com/jcmexdev/orderium/internal/notify/events"
)

const (
	// OrdersKey is the cache key of the customer's order list.
	OrdersKey = "orders"

	notificationIcon = "/favicon.ico"
)

var statusBodies = map[string]string{
	events.StatusToDelivery: "Your order %s is ready for delivery.",
	events.StatusInDelivery: "Your order %s is on its way.",
	events.StatusDelivered:  "Your order %s has been delivered.",
}

// effects is everything one event turns into.
type effects struct {
	title   string
	body    string
	variant alerts.Variant
	keys    []string
	desktop desktop.Options
}

func describe(e events.Event) effects {
	ref := e.Ref()
	fx := effects{
		variant: alerts.VariantDefault,
		keys:    []string{ref.CacheKey(), OrdersKey},
	}

	switch e := e.(type) {
	case events.Created:
		fx.title = "Order received"
		fx.body = fmt.Sprintf("We received your order %s.", ref.OrderNumber)
		// a new order has no per-order cache entry yet
		fx.keys = []string{OrdersKey}
	case events.Assigned:
		fx.title = "Order assigned"
		fx.body = fmt.Sprintf("Your order %s has been assigned to a driver.", ref.OrderNumber)
	case events.StatusChanged:
		fx.title = "Order updated"
		if tmpl, ok := statusBodies[e.Status]; ok {
			fx.body = fmt.Sprintf(tmpl, ref.OrderNumber)
		} else {
			fx.body = fmt.Sprintf("The status of your order %s has changed.", ref.OrderNumber)
		}
		if e.Status == events.StatusDelivered {
			fx.desktop.Vibrate = append([]int(nil), desktop.DeliveredVibration...)
		}
	case events.Cancelled:
		fx.title = "Order cancelled"
		fx.body = fmt.Sprintf("Your order %s has been cancelled.", ref.OrderNumber)
		fx.variant = alerts.VariantDestructive
		fx.desktop.RequireInteraction = true
	}

	fx.desktop.Body = fx.body
	fx.desktop.Icon = notificationIcon
	fx.desktop.Tag = "order-" + strconv.FormatInt(ref.OrderID, 10)
	return fx
}
