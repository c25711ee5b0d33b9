// Package events defines the order events the server pushes to a customer
// session. Event is a closed union: the only implementations are Created,
// Assigned, StatusChanged and Cancelled, and consumers are expected to
// switch over them exhaustively.
package events

import (
	"context"
	"strconv"
)

// Kind is the wire name of an event.
type Kind string

const (
	KindCreated       Kind = "order:created"
	KindAssigned      Kind = "order:assigned"
	KindStatusChanged Kind = "order:status_changed"
	KindCancelled     Kind = "order:cancelled"
)

// Kinds lists every event kind, in the order handlers are registered.
var Kinds = []Kind{KindCreated, KindAssigned, KindStatusChanged, KindCancelled}

// Delivery statuses carried by StatusChanged.
const (
	StatusToDelivery = "to_delivery"
	StatusInDelivery = "in_delivery"
	StatusDelivered  = "delivered"
)

// Order identifies the order an event is about.
type Order struct {
	OrderID     int64  `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
}

// CacheKey is the per-order cache key, e.g. "order:7".
func (o Order) CacheKey() string {
	return "order:" + strconv.FormatInt(o.OrderID, 10)
}

type Event interface {
	Kind() Kind
	Ref() Order
	sealed()
}

type Created struct {
	Order
}

type Assigned struct {
	Order
}

type StatusChanged struct {
	Order
	Status string `json:"status"`
}

type Cancelled struct {
	Order
}

func (Created) Kind() Kind       { return KindCreated }
func (Assigned) Kind() Kind      { return KindAssigned }
func (StatusChanged) Kind() Kind { return KindStatusChanged }
func (Cancelled) Kind() Kind     { return KindCancelled }

func (e Created) Ref() Order       { return e.Order }
func (e Assigned) Ref() Order      { return e.Order }
func (e StatusChanged) Ref() Order { return e.Order }
func (e Cancelled) Ref() Order     { return e.Order }

func (Created) sealed()       {}
func (Assigned) sealed()      {}
func (StatusChanged) sealed() {}
func (Cancelled) sealed()     {}

// Handler consumes one event. It runs on the delivering goroutine.
type Handler func(ctx context.Context, e Event)
