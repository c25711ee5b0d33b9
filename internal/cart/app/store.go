package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jcmexdev/orderium/internal/cart/domain"
)

const (
	// DefaultKey is the storage key holding the persisted cart record.
	DefaultKey = "orderium_cart"
	// DefaultTTL is how long a persisted cart survives without a mutation.
	DefaultTTL = 7 * 24 * time.Hour
)

// Store owns the cart lines and keeps the persisted record in step with
// every mutation. Stock caps are taken from the product snapshot handed in
// by the caller; the store never looks stock up on its own.
type Store struct {
	storage Storage
	key     string
	ttl     time.Duration
	now     func() time.Time
	log     *slog.Logger

	mu        sync.Mutex
	items     []domain.CartItem
	expiresAt time.Time
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func WithKey(key string) Option {
	return func(s *Store) { s.key = key }
}

func WithTTL(ttl time.Duration) Option {
	return func(s *Store) { s.ttl = ttl }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// NewStore builds a Store and restores the persisted cart, if any.
// A malformed record yields an empty cart and is left in place until the
// next mutation overwrites it; an expired record is evicted.
func NewStore(ctx context.Context, storage Storage, opts ...Option) *Store {
	s := &Store{
		storage: storage,
		key:     DefaultKey,
		ttl:     DefaultTTL,
		now:     time.Now,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) {
	var (
		raw string
		ok  bool
	)
	s.guard(ctx, "get", func() error {
		var err error
		raw, ok, err = s.storage.Get(ctx, s.key)
		return err
	})
	if !ok || raw == "" {
		return
	}

	var rec domain.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.log.WarnContext(ctx, "cart: ignoring malformed stored cart", "key", s.key, "error", err)
		return
	}

	if rec.Expired(s.now()) {
		s.log.InfoContext(ctx, "cart: stored cart expired", "key", s.key, "expires_at", rec.ExpiresAt)
		s.guard(ctx, "remove", func() error { return s.storage.Remove(ctx, s.key) })
		return
	}

	s.items = sanitize(rec.Items)
	if len(s.items) > 0 {
		s.expiresAt = time.UnixMilli(rec.ExpiresAt)
	}
}

// sanitize drops lines that could not have been produced by the store
// itself: non-positive quantities, out-of-stock snapshots and repeated
// product ids. Quantities above the snapshot's stock cap are clamped.
func sanitize(items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, 0, len(items))
	seen := make(map[int64]struct{}, len(items))
	for _, it := range items {
		if it.Quantity < 1 || it.Product.OutOfStock() {
			continue
		}
		it.Quantity = min(it.Quantity, it.Product.StockCap())
		if _, dup := seen[it.Product.ID]; dup {
			continue
		}
		seen[it.Product.ID] = struct{}{}
		out = append(out, it)
	}
	return out
}

// AddItem merges qty units of product into the cart, clamped to the
// product's stock cap. Products with a non-positive stock are ignored.
func (s *Store) AddItem(ctx context.Context, product domain.Product, qty int) {
	if qty < 1 {
		s.log.WarnContext(ctx, "cart: ignoring non-positive quantity", "product_id", product.ID, "quantity", qty)
		return
	}
	if product.OutOfStock() {
		s.log.WarnContext(ctx, "cart: product out of stock", "product_id", product.ID, "stock", *product.Stock)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(ctx)

	if i := s.indexLocked(product.ID); i >= 0 {
		s.items[i].Product = product
		s.items[i].Quantity = min(s.items[i].Quantity+qty, product.StockCap())
	} else {
		s.items = append(s.items, domain.CartItem{
			Product:  product,
			Quantity: min(qty, product.StockCap()),
		})
	}
	s.persistLocked(ctx)
}

// RemoveItem deletes the line for productID. Unknown ids are ignored.
func (s *Store) RemoveItem(ctx context.Context, productID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeLocked(ctx, productID)
}

func (s *Store) removeLocked(ctx context.Context, productID int64) {
	s.expireLocked(ctx)
	i := s.indexLocked(productID)
	if i < 0 {
		return
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.persistLocked(ctx)
}

// UpdateQuantity sets the quantity of an existing line, clamped to the cap
// of the line's own product snapshot. qty <= 0 removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, productID int64, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if qty <= 0 {
		s.removeLocked(ctx, productID)
		return
	}

	s.expireLocked(ctx)
	i := s.indexLocked(productID)
	if i < 0 {
		return
	}
	s.items[i].Quantity = min(qty, s.items[i].Product.StockCap())
	s.persistLocked(ctx)
}

func (s *Store) ClearCart(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.persistLocked(ctx)
}

// ItemQuantity returns the quantity held for productID, or 0.
func (s *Store) ItemQuantity(ctx context.Context, productID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(ctx)
	if i := s.indexLocked(productID); i >= 0 {
		return s.items[i].Quantity
	}
	return 0
}

// Items returns a copy of the cart lines in insertion order.
func (s *Store) Items(ctx context.Context) []domain.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(ctx)
	return append([]domain.CartItem(nil), s.items...)
}

func (s *Store) Subtotal(ctx context.Context) float64 {
	return s.View(ctx).Subtotal
}

func (s *Store) ItemCount(ctx context.Context) int {
	return s.View(ctx).ItemCount
}

// View computes the read projection from the current lines.
func (s *Store) View(ctx context.Context) domain.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked(ctx)

	v := domain.View{Items: append([]domain.CartItem{}, s.items...)}
	for _, it := range s.items {
		v.Subtotal += it.Subtotal()
		v.ItemCount += it.Quantity
	}
	if len(s.items) > 0 {
		exp := s.expiresAt
		v.ExpiresAt = &exp
	}
	return v
}

func (s *Store) indexLocked(productID int64) int {
	for i, it := range s.items {
		if it.Product.ID == productID {
			return i
		}
	}
	return -1
}

// expireLocked drops a cart whose TTL elapsed while the process was running.
func (s *Store) expireLocked(ctx context.Context) {
	if len(s.items) == 0 || !s.now().After(s.expiresAt) {
		return
	}
	s.log.InfoContext(ctx, "cart: expired in memory", "key", s.key)
	s.items = nil
	s.persistLocked(ctx)
}

func (s *Store) persistLocked(ctx context.Context) {
	if len(s.items) == 0 {
		s.expiresAt = time.Time{}
		s.guard(ctx, "remove", func() error { return s.storage.Remove(ctx, s.key) })
		return
	}

	s.expiresAt = s.now().Add(s.ttl)
	payload, err := json.Marshal(domain.Record{
		Items:     s.items,
		ExpiresAt: s.expiresAt.UnixMilli(),
	})
	if err != nil {
		s.log.ErrorContext(ctx, "cart: encode record", "error", err)
		return
	}
	s.guard(ctx, "set", func() error { return s.storage.Set(ctx, s.key, string(payload)) })
}

// guard runs a storage call so that neither its error nor a panic reaches
// the cart logic; both are logged.
func (s *Store) guard(ctx context.Context, op string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			s.log.ErrorContext(ctx, "cart: storage panicked", "op", op, "key", s.key, "panic", fmt.Sprint(r))
		}
	}()
	if err := fn(); err != nil {
		s.log.ErrorContext(ctx, "cart: storage call failed", "op", op, "key", s.key, "error", err)
	}
}
