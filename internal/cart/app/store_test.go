package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"testing"
	"time"

	"github.com/jcmexdev/orderium/internal/cart/domain"
	"github.com/jcmexdev/orderium/internal/pkg/kv"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func stock(n int) *int { return &n }

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestStore(t *testing.T, storage Storage, clock *fakeClock) *Store {
	t.Helper()
	return NewStore(context.Background(), storage, WithClock(clock.Now), WithLogger(quiet()))
}

func storedRecord(t *testing.T, storage Storage) (domain.Record, bool) {
	t.Helper()
	raw, ok, err := storage.Get(context.Background(), DefaultKey)
	if err != nil {
		t.Fatalf("storage.Get: %v", err)
	}
	if !ok {
		return domain.Record{}, false
	}
	var rec domain.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("stored record is not valid JSON: %v", err)
	}
	return rec, true
}

func TestAddItemClampsToStock(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)}
	s := newTestStore(t, kv.NewMemory(), clock)

	p := domain.Product{ID: 1, Price: 50, Stock: stock(3)}

	s.AddItem(ctx, p, 2)
	if got := s.ItemQuantity(ctx, 1); got != 2 {
		t.Fatalf("quantity = %d, want 2", got)
	}
	if got := s.Subtotal(ctx); got != 100 {
		t.Fatalf("subtotal = %v, want 100", got)
	}

	s.AddItem(ctx, p, 5)
	if got := s.ItemQuantity(ctx, 1); got != 3 {
		t.Fatalf("quantity = %d, want 3", got)
	}
	if got := s.Subtotal(ctx); got != 150 {
		t.Fatalf("subtotal = %v, want 150", got)
	}
}

func TestAddItemNeverExceedsStock(t *testing.T) {
	ctx := context.Background()

	for _, s := range []int{-2, 0, 1, 4, 10} {
		clock := &fakeClock{t: time.Now()}
		store := newTestStore(t, kv.NewMemory(), clock)
		p := domain.Product{ID: 9, Price: 1, Stock: stock(s)}

		for i := 0; i < 15; i++ {
			store.AddItem(ctx, p, 1)
			if got := store.ItemQuantity(ctx, 9); got > max(s, 0) {
				t.Fatalf("stock %d: quantity %d exceeds cap", s, got)
			}
		}
		if s <= 0 && len(store.Items(ctx)) != 0 {
			t.Fatalf("stock %d: line exists", s)
		}
	}
}

func TestAddItemUnboundedStock(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, kv.NewMemory(), &fakeClock{t: time.Now()})

	p := domain.Product{ID: 2, Price: 1}
	s.AddItem(ctx, p, 500)
	s.AddItem(ctx, p, 600)

	if got := s.ItemQuantity(ctx, 2); got != domain.UnboundedStock {
		t.Fatalf("quantity = %d, want %d", got, domain.UnboundedStock)
	}
}

func TestAddItemIgnoresNonPositiveQuantity(t *testing.T) {
	ctx := context.Background()
	storage := kv.NewMemory()
	s := newTestStore(t, storage, &fakeClock{t: time.Now()})

	s.AddItem(ctx, domain.Product{ID: 1, Price: 5}, 0)
	s.AddItem(ctx, domain.Product{ID: 1, Price: 5}, -3)

	if len(s.Items(ctx)) != 0 {
		t.Fatal("expected empty cart")
	}
	if _, ok := storedRecord(t, storage); ok {
		t.Fatal("nothing should have been persisted")
	}
}

func TestLinesUniqueAndOrdered(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, kv.NewMemory(), &fakeClock{t: time.Now()})

	s.AddItem(ctx, domain.Product{ID: 3, Price: 1}, 1)
	s.AddItem(ctx, domain.Product{ID: 1, Price: 1}, 1)
	s.AddItem(ctx, domain.Product{ID: 3, Price: 1}, 2)

	items := s.Items(ctx)
	if len(items) != 2 {
		t.Fatalf("got %d lines, want 2", len(items))
	}
	if items[0].Product.ID != 3 || items[0].Quantity != 3 || items[1].Product.ID != 1 {
		t.Fatalf("unexpected lines %+v", items)
	}
}

func TestUpdateQuantity(t *testing.T) {
	ctx := context.Background()

	t.Run("zero behaves like remove", func(t *testing.T) {
		a := newTestStore(t, kv.NewMemory(), &fakeClock{t: time.Now()})
		b := newTestStore(t, kv.NewMemory(), &fakeClock{t: time.Now()})
		for _, s := range []*Store{a, b} {
			s.AddItem(ctx, domain.Product{ID: 1, Price: 2}, 2)
			s.AddItem(ctx, domain.Product{ID: 2, Price: 3}, 1)
		}

		a.UpdateQuantity(ctx, 1, 0)
		b.RemoveItem(ctx, 1)

		if !reflect.DeepEqual(a.Items(ctx), b.Items(ctx)) {
			t.Fatalf("update(0) %+v != remove %+v", a.Items(ctx), b.Items(ctx))
		}
	})

	t.Run("clamps to line snapshot", func(t *testing.T) {
		s := newTestStore(t, kv.NewMemory(), &fakeClock{t: time.Now()})
		s.AddItem(ctx, domain.Product{ID: 1, Price: 2, Stock: stock(4)}, 1)

		s.UpdateQuantity(ctx, 1, 10)
		if got := s.ItemQuantity(ctx, 1); got != 4 {
			t.Fatalf("quantity = %d, want 4", got)
		}
	})

	t.Run("absent line is ignored", func(t *testing.T) {
		s := newTestStore(t, kv.NewMemory(), &fakeClock{t: time.Now()})
		s.UpdateQuantity(ctx, 42, 3)
		if len(s.Items(ctx)) != 0 {
			t.Fatal("update created a line")
		}
	})
}

func TestRemoveAbsentItem(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, kv.NewMemory(), &fakeClock{t: time.Now()})
	s.AddItem(ctx, domain.Product{ID: 1, Price: 2}, 1)

	s.RemoveItem(ctx, 99)

	if got := s.ItemCount(ctx); got != 1 {
		t.Fatalf("item count = %d, want 1", got)
	}
}

func TestSubtotalAfterEveryMutation(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, kv.NewMemory(), &fakeClock{t: time.Now()})

	check := func(step string) {
		t.Helper()
		v := s.View(ctx)
		var want float64
		var count int
		for _, it := range v.Items {
			want += it.Product.Price * float64(it.Quantity)
			count += it.Quantity
		}
		if v.Subtotal != want || v.ItemCount != count {
			t.Fatalf("%s: view %+v, want subtotal %v count %d", step, v, want, count)
		}
	}

	s.AddItem(ctx, domain.Product{ID: 1, Price: 9.5, Stock: stock(2)}, 3)
	check("add clamped")
	s.AddItem(ctx, domain.Product{ID: 2, Price: 1.25}, 4)
	check("add second")
	s.UpdateQuantity(ctx, 2, 1)
	check("update")
	s.RemoveItem(ctx, 1)
	check("remove")
	s.ClearCart(ctx)
	check("clear")
}

func TestPersistence(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip before expiry", func(t *testing.T) {
		storage := kv.NewMemory()
		clock := &fakeClock{t: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)}
		s := newTestStore(t, storage, clock)
		s.AddItem(ctx, domain.Product{ID: 1, Name: "Mug", Price: 12, Stock: stock(5)}, 2)
		s.AddItem(ctx, domain.Product{ID: 2, Price: 3}, 1)
		want := s.View(ctx)

		clock.Advance(6 * 24 * time.Hour)
		reloaded := newTestStore(t, storage, clock)

		got := reloaded.View(ctx)
		if !reflect.DeepEqual(got.Items, want.Items) || got.Subtotal != want.Subtotal {
			t.Fatalf("reloaded %+v, want %+v", got, want)
		}
	})

	t.Run("every mutation refreshes expiry", func(t *testing.T) {
		storage := kv.NewMemory()
		clock := &fakeClock{t: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)}
		s := newTestStore(t, storage, clock)

		s.AddItem(ctx, domain.Product{ID: 1, Price: 1}, 1)
		clock.Advance(time.Hour)
		s.UpdateQuantity(ctx, 1, 2)

		rec, ok := storedRecord(t, storage)
		if !ok {
			t.Fatal("no record persisted")
		}
		if want := clock.Now().Add(DefaultTTL).UnixMilli(); rec.ExpiresAt != want {
			t.Fatalf("expiresAt = %d, want %d", rec.ExpiresAt, want)
		}
	})

	t.Run("emptied cart removes record", func(t *testing.T) {
		storage := kv.NewMemory()
		s := newTestStore(t, storage, &fakeClock{t: time.Now()})
		s.AddItem(ctx, domain.Product{ID: 1, Price: 1}, 1)
		s.RemoveItem(ctx, 1)

		if _, ok := storedRecord(t, storage); ok {
			t.Fatal("record should be removed")
		}
	})

	t.Run("expired record is evicted on load", func(t *testing.T) {
		storage := kv.NewMemory()
		clock := &fakeClock{t: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)}
		s := newTestStore(t, storage, clock)
		s.AddItem(ctx, domain.Product{ID: 1, Price: 1}, 1)

		clock.Advance(DefaultTTL + time.Millisecond)
		reloaded := newTestStore(t, storage, clock)

		if len(reloaded.Items(ctx)) != 0 {
			t.Fatal("expired cart was restored")
		}
		if _, ok := storedRecord(t, storage); ok {
			t.Fatal("expired record was not cleared")
		}
	})

	t.Run("expiry while running clears cart", func(t *testing.T) {
		storage := kv.NewMemory()
		clock := &fakeClock{t: time.Now()}
		s := newTestStore(t, storage, clock)
		s.AddItem(ctx, domain.Product{ID: 1, Price: 1}, 1)

		clock.Advance(DefaultTTL + time.Second)

		if got := s.ItemCount(ctx); got != 0 {
			t.Fatalf("item count = %d, want 0", got)
		}
		if _, ok := storedRecord(t, storage); ok {
			t.Fatal("record should be removed")
		}
	})

	t.Run("malformed record loads empty and is kept", func(t *testing.T) {
		storage := kv.NewMemory()
		_ = storage.Set(ctx, DefaultKey, "{not json")

		s := newTestStore(t, storage, &fakeClock{t: time.Now()})
		if len(s.Items(ctx)) != 0 {
			t.Fatal("expected empty cart")
		}
		raw, ok, _ := storage.Get(ctx, DefaultKey)
		if !ok || raw != "{not json" {
			t.Fatal("malformed record should not be purged on load")
		}

		s.AddItem(ctx, domain.Product{ID: 1, Price: 1}, 1)
		if _, ok := storedRecord(t, storage); !ok {
			t.Fatal("mutation should overwrite the malformed record")
		}
	})
}

func TestLoadRepairsStoredLines(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{t: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)}
	storage := kv.NewMemory()

	raw, err := json.Marshal(domain.Record{
		Items: []domain.CartItem{
			{Product: domain.Product{ID: 1, Price: 5, Stock: stock(0)}, Quantity: 1},
			{Product: domain.Product{ID: 2, Price: 2, Stock: stock(3)}, Quantity: 10},
			{Product: domain.Product{ID: 3, Price: 1}, Quantity: 0},
			{Product: domain.Product{ID: 2, Price: 9, Stock: stock(9)}, Quantity: 1},
		},
		ExpiresAt: clock.Now().Add(time.Hour).UnixMilli(),
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	_ = storage.Set(ctx, DefaultKey, string(raw))

	s := newTestStore(t, storage, clock)

	items := s.Items(ctx)
	if len(items) != 1 || items[0].Product.ID != 2 || items[0].Quantity != 3 {
		t.Fatalf("items = %+v", items)
	}

	t.Run("out-of-stock line cannot be revived", func(t *testing.T) {
		s.UpdateQuantity(ctx, 1, 2)
		if got := s.ItemQuantity(ctx, 1); got != 0 {
			t.Fatalf("quantity = %d, want 0", got)
		}
		for _, it := range s.Items(ctx) {
			if it.Quantity < 1 {
				t.Fatalf("line with quantity %d", it.Quantity)
			}
		}
	})
}

type brokenStorage struct{ panics bool }

func (b brokenStorage) Get(context.Context, string) (string, bool, error) {
	if b.panics {
		panic("storage unavailable")
	}
	return "", false, errors.New("quota exceeded")
}

func (b brokenStorage) Set(context.Context, string, string) error {
	if b.panics {
		panic("storage unavailable")
	}
	return errors.New("quota exceeded")
}

func (b brokenStorage) Remove(context.Context, string) error {
	return errors.New("quota exceeded")
}

func TestStorageFailuresDoNotReachCart(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		name    string
		storage brokenStorage
	}{
		{"errors", brokenStorage{}},
		{"panics", brokenStorage{panics: true}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestStore(t, tc.storage, &fakeClock{t: time.Now()})
			s.AddItem(ctx, domain.Product{ID: 1, Price: 4}, 2)

			if got := s.Subtotal(ctx); got != 8 {
				t.Fatalf("subtotal = %v, want 8", got)
			}
			s.ClearCart(ctx)
			if got := s.ItemCount(ctx); got != 0 {
				t.Fatalf("item count = %d, want 0", got)
			}
		})
	}
}
