package alerts

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
)

func TestFeed(t *testing.T) {
	ctx := context.Background()
	f := NewFeed(3, slog.New(slog.NewTextHandler(io.Discard, nil)))

	for i := 1; i <= 5; i++ {
		f.Show(ctx, fmt.Sprintf("alert %d", i), "", "")
	}

	got := f.Recent(0)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if got[0].Title != "alert 5" || got[2].Title != "alert 3" {
		t.Fatalf("unexpected order: %+v", got)
	}
	if got[0].Variant != VariantDefault || got[0].ID == "" {
		t.Fatalf("defaults not applied: %+v", got[0])
	}

	if top := f.Recent(1); len(top) != 1 || top[0].Title != "alert 5" {
		t.Fatalf("Recent(1) = %+v", top)
	}
}
