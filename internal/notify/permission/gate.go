// Package permission tracks the OS notification permission and makes sure
// the user is asked at most once.
package permission

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

type Permission string

const (
	Default Permission = "default"
	Granted Permission = "granted"
	Denied  Permission = "denied"
)

// Parse maps a platform permission string; anything unknown is Default.
func Parse(s string) Permission {
	switch Permission(s) {
	case Granted:
		return Granted
	case Denied:
		return Denied
	default:
		return Default
	}
}

// Platform is the host's permission API. A request, once issued, cannot be
// cancelled.
type Platform interface {
	Permission() Permission
	RequestPermission(ctx context.Context) (Permission, error)
}

type Gate struct {
	platform Platform
	log      *slog.Logger

	mu        sync.Mutex
	current   Permission
	requested bool
	watchers  []func(Permission)
}

func NewGate(platform Platform, log *slog.Logger) *Gate {
	if log == nil {
		log = slog.Default()
	}
	return &Gate{platform: platform, log: log, current: Default}
}

// Activate reads the platform permission and, while it is still Default,
// asks for it. Denied is final and is never asked about again.
func (g *Gate) Activate(ctx context.Context) Permission {
	g.mu.Lock()
	if g.current == Denied {
		g.mu.Unlock()
		return Denied
	}
	g.mu.Unlock()

	p := g.read(ctx)
	g.set(p)
	if p != Default {
		return p
	}

	g.mu.Lock()
	if g.requested {
		g.mu.Unlock()
		return p
	}
	g.requested = true
	g.mu.Unlock()

	answer, err := g.request(ctx)
	if err != nil {
		g.log.WarnContext(ctx, "permission: request failed", "error", err)
		return g.Current()
	}
	g.log.InfoContext(ctx, "permission: request answered", "permission", answer)
	g.set(answer)
	return answer
}

func (g *Gate) Current() Permission {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.current
}

// Watch calls fn whenever the permission changes.
func (g *Gate) Watch(fn func(Permission)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.watchers = append(g.watchers, fn)
}

func (g *Gate) set(p Permission) {
	g.mu.Lock()
	if g.current == p {
		g.mu.Unlock()
		return
	}
	g.current = p
	ws := slices.Clone(g.watchers)
	g.mu.Unlock()

	for _, fn := range ws {
		fn(p)
	}
}

func (g *Gate) read(ctx context.Context) (p Permission) {
	defer func() {
		if r := recover(); r != nil {
			g.log.ErrorContext(ctx, "permission: platform panicked", "panic", fmt.Sprint(r))
			p = Default
		}
	}()
	return g.platform.Permission()
}

func (g *Gate) request(ctx context.Context) (p Permission, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("permission: platform panicked: %v", r)
		}
	}()
	return g.platform.RequestPermission(ctx)
}
