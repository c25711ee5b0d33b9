package desktop

import (
	"context"
	"log/slog"
	"sync"

	"github.com/jcmexdev/orderium/internal/notify/permission"
)

// LogPlatform stands in for the OS notification API when the agent runs
// headless: notifications are written to the log. Its permission starts at
// the configured value and a request resolves to Answer.
type LogPlatform struct {
	Log    *slog.Logger
	Answer permission.Permission

	mu      sync.Mutex
	current permission.Permission
}

func NewLogPlatform(log *slog.Logger, initial permission.Permission) *LogPlatform {
	return &LogPlatform{Log: log, Answer: permission.Granted, current: initial}
}

func (p *LogPlatform) Permission() permission.Permission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

func (p *LogPlatform) RequestPermission(ctx context.Context) (permission.Permission, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = p.Answer
	p.Log.InfoContext(ctx, "desktop: notification permission requested", "answer", p.Answer)
	return p.current, nil
}

func (p *LogPlatform) Show(title string, opts Options, _ func()) (Handle, error) {
	p.Log.Info("desktop: notification",
		"title", title,
		"body", opts.Body,
		"tag", opts.Tag,
		"require_interaction", opts.RequireInteraction,
		"vibrate", opts.Vibrate,
	)
	return logHandle{log: p.Log, tag: opts.Tag}, nil
}

func (p *LogPlatform) FocusWindow() {
	p.Log.Info("desktop: focus window")
}

type logHandle struct {
	log *slog.Logger
	tag string
}

func (h logHandle) Close() error {
	h.log.Debug("desktop: notification closed", "tag", h.tag)
	return nil
}
