package service

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/friden-zhang/raspi-todo/internal/cache"
)

// Publisher receives one event per committed mutation. *hub.Hub implements it.
type Publisher interface {
	Broadcast(typ string, data any) error
}

// notifier carries what both services do after a commit: drop cached lists, then
// publish. Neither step can fail the mutation.
type notifier struct {
	cache  *cache.ListCache
	pub    Publisher
	logger *log.Logger
	now    func() time.Time
}

func newNotifier(c *cache.ListCache, pub Publisher, logger *log.Logger) notifier {
	return notifier{cache: c, pub: pub, logger: logger, now: time.Now}
}

// timestamp is truncated to what TIMESTAMPTZ stores, so a re-read row compares equal.
func (n *notifier) timestamp() time.Time {
	return n.now().UTC().Truncate(time.Microsecond)
}

func (n *notifier) publish(typ string, data any) {
	if err := n.pub.Broadcast(typ, data); err != nil {
		n.logger.Warn("broadcast failed", "type", typ, "err", err)
	}
}

func (n *notifier) invalidateTodos(ctx context.Context) {
	if n.cache == nil {
		return
	}
	if err := n.cache.InvalidateTodos(ctx); err != nil {
		n.logger.Warn("todo cache invalidation failed", "err", err)
	}
}

func (n *notifier) invalidateCategories(ctx context.Context) {
	if n.cache == nil {
		return
	}
	if err := n.cache.InvalidateCategories(ctx); err != nil {
		n.logger.Warn("category cache invalidation failed", "err", err)
	}
}

func truncate(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC().Truncate(time.Microsecond)
	return &v
}

func laterOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return b
	}
	return a
}
