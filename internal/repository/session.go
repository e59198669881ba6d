package repository

import (
	"sync"

	"github.com/deppfellow/crudrouter/internal/metrics"
)

// sessionGuard makes Release idempotent and keeps the open-sessions gauge
// accurate.
type sessionGuard struct {
	once     sync.Once
	store    string
	resource string
}

func openGuard(store, resourceName string) *sessionGuard {
	metrics.SessionOpened(store, resourceName)
	return &sessionGuard{store: store, resource: resourceName}
}

func (g *sessionGuard) release(fn func()) {
	g.once.Do(func() {
		fn()
		metrics.SessionReleased(g.store, g.resource)
	})
}
