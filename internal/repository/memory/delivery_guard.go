package memory

import (
	"context"
	"sync"
)

// DeliveryGuard is a process-local repository.DeliveryGuard.
type DeliveryGuard struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

func NewDeliveryGuard() *DeliveryGuard {
	return &DeliveryGuard{seen: make(map[string]struct{})}
}

func (g *DeliveryGuard) Seen(_ context.Context, externalID string) (bool, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.seen[externalID]
	return ok, nil
}

func (g *DeliveryGuard) Remember(_ context.Context, externalID string) error {
	g.mu.Lock()
	g.seen[externalID] = struct{}{}
	g.mu.Unlock()
	return nil
}
