package eventbus

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/accountkeeper/internal/server/events"
)

// MemoryBus delivers synchronously inside Publish. A handler error is
// returned to the publisher, which is expected to publish the envelope again;
// subscribers that already succeeded will see it twice.
type MemoryBus struct {
	mu   sync.RWMutex
	subs []subscription
}

type subscription struct {
	name    string
	handler events.Handler
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

func (b *MemoryBus) Subscribe(name string, h events.Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{name: name, handler: h})
}

func (b *MemoryBus) Publish(ctx context.Context, env events.Envelope) error {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subs...)
	b.mu.RUnlock()

	var errs []error
	for _, s := range subs {
		if err := events.Dispatch(ctx, env, s.handler); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
		}
	}
	return errors.Join(errs...)
}

func (b *MemoryBus) Run(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (b *MemoryBus) Close() error {
	return nil
}
