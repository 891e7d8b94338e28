package identity

import (
	"context"
	"sync"
)

// Listener is told about every successful sign-in.
type Listener func(ctx context.Context, id *Identity)

// Registry is a synchronous sign-in fan-out. It is passed explicitly to the
// components that need it.
type Registry struct {
	mu        sync.RWMutex
	nextID    int
	listeners []registered
}

type registered struct {
	id int
	fn Listener
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Subscribe adds l and returns a function that removes it again. Calling
// the returned function more than once is harmless.
func (r *Registry) Subscribe(l Listener) (unsubscribe func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.listeners = append(r.listeners, registered{id: id, fn: l})

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for i, reg := range r.listeners {
				if reg.id == id {
					r.listeners = append(r.listeners[:i:i], r.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// Notify calls every listener in subscription order on the caller's goroutine.
func (r *Registry) Notify(ctx context.Context, id *Identity) {
	r.mu.RLock()
	snapshot := make([]Listener, len(r.listeners))
	for i, reg := range r.listeners {
		snapshot[i] = reg.fn
	}
	r.mu.RUnlock()

	for _, fn := range snapshot {
		fn(ctx, id)
	}
}

// notifyingProvider announces every identity the wrapped provider verifies.
type notifyingProvider struct {
	next Provider
	reg  *Registry
}

// WithSignInNotifications makes next announce each verified identity on
// reg. Placed below a CachingProvider it fires once per new token, which is
// what CloudVault treats as a sign-in.
func WithSignInNotifications(next Provider, reg *Registry) Provider {
	return &notifyingProvider{next: next, reg: reg}
}

func (p *notifyingProvider) CurrentUser(ctx context.Context, token string) (*Identity, error) {
	id, err := p.next.CurrentUser(ctx, token)
	if err != nil {
		return nil, err
	}
	cp := *id
	p.reg.Notify(ctx, &cp)
	return id, nil
}
