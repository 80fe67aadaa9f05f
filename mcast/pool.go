package mcast

import (
	"context"
	"fmt"
	"sync"
)

// Pool keeps one Listener per endpoint so multiple consumers of the
// same (group, port) share a socket instead of each opening their own.
type Pool struct {
	mu        sync.Mutex
	listeners map[string]*Listener
	opts      ListenOptions
}

// NewPool constructs an empty Pool. opts is applied to every Listener
// the pool creates.
func NewPool(opts ListenOptions) *Pool {
	return &Pool{listeners: make(map[string]*Listener), opts: opts}
}

// Acquire returns the pool's Listener for ep, creating and joining one
// if this is the first request for that endpoint.
func (p *Pool) Acquire(ctx context.Context, ep Endpoint) (*Listener, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := ep.String()
	if l, ok := p.listeners[key]; ok {
		return l, nil
	}

	l, err := Listen(ctx, ep, p.opts)
	if err != nil {
		return nil, fmt.Errorf("mcast: pool acquire %s: %w", ep, err)
	}
	p.listeners[key] = l
	return l, nil
}

// Release leaves and closes the endpoint's socket, if present. Safe to
// call even if the endpoint was never acquired.
func (p *Pool) Release(ep Endpoint) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := ep.String()
	l, ok := p.listeners[key]
	if !ok {
		return nil
	}
	delete(p.listeners, key)
	return l.Close()
}

// CloseAll releases every endpoint currently held by the pool.
func (p *Pool) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	for key, l := range p.listeners {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(p.listeners, key)
	}
	return firstErr
}
