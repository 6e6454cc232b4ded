// Package venue implements the per-venue REST and streaming clients and the
// registry the scanner iterates over.
package venue

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/cexarb/arbot/internal/crypto"
	"github.com/cexarb/arbot/internal/domain"
)

// Registry holds the connected venue clients keyed by name. Iteration order
// is always ascending by venue name so that scans are deterministic when two
// venues quote the same price.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]domain.VenueClient
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]domain.VenueClient)}
}

// Add registers a client under its own name, replacing any previous client
// with the same name.
func (r *Registry) Add(c domain.VenueClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.Name()] = c
}

// Get returns the client registered under name.
func (r *Registry) Get(name string) (domain.VenueClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("venue: %q: %w", name, domain.ErrVenueUnknown)
	}
	return c, nil
}

// Names returns the registered venue names in ascending order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// All returns the registered clients in ascending name order.
func (r *Registry) All() []domain.VenueClient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]domain.VenueClient, 0, len(names))
	for _, name := range names {
		out = append(out, r.clients[name])
	}
	return out
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// New constructs a venue client by name.
func New(name string, creds crypto.Credentials, testnet bool, logger *slog.Logger) (domain.VenueClient, error) {
	switch name {
	case "binance":
		return NewBinanceClient(creds, testnet, logger), nil
	case "kraken":
		return NewKrakenClient(creds, logger), nil
	default:
		return nil, fmt.Errorf("venue: %q: %w", name, domain.ErrVenueUnknown)
	}
}
