// Package app implements the tenant boundary: an Application binds
// (app-id, key, secret) to its own channel registry and connection
// registry, and the process-wide Registry authenticates inbound keys.
package app

import (
	"fmt"
	"sync"

	"github.com/pulsewire/broker/internal/channel"
	"github.com/pulsewire/broker/internal/connection"
)

// Application is one tenant.
type Application struct {
	ID     string
	Key    string
	Secret string

	Channels    *channel.Registry
	Connections *connection.Registry
}

func New(id, key, secret string) *Application {
	return &Application{
		ID:          id,
		Key:         key,
		Secret:      secret,
		Channels:    channel.NewRegistry(),
		Connections: connection.NewRegistry(),
	}
}

// Registry is the process-wide application registry, created once at boot
// and shared by every HTTP handler and protocol engine.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]*Application
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*Application)}
}

// Add registers app, overwriting any previous application with the same
// id. Applications are created at boot or by administrative call and are
// never implicitly destroyed.
func (r *Registry) Add(a *Application) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[a.ID] = a
}

func (r *Registry) Get(id string) (*Application, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	return a, ok
}

// AuthenticateKey returns the application whose public key equals key, if
// any. The publish endpoint's auth_key query parameter is checked against
// this; Create does its own key check under the write lock instead.
func (r *Registry) AuthenticateKey(key string) (*Application, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.byID {
		if a.Key == key {
			return a, true
		}
	}
	return nil, false
}

// Create registers a into the registry, rejecting it if its id or key
// collides with an existing application. Unlike Add, the id/key checks and
// the insertion happen under a single lock, so two concurrent Create calls
// for the same id or key cannot both succeed.
func (r *Registry) Create(a *Application) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[a.ID]; exists {
		return fmt.Errorf("application %q already exists", a.ID)
	}
	for _, existing := range r.byID {
		if existing.Key == a.Key {
			return fmt.Errorf("key already in use by application %s", existing.ID)
		}
	}
	r.byID[a.ID] = a
	return nil
}

// List returns every registered application id, in no particular order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	return ids
}
