package channel

import "sync"

// Registry is the per-application name -> Channel map.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]Channel)}
}

// GetOrCreate returns the existing channel for name if present - regardless
// of what type the caller thinks it should be, since type is a pure
// function of name anyway - or creates one of the type TypeOf(name)
// dictates.
func (r *Registry) GetOrCreate(name string) Channel {
	r.mu.RLock()
	if ch, ok := r.channels[name]; ok {
		r.mu.RUnlock()
		return ch
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.channels[name]; ok {
		return ch
	}
	var ch Channel
	switch TypeOf(name) {
	case Private:
		ch = NewPrivate(name)
	case Presence:
		ch = NewPresence(name)
	default:
		ch = NewPublic(name)
	}
	r.channels[name] = ch
	return ch
}

func (r *Registry) Get(name string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[name]
	return ch, ok
}

func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, name)
}

func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.channels[name]
	return ok
}

// Names returns a snapshot of every registered channel name, used by the
// introspection endpoints and the periodic stats reporter.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	return names
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}
