package permission

import (
	"errors"
	"sync"
)

// MaxAttributes is the registry capacity, one bit of a Mask64 each.
const MaxAttributes = 64

// Registry is the catalogue of known attributes. Each name gets a stable bit
// position in registration order.
type Registry struct {
	mu           sync.RWMutex
	nameToBit    map[string]int
	names        []string
	descriptions []string
	frozen       bool
}

// NewRegistry creates an empty [Registry].
func NewRegistry() *Registry {
	return &Registry{
		nameToBit: make(map[string]int),
	}
}

// Register assigns the next bit to name. Must be called before [Registry.Freeze].
func (r *Registry) Register(name, description string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return -1, errors.New("registry frozen")
	}
	if name == "" {
		return -1, errors.New("attribute name cannot be empty")
	}
	if _, exists := r.nameToBit[name]; exists {
		return -1, errors.New("attribute already registered: " + name)
	}

	next := len(r.names)
	if next >= MaxAttributes {
		return -1, errors.New("attribute limit exceeded")
	}

	r.nameToBit[name] = next
	r.names = append(r.names, name)
	r.descriptions = append(r.descriptions, description)
	return next, nil
}

// Bit returns the bit index for name, or false if not registered.
func (r *Registry) Bit(name string) (int, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	return bit, ok
}

// Name returns the attribute registered at bit.
func (r *Registry) Name(bit int) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if bit < 0 || bit >= len(r.names) {
		return "", false
	}
	return r.names[bit], true
}

// Description returns the human description registered with name.
func (r *Registry) Description(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	bit, ok := r.nameToBit[name]
	if !ok {
		return ""
	}
	return r.descriptions[bit]
}

// Names returns every registered attribute in bit order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.names...)
}

// All returns a mask with every registered bit set.
func (r *Registry) All() Mask64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var m Mask64
	for bit := range r.names {
		m.Set(bit)
	}
	return m
}

// Freeze prevents further registrations.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen = true
}

// Count returns the number of registered attributes.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}
