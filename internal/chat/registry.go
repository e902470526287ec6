package chat

import "sync"

// Registry is the single source of truth for "is this user currently
// reachable". It maps a user ID to its live connection. At most one
// connection per user: a second connection from the same user replaces
// the entry (last-connect-wins).
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]*Client)}
}

// Register installs c as the connection for its user, returning the
// superseded connection if one was present.
func (r *Registry) Register(c *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.clients[c.UserID]
	r.clients[c.UserID] = c
	if prev == c {
		return nil
	}
	return prev
}

// Unregister removes the entry for userID, returning the removed client or
// nil when there was none. Calling it again is a no-op.
func (r *Registry) Unregister(userID string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[userID]
	if !ok {
		return nil
	}
	delete(r.clients, userID)
	return c
}

// UnregisterClient removes c only if it is still the registered connection
// for its user. A superseded session's cleanup must not evict the
// replacement connection.
func (r *Registry) UnregisterClient(c *Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.clients[c.UserID] != c {
		return false
	}
	delete(r.clients, c.UserID)
	return true
}

func (r *Registry) Lookup(userID string) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.clients[userID]
	return c, ok
}

func (r *Registry) IsOnline(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Snapshot returns a copy of all live connections.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}
