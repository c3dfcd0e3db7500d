// Package dedup provides a session-scoped membership cache for banner
// identities.
package dedup

// Cache remembers which (host, port) identities were already observed in
// the current monitoring session. It grows without bound, which is
// acceptable because sessions are time-boxed; it is never reused across
// sessions.
type Cache struct {
	seen map[string]struct{}
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{seen: make(map[string]struct{})}
}

// Seen reports whether the identity was marked before.
func (c *Cache) Seen(identity string) bool {
	_, ok := c.seen[identity]
	return ok
}

// Mark records the identity.
func (c *Cache) Mark(identity string) {
	c.seen[identity] = struct{}{}
}

// Len returns the number of distinct identities marked so far.
func (c *Cache) Len() int {
	return len(c.seen)
}
