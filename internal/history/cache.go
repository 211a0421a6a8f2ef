// Package history keeps a bounded, per-document record of chat turns for the
// lifetime of the process.
package history

import (
	"sync"
	"time"
)

// DefaultMaxPairs is the number of user/model exchanges kept per document.
const DefaultMaxPairs = 10

// Role identifies who produced an entry.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Entry is one turn of a conversation.
type Entry struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"timestamp"`
}

// Cache maps document ids to their recent turns. It is safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	byDoc      map[string][]Entry
}

// New returns a Cache that keeps at most 2*maxPairs entries per document.
// A non-positive maxPairs selects DefaultMaxPairs.
func New(maxPairs int) *Cache {
	if maxPairs <= 0 {
		maxPairs = DefaultMaxPairs
	}
	return &Cache{maxEntries: 2 * maxPairs, byDoc: make(map[string][]Entry)}
}

// Get returns a copy of the document's entries, oldest first.
func (c *Cache) Get(docID string) []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	entries := c.byDoc[docID]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}

// Append adds e and drops the oldest entries beyond the cap.
func (c *Cache) Append(docID string, e Entry) {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	entries := append(c.byDoc[docID], e)
	if over := len(entries) - c.maxEntries; over > 0 {
		entries = append([]Entry(nil), entries[over:]...)
	}
	c.byDoc[docID] = entries
}

// Clear forgets the document's conversation.
func (c *Cache) Clear(docID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byDoc, docID)
}

// Len returns the number of entries held for docID.
func (c *Cache) Len(docID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.byDoc[docID])
}
