// Package cache holds recently fetched folder contents so browse and
// selective-persist calls do not refetch from Graph.
package cache

import (
	"sync"
	"time"

	"mailbridge/models"
)

// DefaultTTL is how long a folder's cached contents stay valid.
const DefaultTTL = 5 * time.Minute

type entry struct {
	mu       sync.RWMutex
	emails   []models.Email
	bySource map[string]int
	storedAt time.Time
}

// EmailCache caches one email list per folder. Entries expire lazily:
// an expired entry is dropped when next touched, never by a background
// sweeper. The outer lock only guards the folder map; each folder has
// its own lock so operations on different folders do not serialize.
type EmailCache struct {
	mu      sync.RWMutex
	entries map[string]*entry
	ttl     time.Duration
	now     func() time.Time
}

// NewEmailCache builds a cache with the given TTL; zero or negative
// falls back to DefaultTTL.
func NewEmailCache(ttl time.Duration) *EmailCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &EmailCache{
		entries: make(map[string]*entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *EmailCache) expired(e *entry) bool {
	return c.now().Sub(e.storedAt) > c.ttl
}

// folderEntry returns the live entry for a folder, dropping it first if
// it has expired.
func (c *EmailCache) folderEntry(folderID string) *entry {
	c.mu.RLock()
	e, ok := c.entries[folderID]
	c.mu.RUnlock()
	if !ok {
		return nil
	}
	e.mu.RLock()
	stale := c.expired(e)
	e.mu.RUnlock()
	if stale {
		c.mu.Lock()
		// Recheck under the write lock; a store may have refreshed it.
		if cur, ok := c.entries[folderID]; ok && cur == e {
			delete(c.entries, folderID)
		}
		c.mu.Unlock()
		return nil
	}
	return e
}

// StoreFolderEmails replaces a folder's cached contents wholesale and
// restarts its TTL. Partial merges are the caller's job; the cache only
// ever sees complete folder snapshots.
func (c *EmailCache) StoreFolderEmails(folderID string, emails []models.Email) {
	bySource := make(map[string]int, len(emails))
	copied := make([]models.Email, len(emails))
	copy(copied, emails)
	for i, email := range copied {
		bySource[email.SourceID] = i
	}

	c.mu.Lock()
	e, ok := c.entries[folderID]
	if !ok {
		e = &entry{}
		c.entries[folderID] = e
	}
	c.mu.Unlock()

	e.mu.Lock()
	e.emails = copied
	e.bySource = bySource
	e.storedAt = c.now()
	e.mu.Unlock()
}

// FolderEmails returns a folder's full cached list, or false when the
// folder is absent or expired.
func (c *EmailCache) FolderEmails(folderID string) ([]models.Email, bool) {
	e := c.folderEntry(folderID)
	if e == nil {
		return nil, false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.Email, len(e.emails))
	copy(out, e.emails)
	return out, true
}

// GetEmailsByIDs returns the cached emails matching the given source
// IDs, plus the IDs that were not found. A fully expired folder reports
// every ID as missing.
func (c *EmailCache) GetEmailsByIDs(folderID string, sourceIDs []string) ([]models.Email, []string) {
	e := c.folderEntry(folderID)
	if e == nil {
		return nil, sourceIDs
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	found := make([]models.Email, 0, len(sourceIDs))
	var missing []string
	for _, id := range sourceIDs {
		if i, ok := e.bySource[id]; ok {
			found = append(found, e.emails[i])
		} else {
			missing = append(missing, id)
		}
	}
	return found, missing
}

// Info describes one folder's cache entry.
type Info struct {
	FolderID   string        `json:"folder_id"`
	EmailCount int           `json:"email_count"`
	Age        time.Duration `json:"age"`
	TTL        time.Duration `json:"ttl"`
}

// Info returns metadata about a folder's entry, or nil when absent or
// expired.
func (c *EmailCache) Info(folderID string) *Info {
	e := c.folderEntry(folderID)
	if e == nil {
		return nil
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &Info{
		FolderID:   folderID,
		EmailCount: len(e.emails),
		Age:        c.now().Sub(e.storedAt),
		TTL:        c.ttl,
	}
}

// ClearFolder drops one folder's entry.
func (c *EmailCache) ClearFolder(folderID string) {
	c.mu.Lock()
	delete(c.entries, folderID)
	c.mu.Unlock()
}

// ClearAll drops every entry.
func (c *EmailCache) ClearAll() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
}
