package toaster

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// CacheEntry records one file a spell toasted clean.
type CacheEntry struct {
	Run      string    `json:"run"`
	Spell    string    `json:"spell"`
	Size     int64     `json:"size"`
	ModTime  int64     `json:"mod_time"`
	Warnings int       `json:"warnings"`
	Toasted  time.Time `json:"toasted"`
}

// Cache remembers which files a spell already toasted clean so resumed
// runs skip them. Keys bind the file identity to the spell name: any
// change to path, modification time or size misses.
type Cache struct {
	db *pebble.DB
}

// OpenCache opens (or creates) the cache at path.
func OpenCache(path string) (*Cache, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Cache{db: db}, nil
}

func cacheKey(spell, path string, modTime time.Time, size int64) []byte {
	return []byte(fmt.Sprintf("%s\x00%s\x00%d\x00%d", spell, path, modTime.UnixNano(), size))
}

// Lookup returns the entry recorded for the file identity, if any.
func (c *Cache) Lookup(spell, path string, modTime time.Time, size int64) (*CacheEntry, bool) {
	data, closer, err := c.db.Get(cacheKey(spell, path, modTime, size))
	if err != nil {
		// pebble.ErrNotFound and corruption alike are a miss.
		return nil, false
	}
	defer closer.Close()

	var entry CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	return &entry, true
}

// Store records one clean result under the file identity.
func (c *Cache) Store(spell, path string, modTime time.Time, size int64, entry CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.db.Set(cacheKey(spell, path, modTime, size), data, pebble.NoSync)
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.db.Close()
}
