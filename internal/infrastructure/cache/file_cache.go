package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/vocmd/internal/domain"
	"github.com/doeshing/vocmd/internal/pkg/filesystem"
	"github.com/doeshing/vocmd/internal/ports"
)

// entry is the on-disk form of one cached suggestion list.
type entry struct {
	Key       string                   `json:"key"`
	Items     []domain.SmartSuggestion `json:"items"`
	CreatedAt time.Time                `json:"created_at"`
	ExpiresAt time.Time                `json:"expires_at"`
}

// FileCache stores suggestion lists as JSON blobs addressed by hashed key,
// so short-lived CLI processes share one cache.
type FileCache struct {
	dir        string
	mu         sync.Mutex
	maxEntries int
	now        func() time.Time
}

// NewFileCache returns a cache rooted under ~/.vocmd/cache/suggestions.
func NewFileCache() *FileCache {
	return NewFileCacheAt(filesystem.AppPath("cache", "suggestions"))
}

// NewFileCacheAt returns a cache rooted at dir.
func NewFileCacheAt(dir string) *FileCache {
	return &FileCache{dir: dir, maxEntries: 100, now: time.Now}
}

// Get retrieves a live entry; expired entries are removed.
func (c *FileCache) Get(key string) ([]domain.SmartSuggestion, bool) {
	if key == "" {
		return nil, false
	}
	path := c.pathFor(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	var e entry
	if err := json.Unmarshal(data, &e); err != nil || e.Key != key {
		return nil, false
	}
	if !c.now().Before(e.ExpiresAt) {
		_ = os.Remove(path)
		return nil, false
	}
	return e.Items, true
}

// Set stores items under key for ttl. Write failures are ignored; the cache is best-effort.
func (c *FileCache) Set(key string, items []domain.SmartSuggestion, ttl time.Duration) {
	if key == "" || ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.MkdirAll(c.dir, domain.DirectoryPermissions); err != nil {
		return
	}
	now := c.now()
	data, err := json.Marshal(entry{Key: key, Items: items, CreatedAt: now, ExpiresAt: now.Add(ttl)})
	if err != nil {
		return
	}
	if err := os.WriteFile(c.pathFor(key), data, domain.SecureFilePermissions); err != nil {
		return
	}
	_ = c.evictIfNeeded()
}

// Invalidate removes every entry whose key starts with prefix.
func (c *FileCache) Invalidate(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.entries() {
		if strings.HasPrefix(e.Key, prefix) {
			_ = os.Remove(c.pathFor(e.Key))
		}
	}
}

// Dir exposes the cache directory path.
func (c *FileCache) Dir() string {
	return c.dir
}

// Clear removes all cached entries.
func (c *FileCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// Len returns the number of entries on disk, expired or not.
func (c *FileCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries())
}

func (c *FileCache) entries() []entry {
	files, err := os.ReadDir(c.dir)
	if err != nil {
		return nil
	}
	var out []entry
	for _, f := range files {
		if f.IsDir() || filepath.Ext(f.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(c.dir, f.Name()))
		if err != nil {
			continue
		}
		var e entry
		if err := json.Unmarshal(data, &e); err == nil {
			out = append(out, e)
		}
	}
	return out
}

func (c *FileCache) pathFor(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:16])+".json")
}

func (c *FileCache) evictIfNeeded() error {
	if c.maxEntries <= 0 {
		return nil
	}
	files, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(files) <= c.maxEntries {
		return nil
	}
	type fileInfo struct {
		name string
		mod  time.Time
	}
	var infos []fileInfo
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		infos = append(infos, fileInfo{name: f.Name(), mod: info.ModTime()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].mod.Before(infos[j].mod) })
	for len(infos) > c.maxEntries {
		old := infos[0]
		_ = os.Remove(filepath.Join(c.dir, old.name))
		infos = infos[1:]
	}
	return nil
}

var _ ports.SuggestionCache = (*FileCache)(nil)
