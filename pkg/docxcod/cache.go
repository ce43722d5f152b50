package docxcod

import (
	"container/list"
	"errors"
	"io"
	"sync"
	"time"
)

// CacheConfig contains configuration options for the template cache
type CacheConfig struct {
	// MaxSize is the maximum number of templates to cache. 0 disables caching.
	MaxSize int
	// TTL is the time-to-live for cached templates. 0 means no expiration.
	TTL time.Duration
}

// TemplateCache keeps prepared templates by key, evicting the least recently
// used entry when full and expired entries on access.
type TemplateCache struct {
	mu     sync.Mutex
	cache  map[string]*cacheEntry
	lru    *list.List
	config CacheConfig
}

type cacheEntry struct {
	key      string
	template *PreparedTemplate
	expiry   time.Time
	element  *list.Element
}

// NewTemplateCache creates a cache sized by the global configuration.
func NewTemplateCache() *TemplateCache {
	config := GetGlobalConfig()
	return NewTemplateCacheWithConfig(CacheConfig{
		MaxSize: config.CacheMaxSize,
		TTL:     config.CacheTTL,
	})
}

// NewTemplateCacheWithConfig creates a new template cache with the given configuration
func NewTemplateCacheWithConfig(config CacheConfig) *TemplateCache {
	return &TemplateCache{
		cache:  make(map[string]*cacheEntry),
		lru:    list.New(),
		config: config,
	}
}

// Prepare returns the template cached under key, or prepares one from reader
// with the global configuration and caches it.
func (tc *TemplateCache) Prepare(reader io.Reader, key string) (*PreparedTemplate, error) {
	if tmpl, ok := tc.Get(key); ok {
		return tmpl, nil
	}
	if reader == nil {
		return nil, errors.New("template not in cache and no reader provided")
	}

	prepared, err := prepare(reader, nil, nil)
	if err != nil {
		return nil, err
	}
	tc.Set(key, prepared)
	return prepared, nil
}

// Get retrieves a template from cache without preparing a new one
func (tc *TemplateCache) Get(key string) (*PreparedTemplate, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	entry, exists := tc.cache[key]
	if !exists {
		return nil, false
	}
	if tc.expired(entry) {
		tc.removeLocked(entry)
		return nil, false
	}

	tc.lru.MoveToFront(entry.element)
	return entry.template, true
}

// Set adds a template to the cache
func (tc *TemplateCache) Set(key string, template *PreparedTemplate) {
	if tc.config.MaxSize <= 0 {
		return
	}

	tc.mu.Lock()
	defer tc.mu.Unlock()

	if existing, exists := tc.cache[key]; exists {
		existing.template = template
		existing.expiry = tc.expiry()
		tc.lru.MoveToFront(existing.element)
		return
	}

	for tc.lru.Len() >= tc.config.MaxSize {
		oldest := tc.lru.Back()
		if oldest == nil {
			break
		}
		tc.removeLocked(oldest.Value.(*cacheEntry))
	}

	entry := &cacheEntry{
		key:      key,
		template: template,
		expiry:   tc.expiry(),
	}
	entry.element = tc.lru.PushFront(entry)
	tc.cache[key] = entry
}

// Remove removes a template from the cache and closes it
func (tc *TemplateCache) Remove(key string) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if entry, exists := tc.cache[key]; exists {
		tc.removeLocked(entry)
	}
}

// Clear removes all templates from the cache and closes them
func (tc *TemplateCache) Clear() {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	for _, entry := range tc.cache {
		if entry.template != nil {
			entry.template.Close()
		}
	}
	tc.cache = make(map[string]*cacheEntry)
	tc.lru = list.New()
}

// Size returns the current number of cached templates
func (tc *TemplateCache) Size() int {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return len(tc.cache)
}

// Close closes all templates in the cache and clears it
func (tc *TemplateCache) Close() error {
	tc.Clear()
	return nil
}

func (tc *TemplateCache) expiry() time.Time {
	if tc.config.TTL > 0 {
		return time.Now().Add(tc.config.TTL)
	}
	return time.Time{}
}

func (tc *TemplateCache) expired(entry *cacheEntry) bool {
	return tc.config.TTL > 0 && time.Now().After(entry.expiry)
}

func (tc *TemplateCache) removeLocked(entry *cacheEntry) {
	if entry.template != nil {
		entry.template.Close()
	}
	delete(tc.cache, entry.key)
	tc.lru.Remove(entry.element)
}
