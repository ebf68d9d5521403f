package tokens

import (
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/docindex/internal/hasher"
)

// Cache remembers token counts by content digest and encoding
type Cache struct {
	cache *lru.Cache[string, int]
	hits  int
	miss  int
	mu    sync.Mutex
}

// NewCache creates a cache holding at most maxLen counts
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 1024
	}
	cache, err := lru.New[string, int](maxLen)
	if err != nil {
		// Only fails for non-positive sizes
		cache, _ = lru.New[string, int](1024)
	}
	return &Cache{cache: cache}
}

// CountText returns the token count for text, consulting the cache first
func (c *Cache) CountText(tok Tokenizer, text string) (int, error) {
	digest, err := hasher.HashReader(strings.NewReader(text))
	if err != nil {
		return 0, err
	}
	key := tok.Encoding() + ":" + digest

	if n, ok := c.cache.Get(key); ok {
		c.mu.Lock()
		c.hits++
		c.mu.Unlock()
		return n, nil
	}

	n := tok.Count(text)
	c.cache.Add(key, n)
	c.mu.Lock()
	c.miss++
	c.mu.Unlock()
	return n, nil
}

// Analyze is Analyze with the token count served from the cache
func (c *Cache) Analyze(tok Tokenizer, text string) (Stats, error) {
	n, err := c.CountText(tok, text)
	if err != nil {
		return Stats{}, err
	}
	return describe(tok.Encoding(), n, text), nil
}

// Stats returns hit and miss counts
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.miss
}

// Len returns the number of cached entries
func (c *Cache) Len() int {
	return c.cache.Len()
}
