package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Renderer produces an artifact from a set of inputs. Implementations must be
// pure functions of their inputs, their Properties and their RenderingKey.
type Renderer interface {
	Name() string
	Properties() map[string]any
	Render(ctx context.Context, inputs map[string]any) (map[string]any, error)
}

// Keyer is implemented by renderers whose output depends on state outside
// the inputs (such as the contents of a referenced file).
type Keyer interface {
	RenderingKey(inputs map[string]any) (map[string]any, error)
}

// Indexer is notified about every entry written to the store.
type Indexer interface {
	RecordCacheEntry(renderer, keyHash string, size int) error
}

// Provider renders through some caching policy. *Cache and Uncached
// implement it.
type Provider interface {
	Render(ctx context.Context, r Renderer, inputs map[string]any) (*Result, error)
}

// Result is the outcome of a cached render.
type Result struct {
	Data      Data
	KeyHash   string
	FromCache bool
}

// Cache memoizes renderer output in a Store, fronted by an in-memory layer.
type Cache struct {
	store   Store
	memory  *gocache.Cache
	indexer Indexer
	now     func() time.Time
}

// New creates a cache on top of store. A memoryTTL of zero keeps in-memory
// entries for the lifetime of the process.
func New(store Store, memoryTTL time.Duration) *Cache {
	if memoryTTL <= 0 {
		memoryTTL = gocache.NoExpiration
	}
	return &Cache{
		store:  store,
		memory: gocache.New(memoryTTL, 30*time.Second),
		now:    time.Now,
	}
}

// SetIndexer sets the indexer notified about stored entries
func (c *Cache) SetIndexer(indexer Indexer) {
	c.indexer = indexer
}

// Key builds the canonical key for rendering inputs with r.
func Key(r Renderer, inputs map[string]any) (map[string]any, error) {
	var additional any
	if keyer, ok := r.(Keyer); ok {
		extra, err := keyer.RenderingKey(inputs)
		if err != nil {
			return nil, fmt.Errorf("failed to compute rendering key for %s: %w", r.Name(), err)
		}
		if extra != nil {
			additional = extra
		}
	}

	return map[string]any{
		"name":                r.Name(),
		"renderer_properties": r.Properties(),
		"object_properties":   inputs,
		"additional_key":      additional,
	}, nil
}

// Render returns the cached output of r for inputs, rendering and storing it
// on a miss. Setting inputs["cache"] to false bypasses the cache entirely.
func (c *Cache) Render(ctx context.Context, r Renderer, inputs map[string]any) (*Result, error) {
	key, err := Key(r, inputs)
	if err != nil {
		return nil, err
	}
	keyHash, err := Hash(key)
	if err != nil {
		return nil, fmt.Errorf("failed to hash cache key: %w", err)
	}

	useCache := true
	if v, ok := inputs["cache"].(bool); ok && !v {
		useCache = false
	}

	if useCache {
		if data, ok := c.lookup(r.Name(), keyHash); ok {
			return &Result{Data: data, KeyHash: keyHash, FromCache: true}, nil
		}
	}

	raw, err := r.Render(ctx, inputs)
	if err != nil {
		return nil, err
	}

	normalized, err := Normalize(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize %s output: %w", r.Name(), err)
	}
	data, _ := normalized.(map[string]any)

	if useCache {
		if err := c.save(r.Name(), keyHash, key, raw); err != nil {
			return nil, err
		}
		c.memory.SetDefault(memoryKey(r.Name(), keyHash), Data(data))
	}

	return &Result{Data: Data(data), KeyHash: keyHash}, nil
}

func (c *Cache) lookup(renderer, keyHash string) (Data, bool) {
	if v, ok := c.memory.Get(memoryKey(renderer, keyHash)); ok {
		return v.(Data), true
	}

	raw, err := c.store.Get(renderer, keyHash)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Printf("Warning: cache read failed for %s/%s, re-rendering: %v", renderer, keyHash, err)
		}
		return nil, false
	}

	decoded, err := Unmarshal(raw)
	if err != nil {
		log.Printf("Warning: corrupt cache entry %s/%s, re-rendering: %v", renderer, keyHash, err)
		return nil, false
	}

	doc, ok := decoded.(map[string]any)
	if !ok {
		log.Printf("Warning: corrupt cache entry %s/%s, re-rendering", renderer, keyHash)
		return nil, false
	}
	if meta, ok := doc["meta"].(map[string]any); ok {
		if stored, _ := meta["keyhash"].(string); stored != "" && stored != keyHash {
			log.Printf("Warning: cache entry %s/%s has mismatching key hash, re-rendering", renderer, keyHash)
			return nil, false
		}
	}
	object, ok := doc["object"].(map[string]any)
	if !ok {
		log.Printf("Warning: cache entry %s/%s has no object, re-rendering", renderer, keyHash)
		return nil, false
	}

	data := Data(object)
	c.memory.SetDefault(memoryKey(renderer, keyHash), data)
	return data, true
}

func (c *Cache) save(renderer, keyHash string, key map[string]any, object map[string]any) error {
	serialized, err := Marshal(map[string]any{
		"key": key,
		"meta": map[string]any{
			"rendered": c.now().UTC().Format(time.RFC3339),
			"keyhash":  keyHash,
		},
		"object": object,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize cache entry: %w", err)
	}

	if err := c.store.Put(renderer, keyHash, serialized); err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	if c.indexer != nil {
		if err := c.indexer.RecordCacheEntry(renderer, keyHash, len(serialized)); err != nil {
			log.Printf("Warning: failed to index cache entry %s/%s: %v", renderer, keyHash, err)
		}
	}
	return nil
}

func memoryKey(renderer, keyHash string) string {
	return renderer + "|" + keyHash
}

// Uncached wraps a renderer so that it can be called through the same
// interface as a Cache without persisting anything.
type Uncached struct{}

// Render calls r directly and normalizes the output.
func (Uncached) Render(ctx context.Context, r Renderer, inputs map[string]any) (*Result, error) {
	key, err := Key(r, inputs)
	if err != nil {
		return nil, err
	}
	keyHash, err := Hash(key)
	if err != nil {
		return nil, err
	}
	raw, err := r.Render(ctx, inputs)
	if err != nil {
		return nil, err
	}
	normalized, err := Normalize(raw)
	if err != nil {
		return nil, err
	}
	data, _ := normalized.(map[string]any)
	return &Result{Data: Data(data), KeyHash: keyHash}, nil
}
