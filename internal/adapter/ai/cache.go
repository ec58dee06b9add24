package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/talentsift/talentsift/internal/domain"
)

type cachedVec struct {
	vec  []float32
	used uint64
}

// embedCache wraps an AIClient and memoizes embedding vectors keyed by a
// hash of the input text. Resume text repeats across re-ranks and repeated
// uploads within a process, so even a small cache absorbs most provider
// calls. ChatJSON passes through untouched.
type embedCache struct {
	base     domain.AIClient
	capacity int

	mu   sync.Mutex
	tick uint64
	vecs map[string]*cachedVec
}

// NewEmbedCache wraps base with an embedding cache holding up to capacity
// entries, evicting the least recently used. capacity <= 0 disables caching.
func NewEmbedCache(base domain.AIClient, capacity int) domain.AIClient {
	if base == nil || capacity <= 0 {
		return base
	}
	return &embedCache{base: base, capacity: capacity, vecs: make(map[string]*cachedVec, capacity)}
}

func (c *embedCache) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string

	c.mu.Lock()
	for i, t := range texts {
		if e, ok := c.vecs[embedKey(t)]; ok {
			c.tick++
			e.used = c.tick
			out[i] = e.vec
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	c.mu.Unlock()

	if len(missIdx) == 0 {
		return out, nil
	}

	vecs, err := c.base.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, domain.ErrEmbedding
	}

	c.mu.Lock()
	for j, idx := range missIdx {
		out[idx] = vecs[j]
		c.store(embedKey(missTexts[j]), vecs[j])
	}
	c.mu.Unlock()
	return out, nil
}

func (c *embedCache) ChatJSON(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error) {
	return c.base.ChatJSON(ctx, systemPrompt, userPrompt, maxTokens)
}

// store inserts under c.mu. When full it evicts the entry with the oldest
// use tick; a linear scan is fine at the configured capacities.
func (c *embedCache) store(key string, vec []float32) {
	c.tick++
	if e, ok := c.vecs[key]; ok {
		e.vec = vec
		e.used = c.tick
		return
	}
	if len(c.vecs) >= c.capacity {
		var coldKey string
		coldUsed := c.tick
		for k, e := range c.vecs {
			if e.used <= coldUsed {
				coldKey, coldUsed = k, e.used
			}
		}
		delete(c.vecs, coldKey)
	}
	c.vecs[key] = &cachedVec{vec: vec, used: c.tick}
}

func embedKey(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
