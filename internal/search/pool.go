package search

import (
	"context"
	"sync"
	"time"

	"github.com/oukeidos/subdeck/internal/api"
	"github.com/oukeidos/subdeck/internal/config"
	"github.com/oukeidos/subdeck/internal/logger"
	"github.com/oukeidos/subdeck/internal/model"
	"golang.org/x/sync/singleflight"
)

// Fetcher loads the bulk card pool.
type Fetcher interface {
	FetchCards(ctx context.Context, q api.CardQuery) ([]model.Card, error)
}

type poolEntry struct {
	cards   []model.Card
	fetched time.Time
}

// CardPool caches bulk card fetches for a short TTL. Concurrent callers
// asking for the same query share one request.
type CardPool struct {
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time

	mu      sync.Mutex
	entries map[string]poolEntry
	group   singleflight.Group
}

func NewCardPool(f Fetcher, ttl time.Duration) *CardPool {
	if ttl <= 0 {
		ttl = config.DefaultCacheTTL
	}
	return &CardPool{
		fetcher: f,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]poolEntry),
	}
}

func (p *CardPool) cached(key string) ([]model.Card, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.entries[key]
	if !ok {
		return nil, false
	}
	if p.now().Sub(e.fetched) >= p.ttl {
		delete(p.entries, key)
		return nil, false
	}
	return e.cards, true
}

// Get returns the cards for q from cache or the backend. The returned slice
// is shared and must not be modified. A caller whose ctx ends stops waiting,
// but the shared fetch keeps running for the others.
func (p *CardPool) Get(ctx context.Context, q api.CardQuery) ([]model.Card, error) {
	key := q.Key()
	if cards, ok := p.cached(key); ok {
		return cards, nil
	}
	ch := p.group.DoChan(key, func() (interface{}, error) {
		cards, err := p.fetcher.FetchCards(context.WithoutCancel(ctx), q)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.entries[key] = poolEntry{cards: cards, fetched: p.now()}
		p.mu.Unlock()
		logger.Debug("Card pool refreshed", "key", key, "cards", len(cards))
		return cards, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.([]model.Card), nil
	}
}

// Invalidate drops every cached fetch, e.g. after an ingestion.
func (p *CardPool) Invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[string]poolEntry)
}
