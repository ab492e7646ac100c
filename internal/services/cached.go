package services

import (
	"context"

	"github.com/dmitrijs2005/ballotkeeper/internal/cache"
	"github.com/dmitrijs2005/ballotkeeper/internal/logging"
	"github.com/dmitrijs2005/ballotkeeper/internal/models"
	"github.com/dmitrijs2005/ballotkeeper/internal/store"
)

// statsPrefix keys derived results such as the dashboard.
const statsPrefix = "stats:"

// dependents lists the cache prefixes a write to a collection invalidates.
var dependents = map[models.Collection][]string{
	models.CollectionStudents:   {cache.Prefix(models.CollectionStudents), statsPrefix},
	models.CollectionVotes:      {cache.Prefix(models.CollectionVotes), cache.Prefix(models.CollectionStudents), statsPrefix},
	models.CollectionCandidates: {cache.Prefix(models.CollectionCandidates), statsPrefix},
	models.CollectionSessions:   {cache.Prefix(models.CollectionSessions), statsPrefix},
	models.CollectionConfig:     {cache.Prefix(models.CollectionConfig), statsPrefix},
}

// CachedReader runs Find through the query cache. Results are shared
// between callers and must be treated as read-only.
type CachedReader struct {
	store *store.DocumentStore
	cache *cache.QueryCache
	log   logging.Logger
}

func NewCachedReader(ds *store.DocumentStore, qc *cache.QueryCache, log logging.Logger) *CachedReader {
	return &CachedReader{store: ds, cache: qc, log: log}
}

// Find returns the cached result for (c, q) or reads it from the store and
// caches it under class. Errors are never cached.
func (r *CachedReader) Find(ctx context.Context, c models.Collection, q store.Query, class cache.DataClass) (*store.Result, error) {
	key := cache.Key(c, q)
	if v, ok := r.cache.Get(key); ok {
		if res, ok := v.(*store.Result); ok {
			r.log.Debug(ctx, "cache hit", "key", key)
			return res, nil
		}
		// a foreign value under a query key; drop it and read through
		r.cache.Invalidate(key)
	}

	res, err := r.store.Find(ctx, c, q)
	if err != nil {
		return nil, err
	}
	r.cache.Set(key, res, class)
	return res, nil
}

// Get reads a single document; point reads bypass the cache.
func (r *CachedReader) Get(ctx context.Context, c models.Collection, id string) (models.Document, error) {
	return r.store.Get(ctx, c, id)
}

// Invalidate drops every cached result depending on the given collections.
func (r *CachedReader) Invalidate(ctx context.Context, collections ...models.Collection) int {
	removed := 0
	seen := make(map[string]bool)
	for _, c := range collections {
		for _, p := range dependents[c] {
			if seen[p] {
				continue
			}
			seen[p] = true
			removed += r.cache.Invalidate(p)
		}
	}
	r.log.Debug(ctx, "invalidated", "collections", collections, "removed", removed)
	return removed
}

// Cache exposes the underlying cache for stats.
func (r *CachedReader) Cache() *cache.QueryCache {
	return r.cache
}

// findAll is a typed, cached Find.
func findAll[T any, PT interface {
	*T
	models.Document
}](ctx context.Context, r *CachedReader, c models.Collection, q store.Query, class cache.DataClass) ([]*T, error) {
	res, err := r.Find(ctx, c, q, class)
	if err != nil {
		return nil, err
	}
	out := make([]*T, 0, len(res.Documents))
	for _, d := range res.Documents {
		if v, ok := d.(PT); ok {
			out = append(out, (*T)(v))
		}
	}
	return out, nil
}
