package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/ballotkeeper/internal/models"
)

// BulkFailure reports one rejected document by its position in the input.
type BulkFailure struct {
	Index int    `json:"index"`
	Error string `json:"error"`
	Err   error  `json:"-"`
}

// BulkResult summarizes a BulkCreate. Created is aligned with the input;
// failed positions hold a zero Identity.
type BulkResult struct {
	SuccessCount int           `json:"successCount"`
	Failures     []BulkFailure `json:"failures"`
	Created      []Identity    `json:"created"`
}

// BulkCreate creates every document independently. One failure never
// aborts the others; failures are reported sorted by index.
func (s *DocumentStore) BulkCreate(ctx context.Context, c models.Collection, docs []json.RawMessage) *BulkResult {
	res := &BulkResult{
		Failures: []BulkFailure{},
		Created:  make([]Identity, len(docs)),
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.bulkConcurrency)

	for i, raw := range docs {
		g.Go(func() error {
			id, err := s.CreateRaw(ctx, c, raw)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failures = append(res.Failures, BulkFailure{Index: i, Error: err.Error(), Err: err})
				return nil
			}
			res.Created[i] = id
			res.SuccessCount++
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(res.Failures, func(i, j int) bool { return res.Failures[i].Index < res.Failures[j].Index })
	s.log.Info(ctx, "bulk create finished", "collection", c, "ok", res.SuccessCount, "failed", len(res.Failures))
	return res
}
