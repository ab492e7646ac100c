// Package memstore is an in-memory store.Engine. It backs tests and the
// "memory" engine setting; nothing survives a restart.
package memstore

import (
	"context"
	"sort"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
	"github.com/dmitrijs2005/ballotkeeper/internal/models"
	"github.com/dmitrijs2005/ballotkeeper/internal/store"
)

type docs = xsync.MapOf[string, store.Record]

// Engine keeps one concurrent map per collection. ReplaceCollection swaps
// the whole map, so readers see either the old or the new content.
type Engine struct {
	collections *xsync.MapOf[models.Collection, *docs]
	closed      atomic.Bool
}

var _ store.Engine = (*Engine)(nil)

func New() *Engine {
	return &Engine{collections: xsync.NewMapOf[models.Collection, *docs]()}
}

func (e *Engine) collection(c models.Collection) (*docs, error) {
	if e.closed.Load() {
		return nil, common.Storagef(errClosed, "memstore")
	}
	m, _ := e.collections.LoadOrCompute(c, func() *docs {
		return xsync.NewMapOf[string, store.Record]()
	})
	return m, nil
}

func (e *Engine) Insert(_ context.Context, rec store.Record) error {
	m, err := e.collection(rec.Collection)
	if err != nil {
		return err
	}
	if _, loaded := m.LoadOrStore(rec.ID, clone(rec)); loaded {
		return common.ErrAlreadyExists
	}
	return nil
}

func (e *Engine) Get(_ context.Context, c models.Collection, id string) (store.Record, error) {
	m, err := e.collection(c)
	if err != nil {
		return store.Record{}, err
	}
	rec, ok := m.Load(id)
	if !ok {
		return store.Record{}, common.ErrNotFound
	}
	return clone(rec), nil
}

func (e *Engine) List(_ context.Context, c models.Collection) ([]store.Record, error) {
	m, err := e.collection(c)
	if err != nil {
		return nil, err
	}
	out := make([]store.Record, 0, m.Size())
	m.Range(func(_ string, rec store.Record) bool {
		out = append(out, clone(rec))
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (e *Engine) Replace(_ context.Context, rec store.Record, expectedRev string) error {
	m, err := e.collection(rec.Collection)
	if err != nil {
		return err
	}
	err = nil
	m.Compute(rec.ID, func(old store.Record, loaded bool) (store.Record, bool) {
		switch {
		case !loaded:
			err = common.ErrNotFound
			return old, true
		case old.Rev != expectedRev:
			err = common.ErrConflict
			return old, false
		}
		return clone(rec), false
	})
	return err
}

func (e *Engine) Remove(_ context.Context, c models.Collection, id, expectedRev string) error {
	m, err := e.collection(c)
	if err != nil {
		return err
	}
	err = nil
	m.Compute(id, func(old store.Record, loaded bool) (store.Record, bool) {
		switch {
		case !loaded:
			err = common.ErrNotFound
		case old.Rev != expectedRev:
			err = common.ErrConflict
			return old, false
		}
		return old, true
	})
	return err
}

func (e *Engine) ReplaceCollection(_ context.Context, c models.Collection, recs []store.Record) error {
	if e.closed.Load() {
		return common.Storagef(errClosed, "memstore")
	}
	next := xsync.NewMapOf[string, store.Record]()
	for _, rec := range recs {
		next.Store(rec.ID, clone(rec))
	}
	e.collections.Store(c, next)
	return nil
}

func (e *Engine) Close() error {
	e.closed.Store(true)
	return nil
}

func clone(rec store.Record) store.Record {
	rec.Body = append([]byte(nil), rec.Body...)
	return rec
}
