package storetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
	"github.com/dmitrijs2005/ballotkeeper/internal/models"
	"github.com/dmitrijs2005/ballotkeeper/internal/store"
)

// EngineFactory returns a fresh, empty engine. The suite closes it.
type EngineFactory func(t *testing.T) store.Engine

// RunEngineTests runs the engine contract against the engines built by factory.
func RunEngineTests(t *testing.T, name string, factory EngineFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("InsertGet", func(t *testing.T) { testInsertGet(t, open(t, factory)) })
		t.Run("InsertDuplicate", func(t *testing.T) { testInsertDuplicate(t, open(t, factory)) })
		t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, open(t, factory)) })
		t.Run("ListOrdered", func(t *testing.T) { testListOrdered(t, open(t, factory)) })
		t.Run("ReplaceRevision", func(t *testing.T) { testReplaceRevision(t, open(t, factory)) })
		t.Run("RemoveRevision", func(t *testing.T) { testRemoveRevision(t, open(t, factory)) })
		t.Run("ReplaceCollection", func(t *testing.T) { testReplaceCollection(t, open(t, factory)) })
		t.Run("ConcurrentReplace", func(t *testing.T) { testConcurrentReplace(t, open(t, factory)) })
	})
}

func open(t *testing.T, factory EngineFactory) store.Engine {
	t.Helper()
	e := factory(t)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func rec(c models.Collection, id, rev, body string) store.Record {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return store.Record{
		Collection: c,
		ID:         id,
		Rev:        rev,
		Type:       models.TypeStudent,
		CreatedAt:  now,
		UpdatedAt:  now,
		Body:       []byte(body),
	}
}

func testInsertGet(t *testing.T, e store.Engine) {
	ctx := context.Background()
	in := rec(models.CollectionStudents, "student_1", "1-a", `{"id":"student_1"}`)
	require.NoError(t, e.Insert(ctx, in))

	got, err := e.Get(ctx, models.CollectionStudents, "student_1")
	require.NoError(t, err)
	assert.Equal(t, in.ID, got.ID)
	assert.Equal(t, in.Rev, got.Rev)
	assert.Equal(t, in.Type, got.Type)
	assert.True(t, in.CreatedAt.Equal(got.CreatedAt))
	assert.True(t, in.UpdatedAt.Equal(got.UpdatedAt))
	assert.JSONEq(t, string(in.Body), string(got.Body))

	// collections are separate namespaces
	_, err = e.Get(ctx, models.CollectionCandidates, "student_1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func testInsertDuplicate(t *testing.T, e store.Engine) {
	ctx := context.Background()
	require.NoError(t, e.Insert(ctx, rec(models.CollectionStudents, "s", "1-a", `{}`)))
	err := e.Insert(ctx, rec(models.CollectionStudents, "s", "1-b", `{}`))
	require.ErrorIs(t, err, common.ErrAlreadyExists)

	got, err := e.Get(ctx, models.CollectionStudents, "s")
	require.NoError(t, err)
	assert.Equal(t, "1-a", got.Rev)
}

func testGetMissing(t *testing.T, e store.Engine) {
	_, err := e.Get(context.Background(), models.CollectionStudents, "nope")
	require.ErrorIs(t, err, common.ErrNotFound)

	recs, err := e.List(context.Background(), models.CollectionVotes)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func testListOrdered(t *testing.T, e store.Engine) {
	ctx := context.Background()
	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, e.Insert(ctx, rec(models.CollectionStudents, id, "1-x", `{}`)))
	}
	require.NoError(t, e.Insert(ctx, rec(models.CollectionCandidates, "z", "1-x", `{}`)))

	recs, err := e.List(ctx, models.CollectionStudents)
	require.NoError(t, err)
	ids := make([]string, 0, len(recs))
	for _, r := range recs {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func testReplaceRevision(t *testing.T, e store.Engine) {
	ctx := context.Background()
	require.NoError(t, e.Insert(ctx, rec(models.CollectionStudents, "s", "1-a", `{"v":1}`)))

	err := e.Replace(ctx, rec(models.CollectionStudents, "s", "2-b", `{"v":2}`), "1-zzz")
	require.ErrorIs(t, err, common.ErrConflict)

	err = e.Replace(ctx, rec(models.CollectionStudents, "missing", "2-b", `{}`), "1-a")
	require.ErrorIs(t, err, common.ErrNotFound)

	require.NoError(t, e.Replace(ctx, rec(models.CollectionStudents, "s", "2-b", `{"v":2}`), "1-a"))
	got, err := e.Get(ctx, models.CollectionStudents, "s")
	require.NoError(t, err)
	assert.Equal(t, "2-b", got.Rev)
	assert.JSONEq(t, `{"v":2}`, string(got.Body))
}

func testRemoveRevision(t *testing.T, e store.Engine) {
	ctx := context.Background()
	require.NoError(t, e.Insert(ctx, rec(models.CollectionStudents, "s", "1-a", `{}`)))

	require.ErrorIs(t, e.Remove(ctx, models.CollectionStudents, "s", "9-old"), common.ErrConflict)
	require.ErrorIs(t, e.Remove(ctx, models.CollectionStudents, "missing", "1-a"), common.ErrNotFound)

	require.NoError(t, e.Remove(ctx, models.CollectionStudents, "s", "1-a"))
	_, err := e.Get(ctx, models.CollectionStudents, "s")
	require.ErrorIs(t, err, common.ErrNotFound)
}

func testReplaceCollection(t *testing.T, e store.Engine) {
	ctx := context.Background()
	require.NoError(t, e.Insert(ctx, rec(models.CollectionStudents, "old", "1-a", `{}`)))
	require.NoError(t, e.Insert(ctx, rec(models.CollectionCandidates, "keep", "1-a", `{}`)))

	err := e.ReplaceCollection(ctx, models.CollectionStudents, []store.Record{
		rec(models.CollectionStudents, "n1", "3-a", `{"n":1}`),
		rec(models.CollectionStudents, "n2", "1-b", `{"n":2}`),
	})
	require.NoError(t, err)

	recs, err := e.List(ctx, models.CollectionStudents)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "n1", recs[0].ID)
	assert.Equal(t, "3-a", recs[0].Rev)

	_, err = e.Get(ctx, models.CollectionCandidates, "keep")
	assert.NoError(t, err)

	require.NoError(t, e.ReplaceCollection(ctx, models.CollectionStudents, nil))
	recs, err = e.List(ctx, models.CollectionStudents)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

// testConcurrentReplace races writers on the same revision: exactly one wins.
func testConcurrentReplace(t *testing.T, e store.Engine) {
	ctx := context.Background()
	require.NoError(t, e.Insert(ctx, rec(models.CollectionStudents, "s", "1-a", `{}`)))

	const writers = 8
	var (
		wg        sync.WaitGroup
		wins      atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := e.Replace(ctx, rec(models.CollectionStudents, "s", fmt.Sprintf("2-%d", i), `{}`), "1-a")
			switch {
			case err == nil:
				wins.Add(1)
			case assert.ErrorIs(t, err, common.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(writers-1), conflicts.Load())
}
