// Package store provides the document store: revisioned CRUD and queries
// over typed collections, independent of the storage engine.
//
// # Overview
//
// DocumentStore owns id assignment, timestamps, revision tokens, typed
// validation (see internal/models) and query evaluation. Persistence is
// delegated to an Engine that stores raw JSON records keyed by
// (collection, id) and offers compare-and-swap on the revision.
//
// Engines:
//
//   - internal/store/sqlstore: database/sql (SQLite or PostgreSQL)
//   - internal/store/memstore: in-memory, xsync maps
//
// # Revisions
//
// Every mutation produces a new opaque revision. Update and Delete must
// present the current revision; a stale one yields common.ErrConflict and
// leaves the stored document untouched.
//
// # Errors
//
// Failures are returned as *common.DocumentError wrapping one of
// common.ErrNotFound, ErrConflict, ErrStorage, ErrValidation,
// ErrAlreadyExists or ErrImmutable.
//
// Typical usage
//
//	ds := store.New(engine, store.WithLogger(log))
//	id, _ := ds.Create(ctx, models.CollectionStudents, &models.Student{...})
//	res, _ := ds.Find(ctx, models.CollectionStudents, store.Query{Selector: store.Selector{"course": "4A"}})
//	id, _ = ds.Update(ctx, models.CollectionStudents, id.ID, id.Rev, store.Patch{"course": "4B"})
package store
