package storetest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
	"github.com/dmitrijs2005/ballotkeeper/internal/models"
	"github.com/dmitrijs2005/ballotkeeper/internal/store"
)

// RunDocumentStoreTests runs the DocumentStore behaviour suite on top of
// the engines built by factory.
func RunDocumentStoreTests(t *testing.T, name string, factory EngineFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("CreateGet", func(t *testing.T) { testCreateGet(t, newStore(t, factory)) })
		t.Run("CreateRejectsInvalid", func(t *testing.T) { testCreateRejectsInvalid(t, newStore(t, factory)) })
		t.Run("CreateDuplicateID", func(t *testing.T) { testCreateDuplicateID(t, newStore(t, factory)) })
		t.Run("CreateRawKeepsUnknownFields", func(t *testing.T) { testCreateRawKeepsUnknown(t, newStore(t, factory)) })
		t.Run("UpdateRevisionGuard", func(t *testing.T) { testUpdateRevisionGuard(t, newStore(t, factory)) })
		t.Run("UpdateMergePatch", func(t *testing.T) { testUpdateMergePatch(t, newStore(t, factory)) })
		t.Run("DeleteRevisionGuard", func(t *testing.T) { testDeleteRevisionGuard(t, newStore(t, factory)) })
		t.Run("VotesAreImmutable", func(t *testing.T) { testVotesImmutable(t, newStore(t, factory)) })
		t.Run("Find", func(t *testing.T) { testFind(t, newStore(t, factory)) })
		t.Run("BulkCreatePartialFailure", func(t *testing.T) { testBulkPartialFailure(t, newStore(t, factory)) })
		t.Run("ExportImportRoundTrip", func(t *testing.T) { testExportImport(t, factory) })
		t.Run("ImportRejectsMalformedSnapshot", func(t *testing.T) { testImportMalformed(t, newStore(t, factory)) })
	})
}

// fixedClock advances one millisecond per call so generated ids differ.
func fixedClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Millisecond)
		return now
	}
}

func newStore(t *testing.T, factory EngineFactory) *store.DocumentStore {
	t.Helper()
	ds := store.New(factory(t), store.WithClock(fixedClock()))
	t.Cleanup(func() { _ = ds.Close() })
	return ds
}

func student(given, family, external string) *models.Student {
	return &models.Student{GivenNames: given, FamilyNames: family, ExternalID: external, Course: "4A"}
}

func testCreateGet(t *testing.T, ds *store.DocumentStore) {
	ctx := context.Background()
	id, err := ds.Create(ctx, models.CollectionStudents, student("Ana", "Rojas", "12345"))
	require.NoError(t, err)
	assert.Contains(t, id.ID, "student_12345_")
	assert.Equal(t, 1, store.RevisionGeneration(id.Rev))

	doc, err := ds.Get(ctx, models.CollectionStudents, id.ID)
	require.NoError(t, err)
	s, ok := doc.(*models.Student)
	require.True(t, ok)
	assert.Equal(t, "Ana", s.GivenNames)
	assert.Equal(t, models.StatusPending, s.VotingStatus)
	assert.Equal(t, id.Rev, s.Rev)
	assert.Equal(t, models.TypeStudent, s.Type)
	assert.False(t, s.CreatedAt.IsZero())

	_, err = ds.Get(ctx, models.CollectionStudents, "student_missing")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = ds.Get(ctx, models.Collection("ballots"), id.ID)
	assert.ErrorIs(t, err, common.ErrValidation)
}

func testCreateRejectsInvalid(t *testing.T, ds *store.DocumentStore) {
	ctx := context.Background()
	invalid := &models.Student{GivenNames: "Ana"}
	_, err := ds.Create(ctx, models.CollectionStudents, invalid)
	require.ErrorIs(t, err, common.ErrValidation)
	assert.Empty(t, invalid.ID, "failed create leaves the envelope untouched")
	assert.Empty(t, invalid.Rev)
	assert.True(t, invalid.CreatedAt.IsZero())

	_, err = ds.Create(ctx, models.CollectionCandidates, student("Ana", "Rojas", ""))
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = ds.CreateRaw(ctx, models.CollectionStudents, []byte(`{"type":"vote","givenNames":"A","familyNames":"B"}`))
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = ds.CreateRaw(ctx, models.CollectionStudents, []byte(`{not json`))
	require.ErrorIs(t, err, common.ErrValidation)

	res, err := ds.Find(ctx, models.CollectionStudents, store.Query{})
	require.NoError(t, err)
	assert.Zero(t, res.Total)
}

func testCreateDuplicateID(t *testing.T, ds *store.DocumentStore) {
	ctx := context.Background()
	cfg := &models.ElectionConfig{Year: 2024, Title: "Student council"}
	id, err := ds.Create(ctx, models.CollectionConfig, cfg)
	require.NoError(t, err)
	assert.Equal(t, "config_2024", id.ID)

	again := &models.ElectionConfig{Year: 2024, Title: "Again"}
	_, err = ds.Create(ctx, models.CollectionConfig, again)
	require.ErrorIs(t, err, common.ErrAlreadyExists)
	assert.Empty(t, again.ID)
	assert.Empty(t, again.Rev)
}

func testCreateRawKeepsUnknown(t *testing.T, ds *store.DocumentStore) {
	ctx := context.Background()
	id, err := ds.CreateRaw(ctx, models.CollectionStudents,
		[]byte(`{"givenNames":"Ana","familyNames":"Rojas","homeroom":{"teacher":"Vera"}}`))
	require.NoError(t, err)

	_, err = ds.Update(ctx, models.CollectionStudents, id.ID, id.Rev, store.Patch{"course": "4B"})
	require.NoError(t, err)

	snap, err := ds.ExportAll(ctx)
	require.NoError(t, err)
	require.Len(t, snap[models.CollectionStudents], 1)

	var body map[string]any
	require.NoError(t, json.Unmarshal(snap[models.CollectionStudents][0], &body))
	assert.Equal(t, map[string]any{"teacher": "Vera"}, body["homeroom"])
	assert.Equal(t, "4B", body["course"])
}

func testUpdateRevisionGuard(t *testing.T, ds *store.DocumentStore) {
	ctx := context.Background()
	first, err := ds.Create(ctx, models.CollectionStudents, student("Ana", "Rojas", ""))
	require.NoError(t, err)

	second, err := ds.Update(ctx, models.CollectionStudents, first.ID, first.Rev, store.Patch{"course": "4B"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Rev, second.Rev)
	assert.Equal(t, 2, store.RevisionGeneration(second.Rev))

	// the stale revision must be rejected and leave the document alone
	_, err = ds.Update(ctx, models.CollectionStudents, first.ID, first.Rev, store.Patch{"course": "5C"})
	require.ErrorIs(t, err, common.ErrConflict)

	doc, err := ds.Get(ctx, models.CollectionStudents, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "4B", doc.(*models.Student).Course)
	assert.Equal(t, second.Rev, doc.GetMeta().Rev)

	_, err = ds.Update(ctx, models.CollectionStudents, "student_missing", first.Rev, store.Patch{"course": "1A"})
	require.ErrorIs(t, err, common.ErrNotFound)

	_, err = ds.Update(ctx, models.CollectionStudents, first.ID, "", store.Patch{"course": "1A"})
	require.ErrorIs(t, err, common.ErrValidation)
}

func testUpdateMergePatch(t *testing.T, ds *store.DocumentStore) {
	ctx := context.Background()
	id, err := ds.Create(ctx, models.CollectionStudents, student("Ana", "Rojas", "12345"))
	require.NoError(t, err)

	_, err = ds.Update(ctx, models.CollectionStudents, id.ID, id.Rev, store.Patch{"id": "other"})
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = ds.Update(ctx, models.CollectionStudents, id.ID, id.Rev, store.Patch{"givenNames": nil})
	require.ErrorIs(t, err, common.ErrValidation, "removing a required field must fail validation")

	s := student("Ana", "Rojas", "12345")
	s.MarkVoted(time.Date(2024, 9, 2, 10, 0, 0, 0, time.UTC))
	next, err := ds.Update(ctx, models.CollectionStudents, id.ID, id.Rev, store.Patch(s.StatusPatch()))
	require.NoError(t, err)

	doc, err := ds.Get(ctx, models.CollectionStudents, id.ID)
	require.NoError(t, err)
	got := doc.(*models.Student)
	assert.Equal(t, models.StatusVoted, got.VotingStatus)
	require.NotNil(t, got.VotedAt)
	assert.Nil(t, got.AbsentAt)
	assert.Equal(t, "12345", got.ExternalID)
	assert.Equal(t, next.Rev, got.Rev)
	assert.True(t, got.UpdatedAt.After(got.CreatedAt))
}

func testDeleteRevisionGuard(t *testing.T, ds *store.DocumentStore) {
	ctx := context.Background()
	id, err := ds.Create(ctx, models.CollectionCandidates, &models.Candidate{Name: "Lista Azul"})
	require.NoError(t, err)

	require.ErrorIs(t, ds.Delete(ctx, models.CollectionCandidates, id.ID, "1-stale"), common.ErrConflict)
	require.NoError(t, ds.Delete(ctx, models.CollectionCandidates, id.ID, id.Rev))
	require.ErrorIs(t, ds.Delete(ctx, models.CollectionCandidates, id.ID, id.Rev), common.ErrNotFound)
}

func testVotesImmutable(t *testing.T, ds *store.DocumentStore) {
	ctx := context.Background()
	id, err := ds.Create(ctx, models.CollectionVotes, &models.Vote{StudentIdentifier: "s1", SelectionID: models.BlankSelection})
	require.NoError(t, err)

	_, err = ds.Update(ctx, models.CollectionVotes, id.ID, id.Rev, store.Patch{"selectionId": "x"})
	require.ErrorIs(t, err, common.ErrImmutable)
	require.ErrorIs(t, ds.Delete(ctx, models.CollectionVotes, id.ID, id.Rev), common.ErrImmutable)
}

func testFind(t *testing.T, ds *store.DocumentStore) {
	ctx := context.Background()
	for _, s := range []*models.Student{
		{GivenNames: "Ana", FamilyNames: "Rojas", Course: "4A", Year: 2024},
		{GivenNames: "Beto", FamilyNames: "Soto", Course: "4B", Year: 2024},
		{GivenNames: "Carla", FamilyNames: "Diaz", Course: "4A", Year: 2023},
	} {
		_, err := ds.Create(ctx, models.CollectionStudents, s)
		require.NoError(t, err)
	}

	res, err := ds.Find(ctx, models.CollectionStudents, store.Query{Selector: store.Selector{"course": " 4a "}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)

	res, err = ds.Find(ctx, models.CollectionStudents, store.Query{
		Selector: store.Selector{"course": store.Or{"4A", "4B"}, "year": 2024},
		Sort:     []string{"-familyNames"},
	})
	require.NoError(t, err)
	require.Len(t, res.Documents, 2)
	assert.Equal(t, "Soto", res.Documents[0].(*models.Student).FamilyNames)

	res, err = ds.Find(ctx, models.CollectionStudents, store.Query{Sort: []string{"givenNames"}, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Total)
	require.Len(t, res.Documents, 1)
	assert.Equal(t, "Ana", res.Documents[0].(*models.Student).GivenNames)

	res, err = ds.Find(ctx, models.CollectionStudents, store.Query{Selector: store.Selector{"course": "9Z"}})
	require.NoError(t, err)
	assert.Empty(t, res.Documents)

	students, total, err := store.FindAs[models.Student](ctx, ds, models.CollectionStudents,
		store.Query{Selector: store.Selector{"votingStatus": models.StatusPending}})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, students, 3)
}

func testBulkPartialFailure(t *testing.T, ds *store.DocumentStore) {
	ctx := context.Background()
	res := ds.BulkCreate(ctx, models.CollectionStudents, []json.RawMessage{
		json.RawMessage(`{"givenNames":"Ana","familyNames":"Rojas","externalId":"1"}`),
		json.RawMessage(`{"givenNames":"Beto"}`),
		json.RawMessage(`{"givenNames":"Carla","familyNames":"Diaz","externalId":"2"}`),
	})

	assert.Equal(t, 2, res.SuccessCount)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.ErrorIs(t, res.Failures[0].Err, common.ErrValidation)
	assert.NotEmpty(t, res.Created[0].ID)
	assert.Empty(t, res.Created[1].ID)

	found, err := ds.Find(ctx, models.CollectionStudents, store.Query{})
	require.NoError(t, err)
	assert.Equal(t, 2, found.Total)
}

func testExportImport(t *testing.T, factory EngineFactory) {
	ctx := context.Background()
	src := newStore(t, factory)

	sid, err := src.Create(ctx, models.CollectionStudents, student("Ana", "Rojas", "12345"))
	require.NoError(t, err)
	_, err = src.Create(ctx, models.CollectionVotes, &models.Vote{StudentIdentifier: sid.ID, SelectionID: "cand_1"})
	require.NoError(t, err)
	_, err = src.Create(ctx, models.CollectionConfig, &models.ElectionConfig{Year: 2024, Title: "Council"})
	require.NoError(t, err)

	snap, err := src.ExportAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.Total())

	dst := newStore(t, factory)
	_, err = dst.Create(ctx, models.CollectionStudents, student("Old", "Entry", ""))
	require.NoError(t, err)

	report, err := dst.ImportAll(ctx, snap)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Imported[models.CollectionStudents])
	assert.Empty(t, report.Failed)

	doc, err := dst.Get(ctx, models.CollectionStudents, sid.ID)
	require.NoError(t, err)
	assert.Equal(t, sid.Rev, doc.GetMeta().Rev, "revisions survive a round trip")

	again, err := dst.ExportAll(ctx)
	require.NoError(t, err)
	for _, c := range models.Collections() {
		require.Len(t, again[c], len(snap[c]), c)
		for i := range snap[c] {
			assert.JSONEq(t, string(snap[c][i]), string(again[c][i]))
		}
	}
}

func testImportMalformed(t *testing.T, ds *store.DocumentStore) {
	ctx := context.Background()
	id, err := ds.Create(ctx, models.CollectionStudents, student("Ana", "Rojas", ""))
	require.NoError(t, err)

	_, err = ds.ImportAll(ctx, store.Snapshot{
		models.CollectionStudents: {json.RawMessage(`{"id":"s1","givenNames":"A","familyNames":"B"}`)},
		models.CollectionVotes:    {json.RawMessage(`{"id":"v1","studentIdentifier":""}`)},
	})
	require.ErrorIs(t, err, common.ErrValidation)

	_, err = ds.ImportAll(ctx, store.Snapshot{"ballots": {}})
	require.ErrorIs(t, err, common.ErrValidation)

	// nothing was written
	_, err = ds.Get(ctx, models.CollectionStudents, id.ID)
	require.NoError(t, err)
	_, err = ds.Get(ctx, models.CollectionStudents, "s1")
	require.ErrorIs(t, err, common.ErrNotFound)
}
