package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
	"github.com/dmitrijs2005/ballotkeeper/internal/logging"
	"github.com/dmitrijs2005/ballotkeeper/internal/models"
)

const maxIDAttempts = 3

// Identity is the (id, revision) pair returned by every write.
type Identity struct {
	ID  string `json:"id"`
	Rev string `json:"rev"`
}

// Result is the outcome of Find. Total counts matches before Limit.
type Result struct {
	Documents []models.Document
	Total     int
}

// DocumentStore implements revisioned CRUD over an Engine.
type DocumentStore struct {
	engine          Engine
	log             logging.Logger
	now             func() time.Time
	bulkConcurrency int
}

type Option func(*DocumentStore)

func WithLogger(l logging.Logger) Option {
	return func(s *DocumentStore) { s.log = l }
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *DocumentStore) { s.now = now }
}

// WithBulkConcurrency bounds the goroutines used by BulkCreate.
func WithBulkConcurrency(n int) Option {
	return func(s *DocumentStore) {
		if n > 0 {
			s.bulkConcurrency = n
		}
	}
}

func New(engine Engine, opts ...Option) *DocumentStore {
	s := &DocumentStore{
		engine:          engine,
		log:             logging.Nop(),
		now:             time.Now,
		bulkConcurrency: 4,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Close closes the underlying engine.
func (s *DocumentStore) Close() error {
	return s.engine.Close()
}

// Create stores doc in collection c. An empty id is generated, timestamps
// and the first revision are stamped onto doc before it is validated. On
// failure doc keeps the envelope it came in with.
func (s *DocumentStore) Create(ctx context.Context, c models.Collection, doc models.Document) (Identity, error) {
	return s.create(ctx, c, doc, nil)
}

// CreateRaw decodes a JSON document for collection c and creates it.
// Fields unknown to the typed model are preserved.
func (s *DocumentStore) CreateRaw(ctx context.Context, c models.Collection, raw []byte) (Identity, error) {
	doc, err := models.Decode(c, raw)
	if err != nil {
		return Identity{}, common.NewDocumentError("create", string(c), "", err)
	}
	extra, err := decodeMap(raw)
	if err != nil {
		return Identity{}, common.NewDocumentError("create", string(c), "", common.Validationf("%v", err))
	}
	return s.create(ctx, c, doc, extra)
}

func (s *DocumentStore) create(ctx context.Context, c models.Collection, doc models.Document, extra map[string]any) (_ Identity, err error) {
	const op = "create"

	want, err := models.TypeOf(c)
	if err != nil {
		return Identity{}, common.NewDocumentError(op, string(c), "", err)
	}
	if doc.DocType() != want {
		return Identity{}, common.NewDocumentError(op, string(c), "",
			common.Validationf("%s document cannot be stored in %s", doc.DocType(), c))
	}

	now := s.now().UTC()
	if d, ok := doc.(models.Defaulter); ok {
		d.ApplyDefaults(now)
	}

	m := doc.GetMeta()
	stamped := *m
	defer func() {
		if err != nil {
			*m = stamped
		}
	}()
	generated := false
	if m.ID == "" {
		if f, ok := doc.(models.FixedIDer); ok {
			m.ID = f.FixedID()
		} else {
			m.ID = GenerateID(doc, now)
			generated = true
		}
	}
	m.Type = want
	m.Rev = NewRevision("")
	m.CreatedAt = now
	m.UpdatedAt = now

	if err := doc.Validate(); err != nil {
		return Identity{}, common.NewDocumentError(op, string(c), m.ID, err)
	}

	baseID := m.ID
	for attempt := 1; ; attempt++ {
		rec, err := s.record(c, doc, extra)
		if err != nil {
			return Identity{}, common.NewDocumentError(op, string(c), m.ID, err)
		}

		err = s.engine.Insert(ctx, rec)
		if errors.Is(err, common.ErrAlreadyExists) && generated && attempt < maxIDAttempts {
			m.ID = disambiguate(baseID)
			continue
		}
		if err != nil {
			s.logFailure(ctx, op, c, m.ID, err)
			return Identity{}, common.NewDocumentError(op, string(c), m.ID, err)
		}

		s.log.Debug(ctx, "document created", "collection", c, "id", m.ID, "rev", m.Rev)
		return Identity{ID: m.ID, Rev: m.Rev}, nil
	}
}

// Get returns a single document.
func (s *DocumentStore) Get(ctx context.Context, c models.Collection, id string) (models.Document, error) {
	const op = "get"
	if _, err := models.TypeOf(c); err != nil {
		return nil, common.NewDocumentError(op, string(c), id, err)
	}

	rec, err := s.engine.Get(ctx, c, id)
	if err != nil {
		s.logFailure(ctx, op, c, id, err)
		return nil, common.NewDocumentError(op, string(c), id, err)
	}

	doc, err := models.Decode(c, rec.Body)
	if err != nil {
		return nil, common.NewDocumentError(op, string(c), id, common.Storagef(err, "corrupted document"))
	}
	return doc, nil
}

// Find returns the documents matching q. No match is an empty result, not
// an error.
func (s *DocumentStore) Find(ctx context.Context, c models.Collection, q Query) (*Result, error) {
	const op = "find"
	if _, err := models.TypeOf(c); err != nil {
		return nil, common.NewDocumentError(op, string(c), "", err)
	}
	if err := q.Validate(); err != nil {
		return nil, common.NewDocumentError(op, string(c), "", err)
	}

	recs, err := s.engine.List(ctx, c)
	if err != nil {
		s.logFailure(ctx, op, c, "", err)
		return nil, common.NewDocumentError(op, string(c), "", err)
	}

	items := make([]matched, 0, len(recs))
	for _, rec := range recs {
		var body map[string]any
		if err := json.Unmarshal(rec.Body, &body); err != nil {
			return nil, common.NewDocumentError(op, string(c), rec.ID, common.Storagef(err, "corrupted document"))
		}
		if q.Selector.Match(body) {
			items = append(items, matched{id: rec.ID, body: body, rec: rec})
		}
	}

	sortMatches(items, q.Sort)
	total := len(items)
	if q.Limit > 0 && len(items) > q.Limit {
		items = items[:q.Limit]
	}

	docs := make([]models.Document, 0, len(items))
	for _, it := range items {
		doc, err := models.Decode(c, it.rec.Body)
		if err != nil {
			return nil, common.NewDocumentError(op, string(c), it.id, common.Storagef(err, "corrupted document"))
		}
		docs = append(docs, doc)
	}

	s.log.Debug(ctx, "find", "collection", c, "matched", total, "returned", len(docs))
	return &Result{Documents: docs, Total: total}, nil
}

// FindAs runs Find and converts the documents to their concrete type.
func FindAs[T any, PT interface {
	*T
	models.Document
}](ctx context.Context, s *DocumentStore, c models.Collection, q Query) ([]*T, int, error) {
	res, err := s.Find(ctx, c, q)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*T, 0, len(res.Documents))
	for _, d := range res.Documents {
		v, ok := d.(PT)
		if !ok {
			return nil, 0, common.NewDocumentError("find", string(c), d.GetMeta().ID,
				common.Validationf("unexpected document type %T", d))
		}
		out = append(out, (*T)(v))
	}
	return out, res.Total, nil
}

// Update applies patch to document id when expectedRev is its current
// revision. The merged document must still validate.
func (s *DocumentStore) Update(ctx context.Context, c models.Collection, id, expectedRev string, patch Patch) (Identity, error) {
	const op = "update"
	if err := s.checkMutable(c); err != nil {
		return Identity{}, common.NewDocumentError(op, string(c), id, err)
	}
	if expectedRev == "" {
		return Identity{}, common.NewDocumentError(op, string(c), id, common.Validationf("revision is required"))
	}
	for k := range patch {
		if _, ok := envelopeFields[k]; ok {
			return Identity{}, common.NewDocumentError(op, string(c), id, common.Validationf("field %q cannot be patched", k))
		}
	}

	rec, err := s.engine.Get(ctx, c, id)
	if err != nil {
		s.logFailure(ctx, op, c, id, err)
		return Identity{}, common.NewDocumentError(op, string(c), id, err)
	}
	if rec.Rev != expectedRev {
		return Identity{}, common.NewDocumentError(op, string(c), id, common.ErrConflict)
	}

	body, err := decodeMap(rec.Body)
	if err != nil {
		return Identity{}, common.NewDocumentError(op, string(c), id, common.Storagef(err, "corrupted document"))
	}
	mergePatch(body, patch)

	merged, err := json.Marshal(body)
	if err != nil {
		return Identity{}, common.NewDocumentError(op, string(c), id, common.Validationf("encode patch: %v", err))
	}
	doc, err := models.Decode(c, merged)
	if err != nil {
		return Identity{}, common.NewDocumentError(op, string(c), id, err)
	}

	m := doc.GetMeta()
	m.Rev = NewRevision(rec.Rev)
	m.UpdatedAt = s.now().UTC()
	if err := doc.Validate(); err != nil {
		return Identity{}, common.NewDocumentError(op, string(c), id, err)
	}

	next, err := s.record(c, doc, body)
	if err != nil {
		return Identity{}, common.NewDocumentError(op, string(c), id, err)
	}
	if err := s.engine.Replace(ctx, next, expectedRev); err != nil {
		s.logFailure(ctx, op, c, id, err)
		return Identity{}, common.NewDocumentError(op, string(c), id, err)
	}

	s.log.Debug(ctx, "document updated", "collection", c, "id", id, "rev", m.Rev)
	return Identity{ID: id, Rev: m.Rev}, nil
}

// Delete removes document id when expectedRev is its current revision.
func (s *DocumentStore) Delete(ctx context.Context, c models.Collection, id, expectedRev string) error {
	const op = "delete"
	if err := s.checkMutable(c); err != nil {
		return common.NewDocumentError(op, string(c), id, err)
	}
	if expectedRev == "" {
		return common.NewDocumentError(op, string(c), id, common.Validationf("revision is required"))
	}

	if err := s.engine.Remove(ctx, c, id, expectedRev); err != nil {
		s.logFailure(ctx, op, c, id, err)
		return common.NewDocumentError(op, string(c), id, err)
	}

	s.log.Debug(ctx, "document deleted", "collection", c, "id", id)
	return nil
}

func (s *DocumentStore) checkMutable(c models.Collection) error {
	if _, err := models.TypeOf(c); err != nil {
		return err
	}
	if c == models.CollectionVotes {
		return common.ErrImmutable
	}
	return nil
}

func (s *DocumentStore) record(c models.Collection, doc models.Document, extra map[string]any) (Record, error) {
	body, err := encodeBody(doc, extra)
	if err != nil {
		return Record{}, common.Storagef(err, "serialize document")
	}
	m := doc.GetMeta()
	return Record{
		Collection: c,
		ID:         m.ID,
		Rev:        m.Rev,
		Type:       m.Type,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
		Body:       body,
	}, nil
}

func (s *DocumentStore) logFailure(ctx context.Context, op string, c models.Collection, id string, err error) {
	if errors.Is(err, common.ErrStorage) {
		s.log.Error(ctx, "storage failure", "op", op, "collection", c, "id", id, "error", err)
	}
}
