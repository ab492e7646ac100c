package services

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dmitrijs2005/ballotkeeper/internal/cache"
	"github.com/dmitrijs2005/ballotkeeper/internal/common"
	"github.com/dmitrijs2005/ballotkeeper/internal/logging"
	"github.com/dmitrijs2005/ballotkeeper/internal/models"
	"github.com/dmitrijs2005/ballotkeeper/internal/store"
)

// RegistryService maintains the reference data of an election: the voter
// roll, candidates, polling sessions and the election settings.
type RegistryService interface {
	AddStudent(ctx context.Context, s *models.Student) (store.Identity, error)
	GetStudent(ctx context.Context, id string) (*models.Student, error)
	ListStudents(ctx context.Context, q store.Query) ([]*models.Student, error)
	ImportStudents(ctx context.Context, raws []json.RawMessage) *store.BulkResult

	AddCandidate(ctx context.Context, c *models.Candidate) (store.Identity, error)
	ListCandidates(ctx context.Context) ([]*models.Candidate, error)

	OpenSession(ctx context.Context, name string) (*models.Session, error)
	CloseSession(ctx context.Context, id string) (*models.Session, error)
	ListSessions(ctx context.Context) ([]*models.Session, error)

	SaveConfig(ctx context.Context, cfg *models.ElectionConfig) (store.Identity, error)
	CurrentConfig(ctx context.Context) (*models.ElectionConfig, error)
}

type registryService struct {
	store  *store.DocumentStore
	reader *CachedReader
	log    logging.Logger
	now    func() time.Time
}

func NewRegistryService(ds *store.DocumentStore, reader *CachedReader, log logging.Logger) RegistryService {
	return &registryService{store: ds, reader: reader, log: log, now: time.Now}
}

func (r *registryService) AddStudent(ctx context.Context, s *models.Student) (store.Identity, error) {
	id, err := r.store.Create(ctx, models.CollectionStudents, s)
	if err != nil {
		return store.Identity{}, err
	}
	r.reader.Invalidate(ctx, models.CollectionStudents)
	return id, nil
}

func (r *registryService) GetStudent(ctx context.Context, id string) (*models.Student, error) {
	doc, err := r.reader.Get(ctx, models.CollectionStudents, id)
	if err != nil {
		return nil, err
	}
	return doc.(*models.Student), nil
}

func (r *registryService) ListStudents(ctx context.Context, q store.Query) ([]*models.Student, error) {
	if len(q.Sort) == 0 {
		q.Sort = []string{"familyNames", "givenNames"}
	}
	return findAll[models.Student](ctx, r.reader, models.CollectionStudents, q, cache.ClassSearch)
}

func (r *registryService) ImportStudents(ctx context.Context, raws []json.RawMessage) *store.BulkResult {
	res := r.store.BulkCreate(ctx, models.CollectionStudents, raws)
	if res.SuccessCount > 0 {
		r.reader.Invalidate(ctx, models.CollectionStudents)
	}
	return res
}

func (r *registryService) AddCandidate(ctx context.Context, c *models.Candidate) (store.Identity, error) {
	id, err := r.store.Create(ctx, models.CollectionCandidates, c)
	if err != nil {
		return store.Identity{}, err
	}
	r.reader.Invalidate(ctx, models.CollectionCandidates)
	return id, nil
}

func (r *registryService) ListCandidates(ctx context.Context) ([]*models.Candidate, error) {
	return findAll[models.Candidate](ctx, r.reader, models.CollectionCandidates,
		store.Query{Sort: []string{"list", "name"}}, cache.ClassReference)
}

func (r *registryService) OpenSession(ctx context.Context, name string) (*models.Session, error) {
	s := &models.Session{Name: name, OpenedAt: r.now().UTC()}
	if _, err := r.store.Create(ctx, models.CollectionSessions, s); err != nil {
		return nil, err
	}
	r.reader.Invalidate(ctx, models.CollectionSessions)
	return s, nil
}

func (r *registryService) CloseSession(ctx context.Context, id string) (*models.Session, error) {
	doc, err := r.store.Get(ctx, models.CollectionSessions, id)
	if err != nil {
		return nil, err
	}
	s := doc.(*models.Session)
	if !s.Open() {
		return nil, common.NewDocumentError("close", string(models.CollectionSessions), id,
			common.Validationf("session is already closed"))
	}

	closedAt := r.now().UTC()
	ident, err := r.store.Update(ctx, models.CollectionSessions, id, s.Rev,
		store.Patch{"closedAt": closedAt.Format(time.RFC3339Nano)})
	if err != nil {
		return nil, err
	}
	r.reader.Invalidate(ctx, models.CollectionSessions)

	s.ClosedAt = &closedAt
	s.Rev = ident.Rev
	return s, nil
}

func (r *registryService) ListSessions(ctx context.Context) ([]*models.Session, error) {
	return findAll[models.Session](ctx, r.reader, models.CollectionSessions,
		store.Query{Sort: []string{"-openedAt"}}, cache.ClassReference)
}

// SaveConfig creates the settings document of cfg.Year or replaces the
// editable fields of the existing one.
func (r *registryService) SaveConfig(ctx context.Context, cfg *models.ElectionConfig) (store.Identity, error) {
	defer r.reader.Invalidate(ctx, models.CollectionConfig)

	existing, err := r.store.Get(ctx, models.CollectionConfig, models.ConfigID(cfg.Year))
	switch {
	case errors.Is(err, common.ErrNotFound):
		return r.store.Create(ctx, models.CollectionConfig, cfg)
	case err != nil:
		return store.Identity{}, err
	}
	return r.store.Update(ctx, models.CollectionConfig, cfg.FixedID(), existing.GetMeta().Rev, store.Patch{
		"title":          cfg.Title,
		"institution":    cfg.Institution,
		"allowBlankVote": cfg.AllowBlankVote,
	})
}

// CurrentConfig returns the settings of the latest election year, or
// ErrNotFound when none was saved.
func (r *registryService) CurrentConfig(ctx context.Context) (*models.ElectionConfig, error) {
	cfgs, err := findAll[models.ElectionConfig](ctx, r.reader, models.CollectionConfig,
		store.Query{Sort: []string{"-year"}, Limit: 1}, cache.ClassReference)
	if err != nil {
		return nil, err
	}
	if len(cfgs) == 0 {
		return nil, common.NewDocumentError("get", string(models.CollectionConfig), "", common.ErrNotFound)
	}
	return cfgs[0], nil
}
