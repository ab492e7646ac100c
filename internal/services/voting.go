package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
	"github.com/dmitrijs2005/ballotkeeper/internal/logging"
	"github.com/dmitrijs2005/ballotkeeper/internal/models"
	"github.com/dmitrijs2005/ballotkeeper/internal/reconcile"
	"github.com/dmitrijs2005/ballotkeeper/internal/store"
)

// CastVoteRequest describes a ballot to record.
type CastVoteRequest struct {
	StudentID   string
	SelectionID string
	// SessionID is optional; when set the session must be open.
	SessionID string
}

// SyncResult reports a write-back of derived statuses.
type SyncResult struct {
	Report    *reconcile.Report
	Updated   int
	Conflicts int
	Failed    int
}

// VotingService records votes and absences and keeps the student status
// summary in line with the vote log.
//
// Contract:
//   - CastVote: append a vote under the student's canonical identifier.
//   - MarkAbsent: mark a student absent; refused once the student voted.
//   - Sync: reconcile every student and write back changed statuses.
type VotingService interface {
	CastVote(ctx context.Context, req CastVoteRequest) (*models.Vote, error)
	MarkAbsent(ctx context.Context, studentID string) (*models.Student, error)
	Sync(ctx context.Context) (*SyncResult, error)
}

type votingService struct {
	store     *store.DocumentStore
	reader    *CachedReader
	registry  RegistryService
	log       logging.Logger
	now       func() time.Time
	chunkSize int
}

func NewVotingService(ds *store.DocumentStore, reader *CachedReader, registry RegistryService, log logging.Logger, chunkSize int) VotingService {
	return &votingService{
		store:     ds,
		reader:    reader,
		registry:  registry,
		log:       log,
		now:       time.Now,
		chunkSize: chunkSize,
	}
}

// CastVote writes the vote first. The student summary update that follows
// is best effort: a failure is logged and repaired by the next Sync.
func (v *votingService) CastVote(ctx context.Context, req CastVoteRequest) (*models.Vote, error) {
	s, err := v.registry.GetStudent(ctx, req.StudentID)
	if err != nil {
		return nil, err
	}
	identifier := models.CanonicalIdentifier(s)
	if identifier == "" {
		return nil, common.Validationf("student %q has no identifier", req.StudentID)
	}
	if err := v.checkSelection(ctx, req.SelectionID); err != nil {
		return nil, err
	}
	if req.SessionID != "" {
		if err := v.checkSession(ctx, req.SessionID); err != nil {
			return nil, err
		}
	}

	voted, err := v.hasVoted(ctx, s)
	if err != nil {
		return nil, err
	}
	if voted {
		return nil, fmt.Errorf("cast vote for %s: %w", s.ID, common.ErrAlreadyVoted)
	}

	vote := &models.Vote{
		StudentIdentifier: identifier,
		SelectionID:       req.SelectionID,
		SessionID:         req.SessionID,
		CastAt:            v.now().UTC(),
	}
	if _, err := v.store.Create(ctx, models.CollectionVotes, vote); err != nil {
		return nil, err
	}
	v.log.Info(ctx, "vote cast", "student", s.ID, "vote", vote.ID)

	s.MarkVoted(vote.CastAt)
	if _, err := v.store.Update(ctx, models.CollectionStudents, s.ID, s.Rev, s.StatusPatch()); err != nil {
		v.log.Warn(ctx, "student status not updated; run sync", "student", s.ID, "error", err)
	}
	// after the status write, so reads made in between are not kept
	v.reader.Invalidate(ctx, models.CollectionVotes)
	return vote, nil
}

func (v *votingService) checkSelection(ctx context.Context, selectionID string) error {
	if selectionID == "" {
		return common.Validationf("selection is required")
	}
	if selectionID == models.BlankSelection {
		cfg, err := v.registry.CurrentConfig(ctx)
		switch {
		case errors.Is(err, common.ErrNotFound):
			return nil
		case err != nil:
			return err
		case !cfg.AllowBlankVote:
			return common.Validationf("blank votes are not allowed in %d", cfg.Year)
		}
		return nil
	}

	_, err := v.reader.Get(ctx, models.CollectionCandidates, selectionID)
	if errors.Is(err, common.ErrNotFound) {
		return common.Validationf("unknown candidate %q", selectionID)
	}
	return err
}

func (v *votingService) checkSession(ctx context.Context, id string) error {
	doc, err := v.reader.Get(ctx, models.CollectionSessions, id)
	if errors.Is(err, common.ErrNotFound) {
		return common.Validationf("unknown session %q", id)
	}
	if err != nil {
		return err
	}
	if !doc.(*models.Session).Open() {
		return common.Validationf("session %q is closed", id)
	}
	return nil
}

// hasVoted looks the student up in the vote log under every identifier it
// owns, so votes cast before an identifier was added still count.
func (v *votingService) hasVoted(ctx context.Context, s *models.Student) (bool, error) {
	ids := store.Or{}
	for _, f := range models.ResolutionOrder {
		if id := s.Identifier(f); id != "" {
			ids = append(ids, id)
		}
	}
	res, err := v.store.Find(ctx, models.CollectionVotes, store.Query{
		Selector: store.Selector{"studentIdentifier": ids},
		Limit:    1,
	})
	if err != nil {
		return false, err
	}
	return res.Total > 0, nil
}

func (v *votingService) MarkAbsent(ctx context.Context, studentID string) (*models.Student, error) {
	s, err := v.registry.GetStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}

	voted := s.Status() == models.StatusVoted
	if !voted && s.HasIdentifier() {
		if voted, err = v.hasVoted(ctx, s); err != nil {
			return nil, err
		}
	}
	if voted {
		return nil, fmt.Errorf("mark %s absent: %w", s.ID, common.ErrAlreadyVoted)
	}

	s.MarkAbsent(v.now().UTC())
	ident, err := v.store.Update(ctx, models.CollectionStudents, s.ID, s.Rev, s.StatusPatch())
	if err != nil {
		return nil, err
	}
	v.reader.Invalidate(ctx, models.CollectionStudents)
	s.Rev = ident.Rev
	v.log.Info(ctx, "student marked absent", "student", s.ID)
	return s, nil
}

// Sync reconciles the whole roll against the vote log and writes back every
// status that differs. It reads the store directly, never the cache.
func (v *votingService) Sync(ctx context.Context) (*SyncResult, error) {
	students, _, err := store.FindAs[models.Student](ctx, v.store, models.CollectionStudents, store.Query{})
	if err != nil {
		return nil, err
	}
	votes, _, err := store.FindAs[models.Vote](ctx, v.store, models.CollectionVotes, store.Query{})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*models.Student, len(students))
	for _, s := range students {
		byID[s.ID] = s
	}

	out := &SyncResult{}
	report, err := reconcile.ReconcileChunked(ctx, students, votes, v.chunkSize, func(chunk []reconcile.Result) error {
		for _, res := range chunk {
			s, ok := byID[res.StudentID]
			if !ok || !needsWriteBack(s, res) {
				continue
			}
			next := *s
			applyResult(&next, res, v.now().UTC())

			_, err := v.store.Update(ctx, models.CollectionStudents, s.ID, s.Rev, next.StatusPatch())
			switch {
			case err == nil:
				out.Updated++
			case errors.Is(err, common.ErrConflict):
				out.Conflicts++
				v.log.Warn(ctx, "student changed during sync", "student", s.ID)
			default:
				out.Failed++
				v.log.Error(ctx, "sync write-back failed", "student", s.ID, "error", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, w := range report.Warnings {
		v.log.Warn(ctx, "data quality", "kind", w.Kind, "student", w.StudentID, "identifier", w.Identifier, "message", w.Message)
	}
	if out.Updated > 0 {
		v.reader.Invalidate(ctx, models.CollectionStudents)
	}
	out.Report = report
	v.log.Info(ctx, "sync finished", "students", len(students), "updated", out.Updated, "conflicts", out.Conflicts)
	return out, nil
}

func needsWriteBack(s *models.Student, res reconcile.Result) bool {
	if s.Status() != res.Status {
		return true
	}
	if res.Status == models.StatusVoted {
		return s.VotedAt == nil || (res.VotedAt != nil && !s.VotedAt.Equal(*res.VotedAt)) || s.AbsentAt != nil
	}
	return false
}

func applyResult(s *models.Student, res reconcile.Result, now time.Time) {
	switch res.Status {
	case models.StatusVoted:
		at := now
		if res.VotedAt != nil {
			at = *res.VotedAt
		}
		s.MarkVoted(at)
	case models.StatusAbsent:
		at := now
		if s.AbsentAt != nil {
			at = *s.AbsentAt
		}
		s.MarkAbsent(at)
	default:
		s.VotingStatus = models.StatusPending
		s.VotedAt = nil
		s.AbsentAt = nil
	}
}
