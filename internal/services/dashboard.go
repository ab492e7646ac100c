package services

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/ballotkeeper/internal/cache"
	"github.com/dmitrijs2005/ballotkeeper/internal/common"
	"github.com/dmitrijs2005/ballotkeeper/internal/logging"
	"github.com/dmitrijs2005/ballotkeeper/internal/models"
	"github.com/dmitrijs2005/ballotkeeper/internal/reconcile"
	"github.com/dmitrijs2005/ballotkeeper/internal/store"
)

const dashboardKey = statsPrefix + "dashboard"

// SelectionCount is the tally of one ballot option.
type SelectionCount struct {
	SelectionID string `json:"selectionId"`
	Label       string `json:"label"`
	Votes       int    `json:"votes"`
}

// Dashboard is the live election overview.
type Dashboard struct {
	Config       *models.ElectionConfig `json:"config,omitempty"`
	Summary      reconcile.Summary      `json:"summary"`
	Tally        []SelectionCount       `json:"tally"`
	OpenSessions []*models.Session      `json:"openSessions"`
	Warnings     []reconcile.Warning    `json:"warnings"`
}

// DashboardService computes the election overview from the derived
// statuses, never from the stored status summary.
type DashboardService interface {
	Status(ctx context.Context) (*Dashboard, error)
}

type dashboardService struct {
	reader   *CachedReader
	registry RegistryService
	log      logging.Logger
}

func NewDashboardService(reader *CachedReader, registry RegistryService, log logging.Logger) DashboardService {
	return &dashboardService{reader: reader, registry: registry, log: log}
}

func (d *dashboardService) Status(ctx context.Context) (*Dashboard, error) {
	qc := d.reader.Cache()
	if v, ok := qc.Get(dashboardKey); ok {
		if dash, ok := v.(*Dashboard); ok {
			return dash, nil
		}
	}

	var (
		students   []*models.Student
		votes      []*models.Vote
		candidates []*models.Candidate
		sessions   []*models.Session
		cfg        *models.ElectionConfig
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		students, err = findAll[models.Student](gctx, d.reader, models.CollectionStudents, store.Query{}, cache.ClassRecords)
		return err
	})
	g.Go(func() (err error) {
		votes, err = findAll[models.Vote](gctx, d.reader, models.CollectionVotes, store.Query{}, cache.ClassVotes)
		return err
	})
	g.Go(func() (err error) {
		candidates, err = d.registry.ListCandidates(gctx)
		return err
	})
	g.Go(func() (err error) {
		sessions, err = d.registry.ListSessions(gctx)
		return err
	})
	g.Go(func() error {
		c, err := d.registry.CurrentConfig(gctx)
		if errors.Is(err, common.ErrNotFound) {
			return nil
		}
		cfg = c
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := reconcile.Reconcile(students, votes)
	dash := &Dashboard{
		Config:       cfg,
		Summary:      reconcile.Summarize(students, report),
		Tally:        tally(votes, candidates),
		OpenSessions: []*models.Session{},
		Warnings:     report.Warnings,
	}
	for _, s := range sessions {
		if s.Open() {
			dash.OpenSessions = append(dash.OpenSessions, s)
		}
	}

	qc.Set(dashboardKey, dash, cache.ClassStats)
	d.log.Debug(ctx, "dashboard computed", "students", len(students), "votes", len(votes))
	return dash, nil
}

// tally lists every candidate, candidates without votes included, plus
// blank and unknown selections that received votes.
func tally(votes []*models.Vote, candidates []*models.Candidate) []SelectionCount {
	counts := reconcile.Tally(votes)
	out := make([]SelectionCount, 0, len(candidates)+1)
	for _, c := range candidates {
		out = append(out, SelectionCount{SelectionID: c.ID, Label: c.Name, Votes: counts[c.ID]})
		delete(counts, c.ID)
	}
	for id, n := range counts {
		label := id
		if id == models.BlankSelection {
			label = "Blank"
		}
		out = append(out, SelectionCount{SelectionID: id, Label: label, Votes: n})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Votes != out[j].Votes {
			return out[i].Votes > out[j].Votes
		}
		return out[i].SelectionID < out[j].SelectionID
	})
	return out
}
