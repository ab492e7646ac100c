package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
	"github.com/dmitrijs2005/ballotkeeper/internal/models"
)

// Snapshot holds the raw documents of each collection.
type Snapshot map[models.Collection][]json.RawMessage

// Total returns the number of documents across collections.
func (s Snapshot) Total() int {
	n := 0
	for _, docs := range s {
		n += len(docs)
	}
	return n
}

// Names returns the snapshot's collections sorted by name.
func (s Snapshot) Names() []models.Collection {
	out := make([]models.Collection, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ImportReport lists the outcome of ImportAll per collection.
type ImportReport struct {
	Imported map[models.Collection]int    `json:"imported"`
	Failed   map[models.Collection]string `json:"failed,omitempty"`
}

// ExportAll returns every document of every collection.
func (s *DocumentStore) ExportAll(ctx context.Context) (Snapshot, error) {
	snap := make(Snapshot)
	for _, c := range models.Collections() {
		recs, err := s.engine.List(ctx, c)
		if err != nil {
			return nil, common.NewDocumentError("export", string(c), "", err)
		}
		docs := make([]json.RawMessage, 0, len(recs))
		for _, r := range recs {
			docs = append(docs, json.RawMessage(r.Body))
		}
		snap[c] = docs
	}
	s.log.Info(ctx, "exported snapshot", "documents", snap.Total())
	return snap, nil
}

// ImportAll replaces the content of every collection present in snap.
// The snapshot is validated as a whole before anything is written, so a
// malformed snapshot leaves the store untouched. Each collection is then
// replaced atomically on its own; the report lists which ones failed.
func (s *DocumentStore) ImportAll(ctx context.Context, snap Snapshot) (*ImportReport, error) {
	prepared, err := s.prepareSnapshot(snap)
	if err != nil {
		return nil, err
	}

	report := &ImportReport{
		Imported: make(map[models.Collection]int),
		Failed:   make(map[models.Collection]string),
	}
	var errs []error
	for _, c := range snap.Names() {
		recs := prepared[c]
		if err := s.engine.ReplaceCollection(ctx, c, recs); err != nil {
			s.logFailure(ctx, "import", c, "", err)
			report.Failed[c] = err.Error()
			errs = append(errs, common.NewDocumentError("import", string(c), "", err))
			continue
		}
		report.Imported[c] = len(recs)
	}

	s.log.Info(ctx, "imported snapshot", "collections", len(report.Imported), "failed", len(report.Failed))
	return report, errors.Join(errs...)
}

func (s *DocumentStore) prepareSnapshot(snap Snapshot) (map[models.Collection][]Record, error) {
	now := s.now().UTC()
	out := make(map[models.Collection][]Record, len(snap))

	for _, c := range snap.Names() {
		if _, err := models.TypeOf(c); err != nil {
			return nil, common.NewDocumentError("import", string(c), "", err)
		}
		seen := make(map[string]struct{}, len(snap[c]))
		recs := make([]Record, 0, len(snap[c]))

		for i, raw := range snap[c] {
			doc, err := models.DecodeValid(c, raw)
			if err != nil {
				return nil, common.NewDocumentError("import", string(c), fmt.Sprintf("#%d", i), err)
			}
			m := doc.GetMeta()
			if m.ID == "" {
				return nil, common.NewDocumentError("import", string(c), fmt.Sprintf("#%d", i), common.Validationf("id is required"))
			}
			if _, dup := seen[m.ID]; dup {
				return nil, common.NewDocumentError("import", string(c), m.ID, common.Validationf("duplicate id in snapshot"))
			}
			seen[m.ID] = struct{}{}

			if m.Rev == "" {
				m.Rev = NewRevision("")
			}
			if m.CreatedAt.IsZero() {
				m.CreatedAt = now
			}
			if m.UpdatedAt.IsZero() {
				m.UpdatedAt = m.CreatedAt
			}

			extra, err := decodeMap(raw)
			if err != nil {
				return nil, common.NewDocumentError("import", string(c), m.ID, common.Validationf("%v", err))
			}
			rec, err := s.record(c, doc, extra)
			if err != nil {
				return nil, common.NewDocumentError("import", string(c), m.ID, err)
			}
			recs = append(recs, rec)
		}
		out[c] = recs
	}
	return out, nil
}
