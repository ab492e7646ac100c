package reconcile

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dmitrijs2005/ballotkeeper/internal/models"
)

// MatchKind tells how a student was linked to the vote log.
type MatchKind string

const (
	MatchNone      MatchKind = "none"
	MatchPrimary   MatchKind = "primary"
	MatchAlternate MatchKind = "alternate"
	MatchFallback  MatchKind = "fallback"
)

// WarningKind classifies a data-quality warning.
type WarningKind string

const (
	WarnFallbackMatch WarningKind = "fallback_match"
	WarnNoIdentifier  WarningKind = "no_identifier"
	WarnDuplicateVote WarningKind = "duplicate_vote"
	WarnUnmatchedVote WarningKind = "unmatched_vote"
)

// Warning is a non-fatal data-quality finding.
type Warning struct {
	Kind       WarningKind `json:"kind"`
	StudentID  string      `json:"studentId,omitempty"`
	Identifier string      `json:"identifier,omitempty"`
	Count      int         `json:"count,omitempty"`
	Message    string      `json:"message"`
}

// Result is the derived status of one student.
type Result struct {
	StudentID string              `json:"studentId"`
	Status    models.VotingStatus `json:"status"`
	Match     MatchKind           `json:"match"`
	// Identifiers lists the vote identifiers attributed to the student.
	Identifiers []string `json:"identifiers,omitempty"`
	VoteCount   int      `json:"voteCount"`
	// VotedAt is the earliest castAt of the attributed votes.
	VotedAt *time.Time `json:"votedAt,omitempty"`
}

// Report is the outcome of a reconciliation. Results follow the order of
// the input students.
type Report struct {
	Results  []Result  `json:"results"`
	Warnings []Warning `json:"warnings"`
}

// Reconcile derives the status of every student from votes.
func Reconcile(students []*models.Student, votes []*models.Vote) *Report {
	// background context never cancels and the callback never fails
	r, _ := ReconcileChunked(context.Background(), students, votes, len(students), nil)
	return r
}

// ReconcileChunked is Reconcile over chunks of chunkSize students. fn, when
// not nil, receives each chunk's results as soon as they are ready; an error
// from fn or a cancelled ctx stops the run.
func ReconcileChunked(ctx context.Context, students []*models.Student, votes []*models.Vote, chunkSize int, fn func([]Result) error) (*Report, error) {
	if chunkSize <= 0 {
		chunkSize = len(students)
	}
	idx := newVoteIndex(votes, students)
	report := &Report{
		Results:  make([]Result, 0, len(students)),
		Warnings: []Warning{},
	}

	for start := 0; start < len(students); start += chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		end := min(start+chunkSize, len(students))

		chunk := make([]Result, 0, end-start)
		for _, s := range students[start:end] {
			res, warns := idx.resolve(s)
			chunk = append(chunk, res)
			report.Warnings = append(report.Warnings, warns...)
		}
		report.Results = append(report.Results, chunk...)

		if fn != nil {
			if err := fn(chunk); err != nil {
				return nil, err
			}
		}
	}

	report.Warnings = append(report.Warnings, idx.unmatched()...)
	return report, nil
}

// voteIndex groups votes by identifier and remembers which identifiers were
// attributed to a student.
type voteIndex struct {
	byID  map[string][]*models.Vote
	keys  []string
	taken map[string]bool
	// exact holds every identifier some student owns; fallback matching
	// never claims those.
	exact map[string]bool
}

func newVoteIndex(votes []*models.Vote, students []*models.Student) *voteIndex {
	idx := &voteIndex{
		byID:  make(map[string][]*models.Vote),
		taken: make(map[string]bool),
		exact: make(map[string]bool),
	}
	for _, s := range students {
		for _, f := range models.ResolutionOrder {
			if id := strings.TrimSpace(s.Identifier(f)); id != "" {
				idx.exact[id] = true
			}
		}
	}
	for _, v := range votes {
		id := strings.TrimSpace(v.StudentIdentifier)
		if id == "" {
			continue
		}
		if _, ok := idx.byID[id]; !ok {
			idx.keys = append(idx.keys, id)
		}
		idx.byID[id] = append(idx.byID[id], v)
	}
	sort.Strings(idx.keys)
	return idx
}

func (idx *voteIndex) resolve(s *models.Student) (Result, []Warning) {
	res := Result{StudentID: s.ID, Match: MatchNone}
	var warns []Warning

	if !s.HasIdentifier() {
		warns = append(warns, Warning{
			Kind:    WarnNoIdentifier,
			Message: fmt.Sprintf("student %q has no identifier and cannot be matched", s.FullName()),
		})
		res.Status = unmatchedStatus(s)
		return res, warns
	}

	primary := strings.TrimSpace(s.ID)
	alternates := []string{strings.TrimSpace(s.SecondaryID), strings.TrimSpace(s.ExternalID)}

	var matched []string
	switch {
	case primary != "" && idx.has(primary):
		res.Match = MatchPrimary
	case idx.has(alternates[0]) || idx.has(alternates[1]):
		res.Match = MatchAlternate
	}
	if res.Match != MatchNone {
		// count every exact identifier so a student who voted under two
		// identifiers is reported as a duplicate
		for _, id := range append([]string{primary}, alternates...) {
			if id != "" && idx.has(id) && !contains(matched, id) {
				matched = append(matched, id)
			}
		}
	} else if ext := strings.TrimSpace(s.ExternalID); ext != "" {
		for _, k := range idx.keys {
			if !idx.exact[k] && containsSegment(k, ext) {
				matched = append(matched, k)
			}
		}
		if len(matched) > 0 {
			res.Match = MatchFallback
			warns = append(warns, Warning{
				Kind:       WarnFallbackMatch,
				StudentID:  s.ID,
				Identifier: strings.Join(matched, ","),
				Message:    fmt.Sprintf("external id %q matched vote identifier(s) %s by containment", ext, strings.Join(matched, ", ")),
			})
		}
	}

	if len(matched) == 0 {
		res.Status = unmatchedStatus(s)
		return res, warns
	}

	res.Status = models.StatusVoted
	res.Identifiers = matched
	for _, id := range matched {
		idx.taken[id] = true
		for _, v := range idx.byID[id] {
			res.VoteCount++
			if at := v.CastAt; !at.IsZero() && (res.VotedAt == nil || at.Before(*res.VotedAt)) {
				res.VotedAt = &at
			}
		}
	}
	if res.VoteCount > 1 {
		warns = append(warns, Warning{
			Kind:       WarnDuplicateVote,
			StudentID:  s.ID,
			Identifier: strings.Join(matched, ","),
			Count:      res.VoteCount,
			Message:    fmt.Sprintf("student %q has %d votes", s.ID, res.VoteCount),
		})
	}
	return res, warns
}

func (idx *voteIndex) has(id string) bool {
	if id == "" {
		return false
	}
	_, ok := idx.byID[id]
	return ok
}

func (idx *voteIndex) unmatched() []Warning {
	var out []Warning
	for _, k := range idx.keys {
		if idx.taken[k] {
			continue
		}
		n := len(idx.byID[k])
		out = append(out, Warning{
			Kind:       WarnUnmatchedVote,
			Identifier: k,
			Count:      n,
			Message:    fmt.Sprintf("%d vote(s) for identifier %q match no student", n, k),
		})
	}
	return out
}

// unmatchedStatus applies precedence for a student with no matched vote.
func unmatchedStatus(s *models.Student) models.VotingStatus {
	if s.AbsentAt != nil {
		return models.StatusAbsent
	}
	return models.StatusPending
}

func isDelimiter(b byte) bool {
	return b == '_' || b == '-' || b == ':'
}

// containsSegment reports whether seg occurs in s bounded on both sides by
// a delimiter or the ends of s.
func containsSegment(s, seg string) bool {
	if seg == "" {
		return false
	}
	for from := 0; from <= len(s)-len(seg); {
		i := strings.Index(s[from:], seg)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(seg)
		if (start == 0 || isDelimiter(s[start-1])) && (end == len(s) || isDelimiter(s[end])) {
			return true
		}
		from = start + 1
	}
	return false
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
