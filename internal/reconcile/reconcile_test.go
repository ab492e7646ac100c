package reconcile

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/ballotkeeper/internal/models"
)

var t0 = time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)

func stu(id, secondary, external string) *models.Student {
	s := &models.Student{GivenNames: "G", FamilyNames: "F", SecondaryID: secondary, ExternalID: external}
	s.ID = id
	return s
}

func vote(identifier string, at time.Time) *models.Vote {
	return &models.Vote{StudentIdentifier: identifier, SelectionID: "cand_1", CastAt: at}
}

func warningsOf(r *Report, kind WarningKind) []Warning {
	var out []Warning
	for _, w := range r.Warnings {
		if w.Kind == kind {
			out = append(out, w)
		}
	}
	return out
}

func TestReconcile_MatchPrecedence(t *testing.T) {
	students := []*models.Student{
		stu("s1", "", ""),
		stu("s2", "RUT-2", ""),
		stu("s3", "", "333"),
		stu("s4", "", "12345"),
		stu("s5", "", ""),
	}
	votes := []*models.Vote{
		vote("s1", t0),
		vote("RUT-2", t0),
		vote("333", t0),
		vote("student_12345_9999", t0),
	}

	r := Reconcile(students, votes)
	require.Len(t, r.Results, 5)

	tests := []struct {
		id     string
		status models.VotingStatus
		match  MatchKind
	}{
		{"s1", models.StatusVoted, MatchPrimary},
		{"s2", models.StatusVoted, MatchAlternate},
		{"s3", models.StatusVoted, MatchAlternate},
		{"s4", models.StatusVoted, MatchFallback},
		{"s5", models.StatusPending, MatchNone},
	}
	for i, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got := r.Results[i]
			assert.Equal(t, tt.id, got.StudentID)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.match, got.Match)
		})
	}

	fb := warningsOf(r, WarnFallbackMatch)
	require.Len(t, fb, 1)
	assert.Equal(t, "s4", fb[0].StudentID)
	assert.Empty(t, warningsOf(r, WarnUnmatchedVote))
}

func TestReconcile_PrimaryWinsOverFallback(t *testing.T) {
	students := []*models.Student{stu("s1", "", "77")}
	votes := []*models.Vote{vote("s1", t0), vote("x_77", t0)}

	r := Reconcile(students, votes)
	assert.Equal(t, MatchPrimary, r.Results[0].Match)
	assert.Equal(t, 1, r.Results[0].VoteCount)

	unmatched := warningsOf(r, WarnUnmatchedVote)
	require.Len(t, unmatched, 1)
	assert.Equal(t, "x_77", unmatched[0].Identifier)
}

func TestContainsSegment(t *testing.T) {
	tests := []struct {
		s, seg string
		want   bool
	}{
		{"student_12345_9999", "12345", true},
		{"12345", "12345", true},
		{"12345-a", "12345", true},
		{"x:12345", "12345", true},
		{"student_112345_9", "12345", false},
		{"student_123456_9", "12345", false},
		{"a12345_12345", "12345", true},
		{"", "12345", false},
		{"abc", "", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, containsSegment(tt.s, tt.seg), "%q in %q", tt.seg, tt.s)
	}
}

func TestReconcile_FallbackSkipsOwnedIdentifiers(t *testing.T) {
	// "12_34" is s1's own id; s2's external id must not steal it
	students := []*models.Student{stu("12_34", "", ""), stu("s2", "", "34")}
	r := Reconcile(students, []*models.Vote{vote("12_34", t0)})

	assert.Equal(t, models.StatusVoted, r.Results[0].Status)
	assert.Equal(t, models.StatusPending, r.Results[1].Status)
}

func TestReconcile_StatusPrecedence(t *testing.T) {
	absentAt := t0.Add(-time.Hour)

	voted := stu("s1", "", "")
	voted.AbsentAt = &absentAt
	absent := stu("s2", "", "")
	absent.AbsentAt = &absentAt
	stale := stu("s3", "", "")
	stale.VotingStatus = models.StatusVoted

	r := Reconcile([]*models.Student{voted, absent, stale}, []*models.Vote{vote("s1", t0)})
	assert.Equal(t, models.StatusVoted, r.Results[0].Status, "a vote beats absence")
	assert.Equal(t, models.StatusAbsent, r.Results[1].Status)
	assert.Equal(t, models.StatusPending, r.Results[2].Status, "stored status without a vote is not trusted")
}

func TestReconcile_Idempotent(t *testing.T) {
	students := []*models.Student{stu("s1", "", ""), stu("s2", "", "12345"), stu("s3", "", "")}
	votes := []*models.Vote{vote("s1", t0), vote("student_12345_1", t0.Add(time.Minute))}

	first := Reconcile(students, votes)
	second := Reconcile(students, votes)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("reconcile is not deterministic (-first +second):\n%s", diff)
	}

	// apply the derived statuses and reconcile again: nothing changes
	for i, res := range first.Results {
		if res.Status == models.StatusVoted {
			students[i].MarkVoted(*res.VotedAt)
		}
	}
	third := Reconcile(students, votes)
	for i := range first.Results {
		assert.Equal(t, first.Results[i].Status, third.Results[i].Status)
	}
}

func TestReconcile_DuplicateVotes(t *testing.T) {
	students := []*models.Student{stu("s1", "", "")}
	votes := []*models.Vote{vote("s1", t0.Add(time.Minute)), vote("s1", t0)}

	r := Reconcile(students, votes)
	res := r.Results[0]
	assert.Equal(t, models.StatusVoted, res.Status)
	assert.Equal(t, 2, res.VoteCount)
	require.NotNil(t, res.VotedAt)
	assert.True(t, res.VotedAt.Equal(t0), "earliest castAt wins")

	dups := warningsOf(r, WarnDuplicateVote)
	require.Len(t, dups, 1)
	assert.Equal(t, 2, dups[0].Count)
}

func TestReconcile_NoIdentifier(t *testing.T) {
	r := Reconcile([]*models.Student{stu("", "", "")}, []*models.Vote{vote("s9", t0)})

	assert.Equal(t, models.StatusPending, r.Results[0].Status)
	require.Len(t, warningsOf(r, WarnNoIdentifier), 1)
	require.Len(t, warningsOf(r, WarnUnmatchedVote), 1)
}

func TestReconcileChunked(t *testing.T) {
	students := make([]*models.Student, 0, 10)
	votes := make([]*models.Vote, 0, 10)
	for i := 0; i < 10; i++ {
		id := string(rune('a' + i))
		students = append(students, stu(id, "", ""))
		if i%2 == 0 {
			votes = append(votes, vote(id, t0))
		}
	}

	var sizes []int
	r, err := ReconcileChunked(context.Background(), students, votes, 4, func(chunk []Result) error {
		sizes = append(sizes, len(chunk))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 4, 2}, sizes)
	assert.Equal(t, Reconcile(students, votes), r)

	boom := errors.New("boom")
	_, err = ReconcileChunked(context.Background(), students, votes, 4, func([]Result) error { return boom })
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ReconcileChunked(ctx, students, votes, 4, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSummarize(t *testing.T) {
	absentAt := t0
	students := []*models.Student{
		{Meta: models.Meta{ID: "a"}, Course: "4A"},
		{Meta: models.Meta{ID: "b"}, Course: "4A"},
		{Meta: models.Meta{ID: "c"}, Course: "4B", AbsentAt: &absentAt},
		{Meta: models.Meta{ID: "d"}, Course: "4B"},
	}
	votes := []*models.Vote{vote("a", t0), vote("b", t0)}
	votes[1].SelectionID = models.BlankSelection

	sum := Summarize(students, Reconcile(students, votes))
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, 2, sum.Voted)
	assert.Equal(t, 1, sum.Absent)
	assert.Equal(t, 1, sum.Pending)
	assert.InDelta(t, 0.5, sum.Participation, 1e-9)

	want := []CourseSummary{
		{Course: "4A", Total: 2, Voted: 2},
		{Course: "4B", Total: 2, Absent: 1, Pending: 1},
	}
	if diff := cmp.Diff(want, sum.Courses); diff != "" {
		t.Errorf("courses (-want +got):\n%s", diff)
	}

	assert.Equal(t, map[string]int{"cand_1": 1, models.BlankSelection: 1}, Tally(votes))
	assert.Zero(t, Summarize(nil, Reconcile(nil, nil)).Participation)
}
