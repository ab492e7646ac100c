package reconcile

import (
	"sort"

	"github.com/dmitrijs2005/ballotkeeper/internal/models"
)

// CourseSummary counts statuses within one course.
type CourseSummary struct {
	Course  string `json:"course"`
	Total   int    `json:"total"`
	Voted   int    `json:"voted"`
	Absent  int    `json:"absent"`
	Pending int    `json:"pending"`
}

// Summary aggregates a Report for dashboards.
type Summary struct {
	Total   int `json:"total"`
	Voted   int `json:"voted"`
	Absent  int `json:"absent"`
	Pending int `json:"pending"`
	// Participation is Voted / Total, 0 for an empty roll.
	Participation float64         `json:"participation"`
	Courses       []CourseSummary `json:"courses"`
	Warnings      int             `json:"warnings"`
}

// Summarize aggregates report per status and per course. students must be
// the slice the report was computed from.
func Summarize(students []*models.Student, report *Report) Summary {
	var sum Summary
	byCourse := make(map[string]*CourseSummary)

	for i, res := range report.Results {
		course := ""
		if i < len(students) {
			course = students[i].Course
		}
		cs, ok := byCourse[course]
		if !ok {
			cs = &CourseSummary{Course: course}
			byCourse[course] = cs
		}

		sum.Total++
		cs.Total++
		switch res.Status {
		case models.StatusVoted:
			sum.Voted++
			cs.Voted++
		case models.StatusAbsent:
			sum.Absent++
			cs.Absent++
		default:
			sum.Pending++
			cs.Pending++
		}
	}

	if sum.Total > 0 {
		sum.Participation = float64(sum.Voted) / float64(sum.Total)
	}
	sum.Courses = make([]CourseSummary, 0, len(byCourse))
	for _, cs := range byCourse {
		sum.Courses = append(sum.Courses, *cs)
	}
	sort.Slice(sum.Courses, func(i, j int) bool { return sum.Courses[i].Course < sum.Courses[j].Course })
	sum.Warnings = len(report.Warnings)
	return sum
}

// Tally counts votes per selection id.
func Tally(votes []*models.Vote) map[string]int {
	out := make(map[string]int)
	for _, v := range votes {
		out[v.SelectionID]++
	}
	return out
}
