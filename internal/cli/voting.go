package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/ballotkeeper/internal/reconcile"
	"github.com/dmitrijs2005/ballotkeeper/internal/services"
)

func (e *env) voteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vote",
		Short: "record ballots",
	}

	var sessionID string
	cast := &cobra.Command{
		Use:   "cast <student-id> <selection-id>",
		Short: `record a vote; use "blank" as selection for a blank vote`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := e.app.voting.CastVote(cmd.Context(), services.CastVoteRequest{
				StudentID:   args[0],
				SelectionID: args[1],
				SessionID:   sessionID,
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, v.ID)
			return nil
		},
	}
	cast.Flags().StringVar(&sessionID, "session", "", "polling session the vote belongs to")

	cmd.AddCommand(cast)
	return cmd
}

func (e *env) absentCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "absent <student-id>",
		Short: "mark a student absent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.app.voting.MarkAbsent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "%s marked absent\n", s.ID)
			return nil
		},
	}
}

func (e *env) syncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "reconcile student statuses with the vote log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := e.app.voting.Sync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "%d students updated, %d conflicts, %d failed\n", res.Updated, res.Conflicts, res.Failed)
			printWarnings(e.out, res.Report.Warnings)
			return nil
		},
	}
}

func (e *env) statusCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "show participation, tally and open sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dash, err := e.app.dashboard.Status(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(e.out, dash)
			}
			return printDashboard(e.out, dash)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printDashboard(w io.Writer, d *services.Dashboard) error {
	if d.Config != nil {
		fmt.Fprintf(w, "%s (%d)\n", d.Config.Title, d.Config.Year)
	}
	s := d.Summary
	fmt.Fprintf(w, "students %d, voted %d, absent %d, pending %d, participation %.1f%%\n\n",
		s.Total, s.Voted, s.Absent, s.Pending, s.Participation*100)

	rows := make([][]string, 0, len(s.Courses))
	for _, c := range s.Courses {
		course := c.Course
		if course == "" {
			course = "-"
		}
		rows = append(rows, []string{course, fmt.Sprint(c.Total), fmt.Sprint(c.Voted), fmt.Sprint(c.Absent), fmt.Sprint(c.Pending)})
	}
	if err := table(w, []string{"COURSE", "TOTAL", "VOTED", "ABSENT", "PENDING"}, rows); err != nil {
		return err
	}
	fmt.Fprintln(w)

	rows = rows[:0]
	for _, t := range d.Tally {
		rows = append(rows, []string{t.Label, fmt.Sprint(t.Votes)})
	}
	if err := table(w, []string{"SELECTION", "VOTES"}, rows); err != nil {
		return err
	}

	if len(d.OpenSessions) > 0 {
		fmt.Fprintln(w)
		for _, sess := range d.OpenSessions {
			fmt.Fprintf(w, "open session: %s (%s)\n", sess.Name, sess.ID)
		}
	}
	printWarnings(w, d.Warnings)
	return nil
}

func printWarnings(w io.Writer, warnings []reconcile.Warning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%d data quality warnings:\n", len(warnings))
	for _, wr := range warnings {
		fmt.Fprintf(w, "  [%s] %s\n", wr.Kind, wr.Message)
	}
}
