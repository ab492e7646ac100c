package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
	"github.com/dmitrijs2005/ballotkeeper/internal/models"
	"github.com/dmitrijs2005/ballotkeeper/internal/store"
)

func (e *env) studentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "student",
		Short: "manage the voter roll",
	}
	cmd.AddCommand(e.studentAddCommand(), e.studentListCommand(), e.studentGetCommand())
	return cmd
}

func (e *env) studentAddCommand() *cobra.Command {
	var s models.Student
	cmd := &cobra.Command{
		Use:   "add",
		Short: "add a student to the roll",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			id, err := e.app.registry.AddStudent(cmd.Context(), &s)
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, id.ID)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&s.GivenNames, "given", "", "given names")
	f.StringVar(&s.FamilyNames, "family", "", "family names")
	f.StringVar(&s.ExternalID, "external-id", "", "external (national) identifier")
	f.StringVar(&s.SecondaryID, "secondary-id", "", "secondary identifier")
	f.StringVar(&s.Course, "course", "", "course, e.g. 4A")
	f.StringVar(&s.EducationLevel, "level", "", "education level")
	f.IntVar(&s.Year, "year", 0, "election year")
	return cmd
}

func (e *env) studentListCommand() *cobra.Command {
	var (
		course, status, rawQuery string
		year, limit              int
		asJSON                   bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list students, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := store.Query{Selector: store.Selector{}}
			if rawQuery != "" {
				parsed, err := store.ParseQuery([]byte(rawQuery))
				if err != nil {
					return err
				}
				q = parsed
				if q.Selector == nil {
					q.Selector = store.Selector{}
				}
			}
			if course != "" {
				q.Selector["course"] = course
			}
			if status != "" {
				if !models.VotingStatus(status).Valid() {
					return common.Validationf("unknown status %q", status)
				}
				q.Selector["votingStatus"] = status
			}
			if year != 0 {
				q.Selector["year"] = year
			}
			if limit > 0 {
				q.Limit = limit
			}

			students, err := e.app.registry.ListStudents(cmd.Context(), q)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(e.out, students)
			}
			rows := make([][]string, 0, len(students))
			for _, s := range students {
				rows = append(rows, []string{s.ID, s.FullName(), s.Course, string(s.Status()), formatTime(s.VotedAt)})
			}
			return table(e.out, []string{"ID", "NAME", "COURSE", "STATUS", "VOTED"}, rows)
		},
	}
	f := cmd.Flags()
	f.StringVar(&course, "course", "", "only this course")
	f.StringVar(&status, "status", "", "only this status (pending, voted, absent)")
	f.IntVar(&year, "year", 0, "only this year")
	f.IntVar(&limit, "limit", 0, "maximum results")
	f.StringVar(&rawQuery, "query", "", `raw query, e.g. {"selector":{"course":{"$or":["4A","4B"]}}}`)
	f.BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (e *env) studentGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "show one student",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.app.registry.GetStudent(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(e.out, s)
		},
	}
}

func (e *env) importCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "bulk-load records",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "students <file.json>",
		Short: "create students from a JSON array; invalid entries are reported and skipped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var raws []json.RawMessage
			if err := json.Unmarshal(data, &raws); err != nil {
				return common.Validationf("%s is not a JSON array: %v", args[0], err)
			}

			res := e.app.registry.ImportStudents(cmd.Context(), raws)
			fmt.Fprintf(e.out, "imported %d of %d students\n", res.SuccessCount, len(raws))
			for _, f := range res.Failures {
				fmt.Fprintf(e.out, "  #%d: %s\n", f.Index, f.Error)
			}
			return nil
		},
	})
	return cmd
}
