package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/ballotkeeper/internal/models"
)

func (e *env) candidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "candidate",
		Short: "manage ballot options",
	}

	var c models.Candidate
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "add a candidate or list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.Name = args[0]
			id, err := e.app.registry.AddCandidate(cmd.Context(), &c)
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, id.ID)
			return nil
		},
	}
	add.Flags().StringVar(&c.List, "list", "", "electoral list")
	add.Flags().StringVar(&c.Position, "position", "", "position contested")
	add.Flags().StringVar(&c.Course, "course", "", "course of the candidate")
	add.Flags().IntVar(&c.Year, "year", 0, "election year")

	list := &cobra.Command{
		Use:   "list",
		Short: "list candidates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cs, err := e.app.registry.ListCandidates(cmd.Context())
			if err != nil {
				return err
			}
			rows := make([][]string, 0, len(cs))
			for _, c := range cs {
				rows = append(rows, []string{c.ID, c.Name, c.List, c.Position})
			}
			return table(e.out, []string{"ID", "NAME", "LIST", "POSITION"}, rows)
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}

func (e *env) sessionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "open and close polling sessions",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "open <name>",
			Short: "open a polling session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := e.app.registry.OpenSession(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(e.out, s.ID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "close <id>",
			Short: "close a polling session",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := e.app.registry.CloseSession(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(e.out, "%s closed at %s\n", s.ID, formatTime(s.ClosedAt))
				return nil
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "list polling sessions, newest first",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				ss, err := e.app.registry.ListSessions(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, 0, len(ss))
				for _, s := range ss {
					opened := s.OpenedAt
					rows = append(rows, []string{s.ID, s.Name, formatTime(&opened), formatTime(s.ClosedAt)})
				}
				return table(e.out, []string{"ID", "NAME", "OPENED", "CLOSED"}, rows)
			},
		},
	)
	return cmd
}

func (e *env) electionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "election",
		Short: "show or change the election settings",
	}

	var cfg models.ElectionConfig
	set := &cobra.Command{
		Use:   "set <year> <title>",
		Short: "create or update the settings of an election year",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("year %q: %w", args[0], err)
			}
			cfg.Year = year
			cfg.Title = args[1]
			id, err := e.app.registry.SaveConfig(cmd.Context(), &cfg)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "%s saved (rev %s)\n", id.ID, id.Rev)
			return nil
		},
	}
	set.Flags().StringVar(&cfg.Institution, "institution", "", "school or institution")
	set.Flags().BoolVar(&cfg.AllowBlankVote, "allow-blank", true, "accept blank votes")

	show := &cobra.Command{
		Use:   "show",
		Short: "print the settings of the latest election year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := e.app.registry.CurrentConfig(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(e.out, c)
		},
	}

	cmd.AddCommand(set, show)
	return cmd
}
