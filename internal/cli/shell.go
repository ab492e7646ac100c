package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
)

// shellCommand starts a read-eval-print loop. Every line is run as a
// ballotkeeper command against the same store and query cache, so cached
// reads survive between commands. The loop ends on EOF, "exit" or "quit".
func (e *env) shellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "interactive mode sharing one store and cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			fmt.Fprintln(e.out, `BallotKeeper shell (type "help" for commands, "exit" to leave)`)
			for {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				fmt.Fprint(e.out, "ballotkeeper> ")
				line, err := e.in.ReadString('\n')
				fields, serr := splitArgs(line)
				if serr != nil {
					fmt.Fprintln(e.errOut, serr)
					fields = nil
				}
				if len(fields) > 0 {
					switch fields[0] {
					case "exit", "quit":
						fmt.Fprintln(e.out, "Bye!")
						return nil
					}
					inner := e.rootCommand(false)
					inner.SetArgs(fields)
					if cerr := inner.ExecuteContext(ctx); cerr != nil {
						fmt.Fprintln(e.errOut, common.Describe(cerr))
					}
				}
				if err != nil {
					fmt.Fprintln(e.out)
					return nil
				}
			}
		},
	}
}

// splitArgs splits a shell line on whitespace; single or double quotes
// group words, e.g. election set 2024 "Student Council".
func splitArgs(line string) ([]string, error) {
	var (
		args  []string
		cur   strings.Builder
		quote rune
		inArg bool
	)
	for _, r := range line {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inArg = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			if inArg {
				args = append(args, cur.String())
				cur.Reset()
				inArg = false
			}
		default:
			cur.WriteRune(r)
			inArg = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if inArg {
		args = append(args, cur.String())
	}
	return args, nil
}
