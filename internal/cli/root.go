package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/ballotkeeper/internal/common"
	"github.com/dmitrijs2005/ballotkeeper/internal/config"
)

// loadConfig is a test seam for config.Load.
var loadConfig = config.Load

// noApp marks commands that run without opening the store.
const noApp = "noapp"

// env is the state shared by one invocation and, in the shell, by every
// command typed into it.
type env struct {
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer
	app    *App
}

// Execute runs the command line given by args and returns the process exit
// code. Errors are reported on errOut through common.Describe.
func Execute(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	e := &env{in: bufio.NewReader(in), out: out, errOut: errOut}
	defer e.close()

	root := e.rootCommand(true)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(errOut, common.Describe(err))
		return 1
	}
	return 0
}

func (e *env) close() {
	if e.app == nil {
		return
	}
	if err := e.app.Close(); err != nil {
		fmt.Fprintln(e.errOut, common.Describe(err))
	}
	e.app = nil
}

// rootCommand builds the command tree. Only the top-level tree carries the
// shell command; the shell builds a nested tree per line that reuses e.app.
func (e *env) rootCommand(top bool) *cobra.Command {
	root := &cobra.Command{
		Use:           "ballotkeeper",
		Short:         "offline-first student election records",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if e.app != nil || cmd.Annotations[noApp] != "" {
				return nil
			}
			cfg, err := loadConfig(cmd.Root().PersistentFlags())
			if err != nil {
				return fmt.Errorf("%w: %v", common.ErrValidation, err)
			}
			app, err := NewApp(cmd.Context(), cfg, e.errOut)
			if err != nil {
				return err
			}
			e.app = app
			return nil
		},
	}
	root.SetIn(e.in)
	root.SetOut(e.out)
	root.SetErr(e.errOut)
	config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		e.studentCommand(),
		e.importCommand(),
		e.candidateCommand(),
		e.sessionCommand(),
		e.electionCommand(),
		e.voteCommand(),
		e.absentCommand(),
		e.statusCommand(),
		e.syncCommand(),
		e.backupCommand(),
		e.cacheCommand(),
		versionCommand(),
	)
	if top {
		root.AddCommand(e.shellCommand())
	}
	return root
}
