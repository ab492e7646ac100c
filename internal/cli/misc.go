package cli

import (
	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/ballotkeeper/internal/buildinfo"
)

func (e *env) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "inspect the query cache",
	}

	var prometheus bool
	stats := &cobra.Command{
		Use:   "stats",
		Short: "print cache counters of this process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if prometheus {
				e.app.cache.WritePrometheus(e.out)
				return nil
			}
			return printJSON(e.out, e.app.cache.Stats())
		},
	}
	stats.Flags().BoolVar(&prometheus, "prometheus", false, "Prometheus text format")

	purge := &cobra.Command{
		Use:   "clear",
		Short: "drop every cached result",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			e.app.cache.Purge()
		},
	}

	cmd.AddCommand(stats, purge)
	return cmd
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "print build information",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{noApp: "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			buildinfo.PrintBuildData(cmd.OutOrStdout())
		},
	}
}
