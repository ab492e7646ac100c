package cli

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/dmitrijs2005/ballotkeeper/internal/backup"
	"github.com/dmitrijs2005/ballotkeeper/internal/common"
	"github.com/dmitrijs2005/ballotkeeper/internal/models"
)

func (e *env) backupCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "export and restore every collection",
		Long: `Locations are local file paths, s3://bucket/key objects (an empty
bucket uses --s3-bucket) or presigned http(s) URLs.`,
	}
	cmd.AddCommand(e.backupExportCommand(), e.backupImportCommand(), e.backupPresignCommand())
	return cmd
}

func (e *env) backupExportCommand() *cobra.Command {
	var encrypt bool
	cmd := &cobra.Command{
		Use:   "export <destination>",
		Short: "write a full backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var passphrase []byte
			if encrypt {
				p, err := GetNewPassphrase(e.in, e.out)
				if err != nil {
					return err
				}
				defer common.WipeByteArray(p)
				passphrase = p
			}

			info, err := e.app.backups.Export(cmd.Context(), args[0], passphrase)
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "backup %s: %d documents, %d bytes\n", info.ID, info.TotalDocuments, info.Size)
			return nil
		},
	}
	cmd.Flags().BoolVar(&encrypt, "encrypt", false, "encrypt with a passphrase")
	return cmd
}

func (e *env) backupImportCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import <source>",
		Short: "replace every collection with a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, report, err := e.app.backups.Import(cmd.Context(), args[0], nil)
			if errors.Is(err, backup.ErrPassphraseRequired) {
				p, perr := GetPassphrase(e.in, "Backup passphrase", e.out)
				if perr != nil {
					return perr
				}
				defer common.WipeByteArray(p)
				info, report, err = e.app.backups.Import(cmd.Context(), args[0], p)
			}
			if report != nil {
				names := make([]string, 0, len(report.Imported))
				for c := range report.Imported {
					names = append(names, string(c))
				}
				sort.Strings(names)
				for _, n := range names {
					fmt.Fprintf(e.out, "  %s: %d\n", n, report.Imported[models.Collection(n)])
				}
				for c, msg := range report.Failed {
					fmt.Fprintf(e.out, "  %s: FAILED: %s\n", c, msg)
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(e.out, "restored backup %s from %s\n", info.ID, info.Timestamp.Local().Format(time.RFC1123))
			return nil
		},
	}
}

func (e *env) backupPresignCommand() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "presign <s3://bucket/key>",
		Short: "print a temporary download URL for a backup stored in S3",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := e.app.backups.Presign(cmd.Context(), args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(e.out, url)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 15*time.Minute, "validity of the URL")
	return cmd
}
