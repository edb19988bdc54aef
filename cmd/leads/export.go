package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	apperrors "github.com/kimhsiao/leadbook/internal/errors"
	"github.com/kimhsiao/leadbook/internal/export"
)

func exportCommand(a *app) *cobra.Command {
	var (
		format   string
		password string
	)
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Export every lead to a file",
		Long: `Export every lead, in order, to a CSV, PDF, TXT or HTML report or to a
backup archive (.tar.gz). The format follows the file extension unless
--format is given. Relative paths are resolved against export.dir.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if format != "" {
				name = format
			}
			f, err := export.ParseFormat(name)
			if err != nil {
				return err
			}
			if password != "" && f != export.FormatArchive {
				return apperrors.New(apperrors.ErrInvalidInput, "--password only applies to archive exports")
			}

			res, err := a.leads.Export(cmd.Context(), f, args[0], password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d leads to %s (%s, %s)\n",
				res.Count, res.Path, res.Format, humanize.Bytes(uint64(res.SizeBytes)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "csv, pdf, txt, html or archive")
	cmd.Flags().StringVar(&password, "password", "", "encrypt the archive with this password")
	return cmd
}

func backupCommand(a *app) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Write a timestamped backup archive",
		Long: `Write a backup archive into backup.dir and remove the oldest archives
beyond backup.keep. Archives are encrypted when LEADBOOK_BACKUP_PASSWORD is
set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				archives, err := a.leads.Backups()
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "CREATED\tSIZE\tPATH")
				for _, arc := range archives {
					fmt.Fprintf(tw, "%s\t%s\t%s\n", arc.CreatedAt.Format("2006-01-02 15:04:05"), humanize.Bytes(uint64(arc.SizeBytes)), arc.Path)
				}
				return tw.Flush()
			}

			res, err := a.leads.Backup()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Backed up %d leads to %s (%s)\n", res.Count, res.Path, humanize.Bytes(uint64(res.SizeBytes)))
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list existing backups instead of writing one")
	return cmd
}

func restoreCommand(a *app) *cobra.Command {
	var (
		password string
		latest   bool
	)
	cmd := &cobra.Command{
		Use:   "restore [archive]",
		Short: "Replace every lead with the contents of a backup archive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			switch {
			case len(args) == 1:
				path = args[0]
			case latest:
				arc, err := a.leads.LatestBackup()
				if err != nil {
					return err
				}
				path = arc.Path
			default:
				return apperrors.New(apperrors.ErrInvalidInput, "name an archive or pass --latest")
			}
			if password == "" {
				password = a.settings.Backup.Password
			}

			count, err := a.leads.Restore(path, password)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restored %d leads from %s\n", count, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password of an encrypted archive")
	cmd.Flags().BoolVar(&latest, "latest", false, "restore the newest archive in backup.dir")
	return cmd
}
