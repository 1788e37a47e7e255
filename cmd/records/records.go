// Package records provides the command line tools for saved line walk records.
package records

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/linewalk/internal/app"
	"github.com/tphakala/linewalk/internal/conf"
	"github.com/tphakala/linewalk/internal/datastore"
	"github.com/tphakala/linewalk/internal/export/targets"
	"github.com/tphakala/linewalk/internal/logger"
)

// Command returns the "records" command group: list, export and delete
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records",
		Short: "List, export and delete saved records",
	}
	cmd.AddCommand(listCommand(settings), exportCommand(settings), deleteCommand(settings))
	return cmd
}

// withStore opens the configured datastore for the duration of fn
func withStore(ctx context.Context, settings *conf.Settings, fn func(*datastore.Store) error) error {
	kv, store, err := app.Store(ctx, settings, nil, app.GetLogger())
	if err != nil {
		return err
	}
	defer func() { _ = kv.Close() }()
	return fn(store)
}

func listCommand(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved records, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd.Context(), settings, func(store *datastore.Store) error {
				records, err := store.List(cmd.Context())
				if err != nil {
					return err
				}
				return printRecords(cmd.OutOrStdout(), records)
			})
		},
	}
}

func printRecords(out io.Writer, records []datastore.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "No records saved")
		return err
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tSTYLE\tLINE\tINSPECTED\tFAILED\tSCORE")
	for i := range records {
		r := &records[i]
		sum := r.Summary()
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%.2f%%\n",
			r.ID, r.Name, r.Header.Style, r.Header.Line,
			sum.InspectedItems, sum.Failed, sum.Percentage)
	}
	return w.Flush()
}

func exportCommand(settings *conf.Settings) *cobra.Command {
	var (
		outDir  string
		publish bool
	)

	cmd := &cobra.Command{
		Use:   "export <id>",
		Short: "Export a record as an xlsx workbook",
		Long: `Export a record as an xlsx workbook into a directory.
When the workbook cannot be written a csv file is written instead.
With --publish the file is also copied to every enabled export target.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := app.GetLogger()
			if outDir == "" {
				outDir = settings.Export.Dir
			}
			target, err := targets.NewLocalTarget(outDir, log)
			if err != nil {
				return err
			}

			return withStore(ctx, settings, func(store *datastore.Store) error {
				rec, err := store.Get(ctx, args[0])
				if err != nil {
					return err
				}

				exporter := app.Exporter(ctx, settings, nil, nil, log)
				res, err := exporter.Export(ctx, rec, target)
				if err != nil {
					return err
				}
				if publish {
					exporter.Publish(rec)
					exporter.Wait()
				}

				if res.Fallback {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "Workbook export failed, wrote CSV instead")
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Exported %s to %s (%d bytes)\n",
					rec.Name, filepath.Join(target.Dir(), res.FileName), res.Size)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory (default: export.dir)")
	cmd.Flags().BoolVar(&publish, "publish", false, "Also copy the export to the configured targets")
	return cmd
}

func deleteCommand(settings *conf.Settings) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withStore(ctx, settings, func(store *datastore.Store) error {
				rec, err := store.Get(ctx, args[0])
				if err != nil {
					return err
				}
				if !yes && !confirm(cmd.InOrStdin(), cmd.OutOrStdout(), fmt.Sprintf("Delete %s? This cannot be undone.", rec.Name)) {
					_, err := fmt.Fprintln(cmd.OutOrStdout(), "Cancelled")
					return err
				}

				if _, err := store.Delete(ctx, rec.ID); err != nil {
					return err
				}
				app.GetLogger().Info("record deleted",
					logger.String("record_id", rec.ID),
					logger.String("name", rec.Name))
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", rec.Name)
				return err
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Delete without asking")
	return cmd
}

// confirm asks a yes/no question and reports whether the answer was yes
func confirm(in io.Reader, out io.Writer, question string) bool {
	_, _ = fmt.Fprintf(out, "%s [y/N] ", question)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
