package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ethanbaker/avatar-client/internal/archive"
	"github.com/ethanbaker/avatar-client/internal/report"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newHistoryCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse finished sessions",
		Long: `Browse finished sessions kept in the archive.

Records are stored in MySQL when MYSQL_DATABASE is set.`,
	}

	cmd.AddCommand(newHistoryListCommand(opts))
	cmd.AddCommand(newHistoryShowCommand(opts))
	cmd.AddCommand(newHistoryDeleteCommand(opts))

	return cmd
}

func newHistoryListCommand(opts *rootOptions) *cobra.Command {
	var limit int
	var query string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List finished sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(opts, func(store archive.Store) error {
				var records []*archive.Record
				var err error
				if query != "" {
					records, err = store.Search(cmd.Context(), query)
				} else {
					records, err = store.List(cmd.Context(), limit)
				}
				if err != nil {
					return err
				}

				summaries := make([]archive.Summary, 0, len(records))
				for _, r := range records {
					summaries = append(summaries, r.Summarize())
				}

				if asJSON {
					return writeJSON(cmd.OutOrStdout(), summaries)
				}
				return writeSummaries(cmd.OutOrStdout(), summaries)
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", archive.DefaultListLimit, "Maximum number of records")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Only list records whose room, participant or transcript contains this text")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the list as JSON")

	return cmd
}

func newHistoryShowCommand(opts *rootOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show the report of a finished session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid record id '%s': %w", args[0], err)
			}

			return withArchive(opts, func(store archive.Store) error {
				record, err := store.Get(cmd.Context(), id)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				return writeDocument(out, report.Build(record.Outcome, record.Transcript), format, terminalWidth(out))
			})
		},
	}

	cmd.Flags().StringVarP(&format, "format", "o", "text", "Output format: text, markdown, html or json")

	return cmd
}

func newHistoryDeleteCommand(opts *rootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a finished session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid record id '%s': %w", args[0], err)
			}

			return withArchive(opts, func(store archive.Store) error {
				out := cmd.OutOrStdout()
				if !yes && !promptConfirm(cmd.InOrStdin(), out, fmt.Sprintf("Delete session %s?", id)) {
					fmt.Fprintln(out, "Aborted (use --yes to delete without asking)")
					return nil
				}

				if err := store.Delete(cmd.Context(), id); err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted session %s\n", id)
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Delete without asking")

	return cmd
}

// withArchive opens the archive for the duration of fn
func withArchive(opts *rootOptions, fn func(store archive.Store) error) error {
	s, err := loadSettings(opts)
	if err != nil {
		return err
	}
	if !s.Database.Enabled() {
		return errors.New("no database configured; set MYSQL_DATABASE to keep session history")
	}

	store, err := openArchive(s)
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(store)
}

// writeSummaries prints records as an aligned table
func writeSummaries(w io.Writer, summaries []archive.Summary) error {
	if len(summaries) == 0 {
		_, err := fmt.Fprintln(w, "No sessions found")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tROOM\tPARTICIPANT\tOUTCOME\tMESSAGES\tENDED")
	for _, s := range summaries {
		ended := "-"
		if !s.EndedAt.IsZero() {
			ended = s.EndedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\n", s.ID, s.Room, s.Participant, strings.ReplaceAll(string(s.Kind), "_", " "), s.Messages, ended)
	}
	return tw.Flush()
}
