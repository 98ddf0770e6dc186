package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ethanbaker/avatar-client/internal/report"
	"github.com/ethanbaker/avatar-client/pkg/evaluation"
	"github.com/ethanbaker/avatar-client/pkg/transcript"
	"github.com/spf13/cobra"
)

func newEvaluateCommand(opts *rootOptions) *cobra.Command {
	var room string
	var file string
	var format string

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate a conversation without joining a call",
		Long: `Evaluate a conversation without joining a call.

With no flags the backend's computed evaluation is fetched. Use --room to
fetch the stored transcript of a room first, or --file to read a transcript
(a JSON array of {"role", "message", "timestamp"} entries, "-" for stdin).
The transcript is submitted when no computed evaluation is ready.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if room != "" && file != "" {
				return fmt.Errorf("--room and --file cannot be used together")
			}

			s, err := loadSettings(opts)
			if err != nil {
				return err
			}
			client := newBackendClient(s)

			var entries []transcript.Entry
			switch {
			case room != "":
				history, err := client.FetchHistory(cmd.Context(), room)
				if err != nil {
					return fmt.Errorf("failed to fetch transcript for room '%s': %w", room, err)
				}
				entries = history.Transcript

			case file != "":
				entries, err = readTranscript(cmd.InOrStdin(), file)
				if err != nil {
					return err
				}
			}

			outcome, err := evaluation.NewRetriever(client, &s.Evaluation).Resolve(cmd.Context(), entries)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := writeDocument(out, report.Build(outcome, entries), format, terminalWidth(out)); err != nil {
				return err
			}

			if outcome.Kind == evaluation.OutcomeError {
				return &SessionFailedError{Message: outcome.Message}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&room, "room", "", "Fetch the transcript of this room from the backend")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read the transcript from a JSON file ('-' for stdin)")
	cmd.Flags().StringVarP(&format, "format", "o", "text", "Output format: text, markdown, html or json")

	return cmd
}

// readTranscript decodes a JSON transcript from path, or from stdin when path is "-"
func readTranscript(stdin io.Reader, path string) ([]transcript.Entry, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	var entries []transcript.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse transcript: %w", err)
	}
	return entries, nil
}
