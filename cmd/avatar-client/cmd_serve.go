package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethanbaker/avatar-client/internal/api"
	"github.com/spf13/cobra"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session API for a browser front end",
		Long: `Serve the session API for a browser front end.

The API exposes one session controller under /api/session: actions to connect,
leave, toggle the microphone and start a new session, the live transcript, the
evaluation report in json, markdown, html or text, and a websocket stream of
every change at /api/session/stream. Finished sessions are listed under
/api/reports.

Set API_KEY to require the X-API-KEY header on everything except /api/health.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := loadSettings(opts)
			if err != nil {
				return err
			}
			if port != "" {
				s.API.Port = port
			}

			store, err := openArchive(s)
			if err != nil {
				return err
			}
			defer store.Close()

			ctrl, err := newController(s, store)
			if err != nil {
				return err
			}
			defer ctrl.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			fmt.Fprintf(os.Stderr, "Session API listening on :%s\n", s.API.Port)
			return api.Start(ctx, &s.API, api.Dependencies{Session: ctrl, Archive: store})
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Port to listen on (overrides API_PORT)")

	return cmd
}
