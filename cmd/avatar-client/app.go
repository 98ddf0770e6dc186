package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/ethanbaker/avatar-client/internal/archive"
	"github.com/ethanbaker/avatar-client/internal/provision"
	"github.com/ethanbaker/avatar-client/internal/report"
	"github.com/ethanbaker/avatar-client/internal/rtc"
	"github.com/ethanbaker/avatar-client/internal/session"
	"github.com/ethanbaker/avatar-client/internal/settings"
	"github.com/ethanbaker/avatar-client/pkg/evaluation"
	"github.com/ethanbaker/avatar-client/pkg/sdk"
	"github.com/ethanbaker/avatar-client/pkg/utils"
)

// openArchive is a test hook for replacing the archive store in tests
var openArchive = defaultOpenArchive

// loadSettings reads the env file and settings file named by the root flags
func loadSettings(opts *rootOptions) (*settings.Settings, error) {
	envFile := opts.envFile
	if envFile == "" {
		envFile = utils.EnvFile()
	}

	s, err := settings.Load(utils.NewConfigFromEnv(envFile), opts.settingsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return s, nil
}

// newBackendClient creates the backend client for the settings
func newBackendClient(s *settings.Settings) *sdk.Client {
	return sdk.NewClient(s.Backend.BaseURL, s.Backend.APIKey, sdk.WithTimeout(s.Backend.Timeout))
}

// defaultOpenArchive opens the MySQL archive when a database is configured. Without
// one, records are kept in memory for the life of the process
func defaultOpenArchive(s *settings.Settings) (archive.Store, error) {
	if !s.Database.Enabled() {
		log.Println("[ARCHIVE]: No database configured, keeping session records in memory")
		return archive.NewMemoryStore(), nil
	}

	store, err := archive.NewMySqlStore(s.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	return store, nil
}

// newController wires the backend client, provisioner, transport and retriever into a
// session controller
func newController(s *settings.Settings, store archive.Store) (*session.Controller, error) {
	client := newBackendClient(s)

	ctrl, err := session.NewController(&s.Session, session.Dependencies{
		Provisioner: provision.NewProvisioner(client, s.Identity),
		Transport:   rtc.NewLiveKit(),
		History:     client,
		Evaluator:   evaluation.NewRetriever(client, &s.Evaluation),
		Archive:     store,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session controller: %w", err)
	}
	return ctrl, nil
}

// writeDocument writes a report document in the given format
func writeDocument(w io.Writer, doc *report.Document, format string, width int) error {
	switch strings.ToLower(format) {
	case "", "text":
		return doc.WriteTerminal(w, width)

	case "markdown", "md":
		_, err := io.WriteString(w, doc.Markdown())
		return err

	case "html":
		html, err := doc.HTML()
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, html)
		return err

	case "json":
		return writeJSON(w, doc)

	default:
		return fmt.Errorf("unknown format '%s' (expected text, markdown, html or json)", format)
	}
}

// writeJSON writes v as indented JSON
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
