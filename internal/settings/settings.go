package settings

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethanbaker/avatar-client/internal/archive"
	"github.com/ethanbaker/avatar-client/internal/provision"
	"github.com/ethanbaker/avatar-client/internal/session"
	"github.com/ethanbaker/avatar-client/pkg/evaluation"
	"github.com/ethanbaker/avatar-client/pkg/utils"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBackendURL  = "http://127.0.0.1:8000"
	DefaultLiveKitURL  = "wss://ai-recipe-6c5ylsht.livekit.cloud"
	DefaultAPIPort     = "8080"
	DefaultHTTPTimeout = 30 * time.Second
)

// Backend is the remote token/transcript/evaluation service
type Backend struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// API is the local view/control server
type API struct {
	Port           string   `yaml:"port"`
	Key            string   `yaml:"key"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// Settings is the full runtime configuration of the client
type Settings struct {
	Backend    Backend                `yaml:"backend"`
	Identity   string                 `yaml:"identity"`
	Session    session.Options        `yaml:"session"`
	Evaluation evaluation.Options     `yaml:"evaluation"`
	API        API                    `yaml:"api"`
	Database   archive.DatabaseConfig `yaml:"database"`
}

// Default returns settings that talk to a backend on localhost
func Default() *Settings {
	return &Settings{
		Backend: Backend{
			BaseURL: DefaultBackendURL,
			Timeout: DefaultHTTPTimeout,
		},
		Identity: provision.DefaultIdentity,
		Session: session.Options{
			LiveKitURL:        DefaultLiveKitURL,
			AgentIdentity:     session.DefaultAgentIdentity,
			SettleDelay:       session.DefaultSettleDelay,
			ReconcileSchedule: session.DefaultReconcileSchedule,
			RequestTimeout:    session.DefaultRequestTimeout,
		},
		Evaluation: evaluation.Options{
			MaxAttempts: evaluation.DefaultMaxAttempts,
			BackoffStep: evaluation.DefaultBackoffStep,
			SubmitMode:  evaluation.SubmitRaw,
		},
		API: API{
			Port:           DefaultAPIPort,
			AllowedOrigins: []string{"*"},
		},
	}
}

// Load builds settings from defaults, then the YAML file at path (if any), then the config values
func Load(cfg *utils.Config, path string) (*Settings, error) {
	s := Default()

	if path == "" {
		path = cfg.Get("SETTINGS_FILE")
	}
	if path != "" {
		if err := s.Overlay(path); err != nil {
			return nil, err
		}
	}

	s.Apply(cfg)

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Overlay reads a YAML file over the current values. Keys missing from the file are left alone
func (s *Settings) Overlay(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return fmt.Errorf("failed to parse settings file '%s': %w", path, err)
	}
	return nil
}

// Apply copies every configured key over the current values
func (s *Settings) Apply(cfg *utils.Config) {
	s.Backend.BaseURL = cfg.GetWithDefault("BACKEND_BASE_URL", s.Backend.BaseURL)
	s.Backend.APIKey = cfg.GetWithDefault("BACKEND_API_KEY", s.Backend.APIKey)
	s.Backend.Timeout = cfg.GetDurationWithDefault("HTTP_TIMEOUT", s.Backend.Timeout)

	s.Identity = cfg.GetWithDefault("PARTICIPANT_IDENTITY", s.Identity)

	s.Session.LiveKitURL = cfg.GetWithDefault("LIVEKIT_URL", s.Session.LiveKitURL)
	s.Session.AgentIdentity = cfg.GetWithDefault("AGENT_IDENTITY", s.Session.AgentIdentity)
	s.Session.SettleDelay = cfg.GetDurationWithDefault("SETTLE_DELAY", s.Session.SettleDelay)
	s.Session.ReconcileSchedule = cfg.GetWithDefault("RECONCILE_SCHEDULE", s.Session.ReconcileSchedule)
	s.Session.RequestTimeout = cfg.GetDurationWithDefault("REQUEST_TIMEOUT", s.Session.RequestTimeout)

	s.Evaluation.MaxAttempts = cfg.GetIntWithDefault("EVALUATION_MAX_ATTEMPTS", s.Evaluation.MaxAttempts)
	s.Evaluation.BackoffStep = cfg.GetDurationWithDefault("EVALUATION_BACKOFF_STEP", s.Evaluation.BackoffStep)
	s.Evaluation.SubmitMode = evaluation.SubmitMode(cfg.GetWithDefault("EVALUATION_SUBMIT_MODE", string(s.Evaluation.SubmitMode)))

	s.API.Port = cfg.GetWithDefault("API_PORT", s.API.Port)
	s.API.Key = cfg.GetWithDefault("API_KEY", s.API.Key)
	if origins := cfg.Get("CORS_ALLOWED_ORIGINS"); origins != "" {
		s.API.AllowedOrigins = splitList(origins)
	}

	s.Database.Username = cfg.GetWithDefault("MYSQL_USERNAME", s.Database.Username)
	s.Database.Password = cfg.GetWithDefault("MYSQL_PASSWORD", s.Database.Password)
	s.Database.Host = cfg.GetWithDefault("MYSQL_HOST", s.Database.Host)
	s.Database.Port = cfg.GetWithDefault("MYSQL_PORT", s.Database.Port)
	s.Database.Database = cfg.GetWithDefault("MYSQL_DATABASE", s.Database.Database)
}

// Validate rejects settings the client cannot run with
func (s *Settings) Validate() error {
	if s.Backend.BaseURL == "" {
		return fmt.Errorf("backend base url is not set")
	}
	if s.Evaluation.MaxAttempts < 1 {
		return fmt.Errorf("evaluation max attempts must be at least 1, got %d", s.Evaluation.MaxAttempts)
	}

	switch s.Evaluation.SubmitMode {
	case evaluation.SubmitRaw, evaluation.SubmitLegacy:
	default:
		return fmt.Errorf("unknown evaluation submit mode '%s'", s.Evaluation.SubmitMode)
	}

	return nil
}

func splitList(value string) []string {
	var out []string
	for part := range strings.SplitSeq(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
