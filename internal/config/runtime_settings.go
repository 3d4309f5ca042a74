package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// RuntimeSettings is the operator-editable subset of Config kept in a JSON
// file under DATA_DIR. It is read once at startup and layered over the env.
type RuntimeSettings struct {
	Translator        string `json:"translator,omitempty"`
	TranslationModel  string `json:"translation_model,omitempty"`
	CleanupCron       string `json:"cleanup_cron,omitempty"`
	ArtifactRetention string `json:"artifact_retention,omitempty"`
}

// RuntimeSettingsFilePath resolves SETTINGS_FILE, defaulting next to the database.
func RuntimeSettingsFilePath(dataDir string) string {
	return getEnvString("SETTINGS_FILE", filepath.Join(dataDir, "settings.json"))
}

func (s RuntimeSettings) Validate() error {
	switch strings.ToLower(strings.TrimSpace(s.Translator)) {
	case "", ProviderLibreTranslate, ProviderOpenAI:
	default:
		return fmt.Errorf("unknown translator %q", s.Translator)
	}
	if s.CleanupCron != "" {
		if _, err := cron.ParseStandard(s.CleanupCron); err != nil {
			return fmt.Errorf("invalid cleanup_cron: %w", err)
		}
	}
	if s.ArtifactRetention != "" {
		d, err := time.ParseDuration(s.ArtifactRetention)
		if err != nil {
			return fmt.Errorf("invalid artifact_retention: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("artifact_retention must be positive")
		}
	}
	return nil
}

func (c *Config) RuntimeSettings() RuntimeSettings {
	return RuntimeSettings{
		Translator:        c.Translation.Provider,
		TranslationModel:  c.Translation.Model,
		CleanupCron:       c.Storage.CleanupCron,
		ArtifactRetention: c.Storage.Retention.String(),
	}
}

// WithRuntimeSettings overrides only the fields that are set.
func WithRuntimeSettings(settings RuntimeSettings) Option {
	return func(c *Config) {
		if v := strings.ToLower(strings.TrimSpace(settings.Translator)); v != "" {
			c.Translation.Provider = v
		}
		if v := strings.TrimSpace(settings.TranslationModel); v != "" {
			c.Translation.Model = v
		}
		if v := strings.TrimSpace(settings.CleanupCron); v != "" {
			c.Storage.CleanupCron = v
		}
		if d, err := time.ParseDuration(settings.ArtifactRetention); err == nil && d > 0 {
			c.Storage.Retention = d
		}
	}
}

func LoadRuntimeSettingsFile(path string) (RuntimeSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuntimeSettings{}, err
	}
	var settings RuntimeSettings
	if err := json.Unmarshal(data, &settings); err != nil {
		return RuntimeSettings{}, fmt.Errorf("invalid settings file: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return RuntimeSettings{}, err
	}
	return settings, nil
}

func WriteRuntimeSettingsFile(path string, settings RuntimeSettings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	content, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	content = append(content, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
