package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-flowmap/internal/flow"
)

// SettingsService persists the visual settings as YAML in the data directory.
type SettingsService struct {
	dataDir  string
	validate *validator.Validate
	mu       sync.RWMutex
	settings flow.Settings
}

// NewSettingsService loads settings.yaml from dataDir, falling back to the
// defaults when the file does not exist.
func NewSettingsService(dataDir string) (*SettingsService, error) {
	s := &SettingsService{
		dataDir:  dataDir,
		validate: validator.New(),
		settings: flow.DefaultSettings(),
	}
	if err := s.loadFromDisk(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get returns the current settings.
func (s *SettingsService) Get() flow.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.settings
}

// Validate checks settings against their struct tags.
func (s *SettingsService) Validate(settings flow.Settings) error {
	if err := s.validate.Struct(settings); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}
	return nil
}

// Update validates and stores new settings. The in-memory settings only
// change once they are persisted.
func (s *SettingsService) Update(settings flow.Settings) (flow.Settings, error) {
	if err := s.Validate(settings); err != nil {
		return flow.Settings{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.saveToDisk(settings); err != nil {
		return flow.Settings{}, fmt.Errorf("save settings: %w", err)
	}
	s.settings = settings
	return settings, nil
}

// configFile returns the path to the settings file.
func (s *SettingsService) configFile() string {
	return filepath.Join(s.dataDir, "settings.yaml")
}

// loadFromDisk reads settings.yaml over the defaults.
func (s *SettingsService) loadFromDisk() error {
	if s.dataDir == "" {
		return nil
	}
	data, err := os.ReadFile(s.configFile())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	settings := flow.DefaultSettings()
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return fmt.Errorf("parse settings: %w", err)
	}
	if err := s.Validate(settings); err != nil {
		return err
	}
	s.settings = settings
	return nil
}

// saveToDisk persists settings to disk.
func (s *SettingsService) saveToDisk(settings flow.Settings) error {
	if s.dataDir == "" {
		return nil
	}
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return err
	}
	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	return os.WriteFile(s.configFile(), data, 0644)
}
