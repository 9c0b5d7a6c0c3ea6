// Package config loads the bridge server settings from the environment.
package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds the server settings. Command line flags override them.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `env:"PVBRIDGE_ADDR" envDefault:":8080"`
	// DefinitionsDir receives a copy of every registered definition and
	// layout. Empty disables the copy.
	DefinitionsDir string `env:"PVBRIDGE_DEFINITIONS_DIR"`
	// JournalDSN is the SQLite data source of the commit journal. Empty
	// keeps the journal in memory.
	JournalDSN string `env:"PVBRIDGE_JOURNAL_DSN"`
	// UIAdvanced starts the UI with advanced properties shown.
	UIAdvanced bool `env:"PVBRIDGE_UI_ADVANCED" envDefault:"false"`
	// EventBuffer is the event bus channel size.
	EventBuffer int `env:"PVBRIDGE_EVENT_BUFFER" envDefault:"256"`
	// LoopQueue is the dispatch loop queue size.
	LoopQueue int `env:"PVBRIDGE_LOOP_QUEUE" envDefault:"64"`
}

// Load parses the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("config: listen address is required")
	}
	if c.EventBuffer < 1 {
		return fmt.Errorf("config: event buffer must be positive, got %d", c.EventBuffer)
	}
	if c.LoopQueue < 1 {
		return fmt.Errorf("config: loop queue must be positive, got %d", c.LoopQueue)
	}
	return nil
}
