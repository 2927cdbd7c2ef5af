// Package config loads the planner's tuning parameters from JSON.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/pathtrack/internal/units"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig represents the root configuration for tuning parameters.
// Fields are pointers so that a partial JSON file only overrides what it
// names; the Get* methods supply defaults for the rest.
type TuningConfig struct {
	// Planner params
	PublishRateHz  *float64 `json:"publish_rate_hz,omitempty"`
	LookaheadCount *int     `json:"lookahead_count,omitempty"`
	MaxDecel       *float64 `json:"max_decel,omitempty"`       // m/s^2
	StopLineMargin *int     `json:"stop_line_margin,omitempty"` // waypoints
	CreepSpeed     *float64 `json:"creep_speed,omitempty"`      // m/s

	// Telemetry params
	RecordInterval *string `json:"record_interval,omitempty"` // duration string like "1s"

	// Display params
	Units *string `json:"units,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. The file must have
// a .json extension and stay under the max file size. Fields omitted from
// the JSON retain their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.PublishRateHz != nil && *c.PublishRateHz <= 0 {
		return fmt.Errorf("publish_rate_hz must be positive, got %f", *c.PublishRateHz)
	}

	if c.LookaheadCount != nil && *c.LookaheadCount < 1 {
		return fmt.Errorf("lookahead_count must be at least 1, got %d", *c.LookaheadCount)
	}

	if c.MaxDecel != nil && *c.MaxDecel <= 0 {
		return fmt.Errorf("max_decel must be positive, got %f", *c.MaxDecel)
	}

	if c.StopLineMargin != nil && *c.StopLineMargin < 0 {
		return fmt.Errorf("stop_line_margin must be non-negative, got %d", *c.StopLineMargin)
	}

	if c.RecordInterval != nil && *c.RecordInterval != "" {
		if _, err := time.ParseDuration(*c.RecordInterval); err != nil {
			return fmt.Errorf("invalid record_interval '%s': %w", *c.RecordInterval, err)
		}
	}

	if c.Units != nil && !units.IsValid(*c.Units) {
		return fmt.Errorf("invalid units %q: expected one of %s", *c.Units, units.GetValidUnitsString())
	}

	return nil
}

// GetPublishRateHz returns the publish_rate_hz value or the default.
func (c *TuningConfig) GetPublishRateHz() float64 {
	if c.PublishRateHz == nil {
		return 30.0
	}
	return *c.PublishRateHz
}

// GetLookaheadCount returns the lookahead_count value or the default.
func (c *TuningConfig) GetLookaheadCount() int {
	if c.LookaheadCount == nil {
		return 100
	}
	return *c.LookaheadCount
}

// GetMaxDecel returns the max_decel value or the default.
func (c *TuningConfig) GetMaxDecel() float64 {
	if c.MaxDecel == nil {
		return 0.5
	}
	return *c.MaxDecel
}

// GetStopLineMargin returns the stop_line_margin value or the default.
func (c *TuningConfig) GetStopLineMargin() int {
	if c.StopLineMargin == nil {
		return 4
	}
	return *c.StopLineMargin
}

// GetCreepSpeed returns the creep_speed value or the default.
func (c *TuningConfig) GetCreepSpeed() float64 {
	if c.CreepSpeed == nil {
		return 1.0
	}
	return *c.CreepSpeed
}

// GetRecordInterval parses and returns the RecordInterval as a time.Duration.
func (c *TuningConfig) GetRecordInterval() time.Duration {
	if c.RecordInterval == nil || *c.RecordInterval == "" {
		return time.Second // default
	}
	d, err := time.ParseDuration(*c.RecordInterval)
	if err != nil {
		return time.Second // default on parse error
	}
	return d
}

// GetUnits returns the units value or the default.
func (c *TuningConfig) GetUnits() string {
	if c.Units == nil {
		return units.MPS
	}
	return *c.Units
}
