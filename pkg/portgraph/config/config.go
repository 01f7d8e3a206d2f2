// Package config loads portgraph engine settings.
//
// Config wraps a decoded YAML or JSON document and offers typed accessors
// that fall back to a default when a key is missing or has the wrong type.
// LoadEngine turns a document into the Engine settings used by the CLI.
//
//	cfg, err := config.FromFile("portgraph.yaml")
//	if err != nil {
//	    return err
//	}
//	eng := config.LoadEngine(cfg)
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is a read-only view over a decoded document.
type Config struct {
	data map[string]any
}

// New wraps data. A nil map yields an empty Config.
func New(data map[string]any) Config {
	if data == nil {
		data = map[string]any{}
	}
	return Config{data: data}
}

// String returns the string at key, or def.
func (c Config) String(key, def string) string {
	if s, ok := c.data[key].(string); ok {
		return s
	}
	return def
}

// Bool returns the bool at key, or def.
func (c Config) Bool(key string, def bool) bool {
	if b, ok := c.data[key].(bool); ok {
		return b
	}
	return def
}

// Int returns the integer at key, or def. Whole floats (as produced by JSON)
// are accepted.
func (c Config) Int(key string, def int) int {
	switch v := c.data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		if v == float64(int(v)) {
			return int(v)
		}
	}
	return def
}

// Duration returns the duration at key, or def. Strings are parsed with
// time.ParseDuration and numbers are seconds.
func (c Config) Duration(key string, def time.Duration) time.Duration {
	switch v := c.data[key].(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	case int:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	}
	return def
}

// Sub returns the nested document at key, or an empty Config.
func (c Config) Sub(key string) Config {
	if m, ok := c.data[key].(map[string]any); ok {
		return New(m)
	}
	return New(nil)
}

// Has reports whether key is present.
func (c Config) Has(key string) bool {
	_, ok := c.data[key]
	return ok
}

// FromFile loads a .yaml, .yml or .json file.
func FromFile(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return FromYAML(raw)
	case ".json":
		return FromJSON(raw)
	default:
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}
}

// FromYAML decodes a YAML document.
func FromYAML(raw []byte) (Config, error) {
	var m map[string]any
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON decodes a JSON document.
func FromJSON(raw []byte) (Config, error) {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}

// Engine holds the settings the CLI and embedding programs apply to nodes.
type Engine struct {
	// StrictHints enables hint checks on channel values.
	StrictHints bool
	// MaxSignalDepth bounds push chains.
	MaxSignalDepth int
	// ExecutorWorkers sizes the executor pool; 0 runs nodes inline.
	ExecutorWorkers int
	// StoragePath is the SQLite snapshot database; empty keeps snapshots in memory.
	StoragePath string
	// LogLevel is the minimum slog level.
	LogLevel slog.Level
	// SubmitTimeout bounds each computation run on the executor pool; 0 means no bound.
	SubmitTimeout time.Duration
}

// DefaultEngine returns the built-in settings.
func DefaultEngine() Engine {
	return Engine{
		StrictHints:    true,
		MaxSignalDepth: 1000,
		LogLevel:       slog.LevelInfo,
	}
}

// LoadEngine reads Engine settings from the "engine" section of cfg, keeping
// defaults for anything absent:
//
//	engine:
//	  strict_hints: true
//	  max_signal_depth: 500
//	  executor_workers: 4
//	  storage_path: ./snapshots.db
//	  log_level: debug
//	  submit_timeout: 30s
func LoadEngine(cfg Config) Engine {
	def := DefaultEngine()
	sec := cfg.Sub("engine")
	eng := Engine{
		StrictHints:     sec.Bool("strict_hints", def.StrictHints),
		MaxSignalDepth:  sec.Int("max_signal_depth", def.MaxSignalDepth),
		ExecutorWorkers: sec.Int("executor_workers", def.ExecutorWorkers),
		StoragePath:     sec.String("storage_path", def.StoragePath),
		LogLevel:        def.LogLevel,
		SubmitTimeout:   sec.Duration("submit_timeout", def.SubmitTimeout),
	}
	if lvl := sec.String("log_level", ""); lvl != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(lvl)); err == nil {
			eng.LogLevel = l
		}
	}
	return eng
}
