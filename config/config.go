// Package config loads and watches the runtime's configuration
// document — the enumerated options in §6 ("Configuration options"):
// context sizing, warmup behavior, compression thresholds and
// strategy, and loop-detection tuning.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-yaml"
)

// WarmupConfig groups the `llm.warmup.*` options.
type WarmupConfig struct {
	Enabled     bool          `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	MaxAttempts int           `yaml:"maxAttempts,omitempty" json:"maxAttempts,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// LLMConfig groups the `llm.*` options.
type LLMConfig struct {
	ContextSize               int          `yaml:"contextSize,omitempty" json:"contextSize,omitempty"`
	Warmup                    WarmupConfig `yaml:"warmup,omitempty" json:"warmup,omitempty"`
	ModeLinkedTemperature     bool         `yaml:"modeLinkedTemperature,omitempty" json:"modeLinkedTemperature,omitempty"`
	IncludeThinkingInContext  bool         `yaml:"includeThinkingInContext,omitempty" json:"includeThinkingInContext,omitempty"`
	ResumeAfterSummary        string       `yaml:"resumeAfterSummary,omitempty" json:"resumeAfterSummary,omitempty"`

	// ClearContextOnModelSwitch defaults to true (§6); a *bool
	// distinguishes "not set in the document" from an explicit false,
	// which a plain bool can't since both read as the zero value.
	ClearContextOnModelSwitch *bool `yaml:"clearContextOnModelSwitch,omitempty" json:"clearContextOnModelSwitch,omitempty"`
}

// ClearContextOnModelSwitch reports the effective value of
// LLM.ClearContextOnModelSwitch, applying its true default when unset.
func (c *Config) ClearContextOnModelSwitch() bool {
	return c.LLM.ClearContextOnModelSwitch == nil || *c.LLM.ClearContextOnModelSwitch
}

// CompressionConfig groups the `compression.*` options.
type CompressionConfig struct {
	Threshold        float64 `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	WarningThreshold float64 `yaml:"warningThreshold,omitempty" json:"warningThreshold,omitempty"`
	Strategy         string  `yaml:"strategy,omitempty" json:"strategy,omitempty"`
	PreserveRecent   int     `yaml:"preserveRecent,omitempty" json:"preserveRecent,omitempty"`
}

// LoopDetectionConfig groups the `loopDetection.*` options.
type LoopDetectionConfig struct {
	Enabled         bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`
	MaxTurns        int  `yaml:"maxTurns,omitempty" json:"maxTurns,omitempty"`
	RepeatThreshold int  `yaml:"repeatThreshold,omitempty" json:"repeatThreshold,omitempty"`
}

// Config is the complete configuration document (§6).
type Config struct {
	LLM           LLMConfig           `yaml:"llm,omitempty" json:"llm,omitempty"`
	Compression   CompressionConfig   `yaml:"compression,omitempty" json:"compression,omitempty"`
	LoopDetection LoopDetectionConfig `yaml:"loopDetection,omitempty" json:"loopDetection,omitempty"`
}

// ApplyDefaults fills every unset option with its spec-mandated
// default, so a caller can load a config document that only overrides
// the handful of options it cares about (§6's per-option defaults:
// `compression.threshold` 0.85, `compression.warningThreshold` 0.70).
// `llm.clearContextOnModelSwitch`'s default is handled separately by
// the ClearContextOnModelSwitch accessor, since its true default can't
// be expressed as a plain bool zero value.
func (c *Config) ApplyDefaults() {
	if c.LLM.Warmup.MaxAttempts == 0 {
		c.LLM.Warmup.MaxAttempts = 3
	}
	if c.LLM.Warmup.Timeout == 0 {
		c.LLM.Warmup.Timeout = 30 * time.Second
	}
	if c.LLM.ResumeAfterSummary == "" {
		c.LLM.ResumeAfterSummary = "auto"
	}
	if c.Compression.Threshold == 0 {
		c.Compression.Threshold = 0.85
	}
	if c.Compression.WarningThreshold == 0 {
		c.Compression.WarningThreshold = 0.70
	}
	if c.Compression.Strategy == "" {
		c.Compression.Strategy = "standard"
	}
	if c.LoopDetection.MaxTurns == 0 {
		c.LoopDetection.MaxTurns = 25
	}
	if c.LoopDetection.RepeatThreshold == 0 {
		c.LoopDetection.RepeatThreshold = 3
	}
}

// Validate reports a configuration error for any option outside its
// documented range, rather than silently clamping it.
func (c *Config) Validate() error {
	if c.Compression.Threshold < 0 || c.Compression.Threshold > 1 {
		return fmt.Errorf("config: compression.threshold must be in [0,1], got %v", c.Compression.Threshold)
	}
	if c.Compression.WarningThreshold < 0 || c.Compression.WarningThreshold > 1 {
		return fmt.Errorf("config: compression.warningThreshold must be in [0,1], got %v", c.Compression.WarningThreshold)
	}
	switch c.Compression.Strategy {
	case "", "standard", "aggressive", "selective", "emergency", "recommend":
	default:
		return fmt.Errorf("config: compression.strategy %q is not one of standard/aggressive/selective/emergency/recommend", c.Compression.Strategy)
	}
	switch c.LLM.ResumeAfterSummary {
	case "", "auto", "ask":
	default:
		return fmt.Errorf("config: llm.resumeAfterSummary %q is not one of auto/ask", c.LLM.ResumeAfterSummary)
	}
	return nil
}

// ParseFile loads a Config from path, using its extension to pick
// between YAML and JSON, mirroring the teacher config package's
// format-by-extension dispatch.
func ParseFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yml", ".yaml":
		return ParseYAML(data)
	case ".json":
		return ParseJSON(data)
	default:
		return nil, fmt.Errorf("config: unsupported file extension: %s", ext)
	}
}

// ParseYAML loads a Config from YAML bytes, rejecting unknown fields
// so a typo in a config document surfaces as a load error rather than
// being silently ignored.
func ParseYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.Strict()); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseJSON loads a Config from JSON bytes.
func ParseJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Watcher watches a config file on disk and re-parses it on every
// write, delivering each successfully parsed Config on Changes().
// Parse errors are delivered on Errors() instead, leaving the last
// good Config in place — a malformed edit mid-save should never hand
// a caller a half-written config.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	changes chan *Config
	errs    chan error
}

// NewWatcher starts watching path's containing directory (so the
// watch survives editors that replace the file rather than writing it
// in place) for changes to path.
func NewWatcher(path string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: failed to create watcher: %w", err)
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: failed to watch %s: %w", dir, err)
	}
	return &Watcher{
		path:    filepath.Clean(path),
		watcher: fsw,
		changes: make(chan *Config),
		errs:    make(chan error),
	}, nil
}

// Changes returns the channel of successfully reloaded configs.
func (w *Watcher) Changes() <-chan *Config { return w.changes }

// Errors returns the channel of reload failures (parse errors, or the
// underlying fsnotify watcher's own errors).
func (w *Watcher) Errors() <-chan error { return w.errs }

// Run drives the watch loop until ctx is canceled, closing the
// underlying fsnotify watcher and both channels on return.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	defer close(w.changes)
	defer close(w.errs)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			cfg, err := ParseFile(w.path)
			if err != nil {
				w.sendErr(ctx, err)
				continue
			}
			cfg.ApplyDefaults()
			if err := cfg.Validate(); err != nil {
				w.sendErr(ctx, err)
				continue
			}
			select {
			case w.changes <- cfg:
			case <-ctx.Done():
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.sendErr(ctx, err)
		}
	}
}

func (w *Watcher) sendErr(ctx context.Context, err error) {
	select {
	case w.errs <- err:
	case <-ctx.Done():
	}
}
