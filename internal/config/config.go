package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Retention configures the per-symbol tick metadata window (spec §5).
type Retention struct {
	MaxTicksPerSymbol int           `yaml:"max_ticks_per_symbol"`
	Window            time.Duration `yaml:"window"`
}

// Batch configures the flush scheduler's batching policy (spec §4.6).
type Batch struct {
	HighWatermark   int           `yaml:"high_watermark"`
	MaxAge          time.Duration `yaml:"max_age"`
	PrioritySymbols []string      `yaml:"priority_symbols"`
	FlushInterval   time.Duration `yaml:"flush_interval"`
}

// Backoff configures the sink resilience wrapper's backoff gate (spec §4.9).
type Backoff struct {
	Base         time.Duration `yaml:"base"`
	Max          time.Duration `yaml:"max"`
	WarnEveryNth int           `yaml:"warn_every_nth"`
}

// FlushPolicy selects between the two behaviors spec.md §9 documents for
// what happens to a drained batch when the resilience gate is closed.
type FlushPolicy string

const (
	// FlushPolicyPeekThenCommit only drains the coalescing buffer once the
	// resilience gate has confirmed it will accept the call. This is the
	// spec's recommended default — see SPEC_FULL.md.
	FlushPolicyPeekThenCommit FlushPolicy = "peek_then_commit"
	// FlushPolicyDiscardOnSkip drains unconditionally and discards the
	// batch when the sink call is skipped, mirroring the original
	// source's behavior. spec.md permits either policy.
	FlushPolicyDiscardOnSkip FlushPolicy = "discard_on_skip"
)

// Root is the full recognized configuration surface (spec.md §6). It is an
// abstract option set — no environment variable convention is prescribed.
type Root struct {
	StaleThreshold    time.Duration `yaml:"stale_threshold"`
	Retention         Retention     `yaml:"retention"`
	Batch             Batch         `yaml:"batch"`
	Backoff           Backoff       `yaml:"backoff"`
	FlushPolicy       FlushPolicy   `yaml:"flush_policy"`
	GracefulShutdown  time.Duration `yaml:"graceful_shutdown"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
}

// Load reads and validates a YAML config file, filling unset fields with
// the defaults from spec.md §6.
func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return c, err
	}
	applyDefaults(&c)
	return c, Validate(c)
}

func applyDefaults(c *Root) {
	if c.StaleThreshold == 0 {
		c.StaleThreshold = 5 * time.Second
	}
	if c.Retention.MaxTicksPerSymbol == 0 {
		c.Retention.MaxTicksPerSymbol = 100
	}
	if c.Retention.Window == 0 {
		c.Retention.Window = 5 * time.Minute
	}
	if c.Batch.HighWatermark == 0 {
		c.Batch.HighWatermark = 100
	}
	if c.Batch.MaxAge == 0 {
		c.Batch.MaxAge = time.Second
	}
	if c.Batch.FlushInterval == 0 {
		c.Batch.FlushInterval = 100 * time.Millisecond
	}
	if c.Backoff.Base == 0 {
		c.Backoff.Base = 500 * time.Millisecond
	}
	if c.Backoff.Max == 0 {
		c.Backoff.Max = 30 * time.Second
	}
	if c.Backoff.WarnEveryNth == 0 {
		c.Backoff.WarnEveryNth = 5
	}
	if c.FlushPolicy == "" {
		c.FlushPolicy = FlushPolicyPeekThenCommit
	}
	if c.GracefulShutdown == 0 {
		c.GracefulShutdown = 300 * time.Millisecond
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = time.Second
	}
}

// Validate enforces the ranges and cross-field constraints from spec.md §6.
// A non-nil error here is a config-invalid condition (exit code 2).
func Validate(c Root) error {
	if c.StaleThreshold < time.Second || c.StaleThreshold > 5*time.Minute {
		return fmt.Errorf("stale_threshold %v out of range [1s, 5m]", c.StaleThreshold)
	}
	if c.Batch.HighWatermark < 1 || c.Batch.HighWatermark > 10000 {
		return fmt.Errorf("batch.high_watermark %d out of range [1, 10000]", c.Batch.HighWatermark)
	}
	if c.Batch.MaxAge < 10*time.Millisecond || c.Batch.MaxAge > 60*time.Second {
		return fmt.Errorf("batch.max_age %v out of range [10ms, 60s]", c.Batch.MaxAge)
	}
	if c.Batch.MaxAge >= c.StaleThreshold {
		return fmt.Errorf("batch.max_age %v must be strictly less than stale_threshold %v", c.Batch.MaxAge, c.StaleThreshold)
	}
	if c.Retention.MaxTicksPerSymbol < 1 || c.Retention.MaxTicksPerSymbol > 1000 {
		return fmt.Errorf("retention.max_ticks_per_symbol %d out of range [1, 1000]", c.Retention.MaxTicksPerSymbol)
	}
	if c.Retention.Window < time.Minute || c.Retention.Window > 10*time.Hour {
		return fmt.Errorf("retention.window %v out of range [1m, 10h]", c.Retention.Window)
	}
	if c.FlushPolicy != FlushPolicyPeekThenCommit && c.FlushPolicy != FlushPolicyDiscardOnSkip {
		return fmt.Errorf("flush_policy %q must be %q or %q", c.FlushPolicy, FlushPolicyPeekThenCommit, FlushPolicyDiscardOnSkip)
	}
	return nil
}
