// Package config resolves the runtime configuration of the match engine.
//
// A Config is built once (file + env + defaults), validated, and then treated as
// immutable. Saving settings produces a new Config through WithSettings which the
// engine swaps in atomically.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/mcdev12/battlescore/go/internal/models"
	"gopkg.in/yaml.v3"
)

// Gift describes the score value and playback effects of one gift kind.
type Gift struct {
	UnitScore    float64  `json:"unit_score" yaml:"unit_score"`
	EffectVideos []string `json:"effect_videos" yaml:"effect_videos"`
}

// PrimaryEffect returns the effect reference queued for each unit of this gift.
func (g Gift) PrimaryEffect() (string, bool) {
	if len(g.EffectVideos) == 0 || g.EffectVideos[0] == "" {
		return "", false
	}
	return g.EffectVideos[0], true
}

type TimerSettings struct {
	DefaultSeconds int `json:"default_seconds" yaml:"default_seconds"`
}

// SpeedChallengeSettings configures the notice/mission/bonus mini-event.
type SpeedChallengeSettings struct {
	NoticeSeconds  int     `json:"notice_seconds" yaml:"notice_seconds"`
	MissionSeconds int     `json:"mission_seconds" yaml:"mission_seconds"`
	BonusSeconds   int     `json:"bonus_seconds" yaml:"bonus_seconds"`
	AutoStart      bool    `json:"auto_start" yaml:"auto_start"`
	AutoStartTime  int     `json:"auto_start_time" yaml:"auto_start_time"`
	Magnification  float64 `json:"magnification" yaml:"magnification"`
}

// Settings is the operator-editable part of the configuration. It is persisted by
// the storage layer and overlaid on the base file config.
type Settings struct {
	Timer                  TimerSettings                `json:"timer" yaml:"timer"`
	Gifts                  map[string]Gift              `json:"gifts" yaml:"gifts"`
	SpeedChallenge         SpeedChallengeSettings       `json:"speed_challenge" yaml:"speed_challenge"`
	LastBonusMagnification float64                      `json:"last_bonus_magnification" yaml:"last_bonus_magnification"`
	MatchFormat            int                          `json:"match_format" yaml:"match_format"`
	MatchPlayers           map[string]models.PlayerSlot `json:"match_players" yaml:"match_players"`
}

type EffectQueueConfig struct {
	MaxQueueLength int `yaml:"max_queue_length"`
	MaxPushPerTick int `yaml:"max_push_per_tick"`
}

// AnnounceConfig holds the fixed delays of the speed challenge bonus announcement.
type AnnounceConfig struct {
	SuccessDelay    time.Duration `yaml:"success_delay"`
	BonusDelay      time.Duration `yaml:"bonus_delay"`
	HideNotifyDelay time.Duration `yaml:"hide_notify_delay"`
}

type DatabaseConfig struct {
	Enabled bool `yaml:"enabled"`
}

type NATSConfig struct {
	URL string `yaml:"url"`
	// ResultFeed turns on the gateway's JetStream consumer of relayed match records.
	ResultFeed bool `yaml:"result_feed"`
}

// Config is the resolved runtime configuration.
type Config struct {
	Port        string            `yaml:"port"`
	CORSOrigin  string            `yaml:"cors_origin"`
	TickMs      int               `yaml:"tick_ms"`
	EffectQueue EffectQueueConfig `yaml:"effect_queue"`
	Announce    AnnounceConfig    `yaml:"announce"`
	Database    DatabaseConfig    `yaml:"database"`
	NATS        NATSConfig        `yaml:"nats"`
	Settings    `yaml:",inline"`

	giftKeys []string
}

// DefaultSettings mirrors the seed settings written on first start.
func DefaultSettings() Settings {
	return Settings{
		Timer: TimerSettings{DefaultSeconds: 360},
		Gifts: defaultGifts(),
		SpeedChallenge: SpeedChallengeSettings{
			NoticeSeconds:  30,
			MissionSeconds: 60,
			BonusSeconds:   60,
			AutoStart:      true,
			AutoStartTime:  240,
			Magnification:  3,
		},
		LastBonusMagnification: 5,
		MatchFormat:            1,
		MatchPlayers:           defaultMatchPlayers(),
	}
}

func defaultGifts() map[string]Gift {
	return map[string]Gift{
		"Gift01": {UnitScore: 10},
		"Gift02": {UnitScore: 30},
		"Gift03": {UnitScore: 100},
		"Gift04": {UnitScore: 300},
	}
}

func defaultMatchPlayers() map[string]models.PlayerSlot {
	return map[string]models.PlayerSlot{
		"player01": {},
		"player02": {},
		"player03": {},
		"player04": {},
	}
}

// Default returns a fully resolved Config with no file or env input.
func Default() *Config {
	cfg := baseDefaults()
	cfg.Settings = DefaultSettings()
	cfg.resolve()
	return cfg
}

func baseDefaults() *Config {
	return &Config{
		Port:       "8088",
		CORSOrigin: "*",
		TickMs:     250,
		EffectQueue: EffectQueueConfig{
			MaxQueueLength: 200,
			MaxPushPerTick: 20,
		},
		Announce: AnnounceConfig{
			SuccessDelay:    3 * time.Second,
			BonusDelay:      2 * time.Second,
			HideNotifyDelay: 5 * time.Second,
		},
		NATS: NATSConfig{URL: "nats://localhost:4222"},
	}
}

// Load reads the YAML file at path (a missing file falls back to defaults),
// applies env overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := baseDefaults()
	defaults := DefaultSettings()
	cfg.Timer = defaults.Timer
	cfg.SpeedChallenge = defaults.SpeedChallenge
	cfg.LastBonusMagnification = defaults.LastBonusMagnification
	cfg.MatchFormat = defaults.MatchFormat

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// maps are filled only when the file left them out so a file can shrink the gift table
	if cfg.Gifts == nil {
		cfg.Gifts = defaults.Gifts
	}
	if cfg.MatchPlayers == nil {
		cfg.MatchPlayers = defaults.MatchPlayers
	}

	applyEnv(cfg)
	cfg.resolve()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.CORSOrigin = getEnv("CORS_ORIGIN", cfg.CORSOrigin)
	cfg.TickMs = getEnvAsInt("TICK_MS", cfg.TickMs)
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	cfg.NATS.ResultFeed = getEnvAsBool("NATS_RESULT_FEED", cfg.NATS.ResultFeed)
	cfg.Database.Enabled = getEnvAsBool("DB_ENABLED", cfg.Database.Enabled)
}

func (c *Config) resolve() {
	keys := make([]string, 0, len(c.Gifts))
	for k := range c.Gifts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	c.giftKeys = keys
}

// Validate reports every problem found, joined.
func (c *Config) Validate() error {
	var errs []error
	if c.TickMs <= 0 {
		errs = append(errs, fmt.Errorf("tick_ms must be positive, got %d", c.TickMs))
	}
	if c.EffectQueue.MaxQueueLength < 0 {
		errs = append(errs, fmt.Errorf("effect_queue.max_queue_length must not be negative"))
	}
	if c.EffectQueue.MaxPushPerTick < 0 {
		errs = append(errs, fmt.Errorf("effect_queue.max_push_per_tick must not be negative"))
	}
	if c.Announce.SuccessDelay < 0 || c.Announce.BonusDelay < 0 || c.Announce.HideNotifyDelay < 0 {
		errs = append(errs, errors.New("announce delays must not be negative"))
	}
	if err := c.Settings.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Validate checks the operator-editable settings.
func (s Settings) Validate() error {
	var errs []error
	if s.Timer.DefaultSeconds < 0 {
		errs = append(errs, errors.New("timer.default_seconds must not be negative"))
	}
	sc := s.SpeedChallenge
	if sc.NoticeSeconds < 0 || sc.MissionSeconds < 0 || sc.BonusSeconds < 0 || sc.AutoStartTime < 0 {
		errs = append(errs, errors.New("speed_challenge durations must not be negative"))
	}
	if !isPositive(sc.Magnification) {
		errs = append(errs, fmt.Errorf("speed_challenge.magnification must be positive, got %v", sc.Magnification))
	}
	if s.LastBonusMagnification != 0 && !isPositive(s.LastBonusMagnification) {
		errs = append(errs, fmt.Errorf("last_bonus_magnification must be positive, got %v", s.LastBonusMagnification))
	}
	for key, g := range s.Gifts {
		if math.IsNaN(g.UnitScore) || math.IsInf(g.UnitScore, 0) || g.UnitScore < 0 {
			errs = append(errs, fmt.Errorf("gift %s: unit_score must be a non-negative number", key))
		}
	}
	return errors.Join(errs...)
}

// WithSettings returns a copy of c with s overlaid. c is left untouched.
func (c *Config) WithSettings(s Settings) (*Config, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	next := *c
	next.Settings = s
	if next.Gifts == nil {
		next.Gifts = map[string]Gift{}
	}
	if next.MatchPlayers == nil {
		next.MatchPlayers = map[string]models.PlayerSlot{}
	}
	next.resolve()
	return &next, nil
}

// TickInterval is the period of the broadcast scheduler.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickMs) * time.Millisecond
}

// GiftKeys returns the configured gift ids, sorted.
func (c *Config) GiftKeys() []string {
	return c.giftKeys
}

// Gift looks up a gift; unknown ids score 0 and carry no effect.
func (c *Config) Gift(key string) Gift {
	return c.Gifts[key]
}

func isPositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
