// Package config provides the configuration structure for the otto service.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/pelletier/go-toml/v2"
)

// Asset sources for voicebank clips.
const (
	AssetSourceDir  = "dir"
	AssetSourceNATS = "nats"
)

// Defaults applied to fields left empty in project.toml.
const (
	defaultVoicebankPath  = "voicebank.yaml"
	defaultAssetsDir      = "assets"
	defaultPinyinStyle    = "normal"
	defaultHost           = "127.0.0.1"
	defaultRateLimit      = 20.0
	defaultRateBurst      = 40
	defaultMaxTextRunes   = 2000
	defaultTimeoutSeconds = 30
	defaultSubject        = "text.processed"
	defaultQueue          = "otto-workers"
	defaultTextBucket     = "TEXT_FILES"
	defaultAudioBucket    = "AUDIO_FILES"
	defaultClipBucket     = "OTTO_CLIPS"
	defaultLogsDir        = "logs"
	defaultOutputDir      = "output"
	maxPort               = 65535
)

const (
	errFmtLoad     = "failed to load configuration from configurator: %w"
	errFmtReadFile = "failed to read configuration file %s: %w"
	errFmtDecode   = "failed to decode configuration file %s: %w"
	errFmtField    = "%w: %s"
)

// ErrInvalidConfig is returned when a loaded configuration fails validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// OttoConfig holds the synthesis settings.
type OttoConfig struct {
	VoicebankPath string `toml:"voicebank_path"`
	AssetsDir     string `toml:"assets_dir"`
	AssetSource   string `toml:"asset_source"`
	PinyinStyle   string `toml:"pinyin_style"`
	Seed          uint64 `toml:"seed"`
	ReadNumbers   bool   `toml:"read_numbers"`
}

// HTTPConfig holds the HTTP server settings. A zero Port means the port
// declared by the voicebank.
type HTTPConfig struct {
	Host           string  `toml:"host"`
	Port           int     `toml:"port"`
	RateLimit      float64 `toml:"rate_limit"`
	RateBurst      int     `toml:"rate_burst"`
	MaxTextRunes   int     `toml:"max_text_runes"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// NATSConfig holds the configuration for NATS. An empty URL disables the worker.
type NATSConfig struct {
	URL                  string `toml:"url"`
	TextProcessedSubject string `toml:"text_processed_subject"`
	QueueGroup           string `toml:"queue_group"`
	TextObjectStore      string `toml:"text_object_store_bucket"`
	AudioObjectStore     string `toml:"audio_object_store_bucket"`
	ClipObjectStore      string `toml:"clip_object_store_bucket"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	OutputDir   string `toml:"output_dir"`
}

// Config is the root configuration structure.
type Config struct {
	Otto  OttoConfig  `toml:"otto"`
	HTTP  HTTPConfig  `toml:"http"`
	NATS  NATSConfig  `toml:"nats"`
	Paths PathsConfig `toml:"paths"`
}

// Load loads project.toml through the configurator, fills defaults and validates.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf(errFmtLoad, err)
	}

	return finish(&cfg)
}

// LoadFile decodes the TOML file at path, fills defaults and validates.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf(errFmtReadFile, path, err)
	}

	var cfg Config

	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf(errFmtDecode, path, err)
	}

	return finish(&cfg)
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config

	cfg.ApplyDefaults()

	return &cfg
}

func finish(cfg *Config) (*Config, error) {
	cfg.ApplyDefaults()

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// ApplyDefaults fills empty fields with their default values.
func (c *Config) ApplyDefaults() {
	setDefault(&c.Otto.VoicebankPath, defaultVoicebankPath)
	setDefault(&c.Otto.AssetsDir, defaultAssetsDir)
	setDefault(&c.Otto.AssetSource, AssetSourceDir)
	setDefault(&c.Otto.PinyinStyle, defaultPinyinStyle)

	setDefault(&c.HTTP.Host, defaultHost)
	setDefault(&c.HTTP.RateLimit, defaultRateLimit)
	setDefault(&c.HTTP.RateBurst, defaultRateBurst)
	setDefault(&c.HTTP.MaxTextRunes, defaultMaxTextRunes)
	setDefault(&c.HTTP.TimeoutSeconds, defaultTimeoutSeconds)

	setDefault(&c.NATS.TextProcessedSubject, defaultSubject)
	setDefault(&c.NATS.QueueGroup, defaultQueue)
	setDefault(&c.NATS.TextObjectStore, defaultTextBucket)
	setDefault(&c.NATS.AudioObjectStore, defaultAudioBucket)
	setDefault(&c.NATS.ClipObjectStore, defaultClipBucket)

	setDefault(&c.Paths.BaseLogsDir, defaultLogsDir)
	setDefault(&c.Paths.OutputDir, defaultOutputDir)
}

// Validate reports the first field with an unusable value.
func (c *Config) Validate() error {
	switch {
	case c.Otto.AssetSource != AssetSourceDir && c.Otto.AssetSource != AssetSourceNATS:
		return fmt.Errorf(errFmtField, ErrInvalidConfig, "otto.asset_source must be \"dir\" or \"nats\"")
	case c.Otto.AssetSource == AssetSourceNATS && c.NATS.URL == "":
		return fmt.Errorf(errFmtField, ErrInvalidConfig, "nats.url is required when otto.asset_source is \"nats\"")
	case c.HTTP.Port < 0 || c.HTTP.Port > maxPort:
		return fmt.Errorf(errFmtField, ErrInvalidConfig, "http.port must be between 0 and 65535")
	case c.HTTP.RateLimit < 0:
		return fmt.Errorf(errFmtField, ErrInvalidConfig, "http.rate_limit must not be negative")
	case c.HTTP.RateBurst < 0:
		return fmt.Errorf(errFmtField, ErrInvalidConfig, "http.rate_burst must not be negative")
	case c.HTTP.MaxTextRunes < 0:
		return fmt.Errorf(errFmtField, ErrInvalidConfig, "http.max_text_runes must not be negative")
	case c.HTTP.TimeoutSeconds < 0:
		return fmt.Errorf(errFmtField, ErrInvalidConfig, "http.timeout_seconds must not be negative")
	default:
		return nil
	}
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}
