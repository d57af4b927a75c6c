package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Output names accepted by Config.Output.
const (
	OutputSpeaker = "speaker"
	OutputMonitor = "monitor"
	OutputNone    = "none"
)

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// Config holds all runtime configuration. Values come from defaults, then an
// optional TOML file, then environment variables.
type Config struct {
	// Media collaborator
	APIBaseURL         string `toml:"api_base_url"`
	APIToken           string `toml:"api_token"`
	MediaDir           string `toml:"media_dir"` // local songs; takes precedence over the API
	HTTPTimeoutSeconds int    `toml:"http_timeout_seconds"`

	// Server
	ListenAddr string `toml:"listen_addr"`

	// Playback
	SampleIntervalMillis int     `toml:"sample_interval_ms"`
	InitialVolume        float64 `toml:"initial_volume"`
	Output               string  `toml:"output"` // speaker, monitor or none
	SpeakerBufferMillis  int     `toml:"speaker_buffer_ms"`
	OpusBitrate          int     `toml:"opus_bitrate"`

	// Logging
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"` // auto, text or json
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		APIBaseURL:           "http://localhost:3000/api/v1/app",
		HTTPTimeoutSeconds:   30,
		ListenAddr:           ":8080",
		SampleIntervalMillis: 16,
		InitialVolume:        1,
		Output:               OutputSpeaker,
		SpeakerBufferMillis:  100,
		OpusBitrate:          128000,
		LogLevel:             "info",
		LogFormat:            "auto",
	}
}

// Load builds the configuration. path may be empty; a named file that does
// not exist is an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.APIBaseURL = envStr("ELMI_API_BASE_URL", c.APIBaseURL)
	c.APIToken = envStr("ELMI_API_TOKEN", c.APIToken)
	c.MediaDir = envStr("ELMI_MEDIA_DIR", c.MediaDir)
	c.HTTPTimeoutSeconds = envInt("ELMI_HTTP_TIMEOUT_SECONDS", c.HTTPTimeoutSeconds)

	c.ListenAddr = envStr("ELMI_LISTEN_ADDR", c.ListenAddr)

	c.SampleIntervalMillis = envInt("ELMI_SAMPLE_INTERVAL_MS", c.SampleIntervalMillis)
	c.InitialVolume = envFloat("ELMI_INITIAL_VOLUME", c.InitialVolume)
	c.Output = strings.ToLower(envStr("ELMI_OUTPUT", c.Output))
	c.SpeakerBufferMillis = envInt("ELMI_SPEAKER_BUFFER_MS", c.SpeakerBufferMillis)
	c.OpusBitrate = envInt("ELMI_OPUS_BITRATE", c.OpusBitrate)

	c.LogLevel = strings.ToLower(envStr("ELMI_LOG_LEVEL", c.LogLevel))
	c.LogFormat = strings.ToLower(envStr("ELMI_LOG_FORMAT", c.LogFormat))
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if c.MediaDir == "" && c.APIBaseURL == "" {
		return errors.New("either media_dir or api_base_url must be set")
	}
	if c.HTTPTimeoutSeconds <= 0 {
		return errors.New("http_timeout_seconds must be positive")
	}
	if c.SampleIntervalMillis < 1 || c.SampleIntervalMillis > 1000 {
		return fmt.Errorf("sample_interval_ms must be between 1 and 1000, got %d", c.SampleIntervalMillis)
	}
	if c.InitialVolume < 0 || c.InitialVolume > 1 {
		return errors.New("initial_volume must be between 0 and 1")
	}
	switch c.Output {
	case OutputSpeaker, OutputMonitor, OutputNone:
	default:
		return fmt.Errorf("output must be speaker, monitor or none, got %q", c.Output)
	}
	if c.SpeakerBufferMillis <= 0 {
		return errors.New("speaker_buffer_ms must be positive")
	}
	if c.OpusBitrate < 6000 || c.OpusBitrate > 510000 {
		return fmt.Errorf("opus_bitrate must be between 6000 and 510000, got %d", c.OpusBitrate)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	switch c.LogFormat {
	case "auto", "text", "json":
	default:
		return fmt.Errorf("unknown log_format %q", c.LogFormat)
	}
	return nil
}

// SampleInterval is the position sampling period.
func (c Config) SampleInterval() time.Duration {
	return time.Duration(c.SampleIntervalMillis) * time.Millisecond
}

// HTTPTimeout bounds each media request.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// SpeakerBuffer is the sound device buffer length.
func (c Config) SpeakerBuffer() time.Duration {
	return time.Duration(c.SpeakerBufferMillis) * time.Millisecond
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
