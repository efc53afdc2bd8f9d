// config.go: settings struct and functions to load and validate the VoiceGuard configuration.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// SupportedLanguages is the fixed set of language tags accepted by the API.
var SupportedLanguages = []string{"Tamil", "English", "Hindi", "Malayalam", "Telugu"}

// DravidianLanguages are the languages for which the fine-tuned model is known
// to invert its score polarity in the mid-confidence band.
var DravidianLanguages = []string{"Tamil", "Malayalam", "Telugu"}

// LogConfig contains settings for application log output.
type LogConfig struct {
	Enabled    bool   // true to log to a file in addition to stdout/stderr
	Path       string // path to the log file
	MaxSizeMB  int    // maximum log file size in megabytes before rotation
	MaxBackups int    // number of rotated log files to keep
	MaxAgeDays int    // maximum age of rotated log files in days
}

// AudioSettings contains settings for audio decoding and windowing.
type AudioSettings struct {
	SampleRate    int      // target sample rate for all analysis, Hz
	WindowSeconds float64  // analysis window length in seconds
	MaxWindows    int      // maximum windows sampled from one clip
	MinDuration   float64  // minimum accepted clip duration, seconds
	MaxDuration   float64  // maximum accepted clip duration, seconds
	MaxBytes      int64    // maximum size of the encoded audio buffer
	FfmpegPath    string   // path to the ffmpeg binary
	Formats       []string // accepted declared audio formats, lowercase
}

// QCSettings contains quality-control thresholds.
type QCSettings struct {
	SilenceRatioThreshold float64 // silence ratio above this flags low confidence
	SampleSilenceFloor    float64 // |sample| below this counts as silence
	ClippingFloor         float64 // |sample| above this counts as clipped
	SilenceConfidenceCap  float64 // confidence cap applied when silence-flagged
}

// ModelConfig describes one acoustic model in the roster.
type ModelConfig struct {
	ID      string // stable model identifier used by fusion rules
	Enabled bool   // false excludes the model without removing its config
	Path    string // local path to the TFLite model file
	URI     string // optional s3://bucket/key URI to fetch the model from
}

// ModelSettings contains the model roster and interpreter options.
type ModelSettings struct {
	Primary    ModelConfig // fine-tuned AASIST model, drives the default rule
	Secondary  ModelConfig // original AASIST model, consulted by ensemble rules
	Threads    int         // interpreter threads, 0 = all CPUs
	UseXNNPACK bool        // true to use the XNNPACK delegate
}

// RuleThresholds holds the empirically tuned fusion rule constants.
// These values were calibrated on evaluation data and are preserved as
// configuration; do not re-derive them silently.
type RuleThresholds struct {
	AgreeHigh          float64  // both-models-agree synthetic probability floor
	InversionHigh      float64  // high-certainty inversion probability floor
	InversionBandLow   float64  // lower bound of the primary inversion band
	InversionBandHigh  float64  // upper bound of the primary inversion band
	InversionLanguages []string // languages subject to the band inversion rule
}

// FusionSettings contains the classification threshold and rule constants.
type FusionSettings struct {
	Threshold float64        // synthetic probability above this means AI_GENERATED
	Rules     RuleThresholds // ordered rule constants
}

// WeightsSettings configures remote model weight acquisition.
type WeightsSettings struct {
	CacheDir string // local directory for downloaded weight files
	Region   string // AWS region for s3:// URIs
}

// WebSettings contains the HTTP boundary configuration.
type WebSettings struct {
	Host          string   // listen address
	Port          int      // listen port
	APIKeys       []string // accepted x-api-key values, empty blocks all requests
	MaxInFlight   int      // maximum concurrent detection requests
	EnableMetrics bool     // expose /metrics
}

// SentrySettings configures optional error telemetry.
type SentrySettings struct {
	Enabled bool   // true to enable Sentry reporting
	DSN     string // Sentry DSN
}

// Settings is the root configuration for the VoiceGuard service.
type Settings struct {
	Debug bool // true to enable debug logging

	Main struct {
		Name string    // node name, used in logs
		Log  LogConfig // log file settings
	}

	Audio   AudioSettings
	QC      QCSettings
	Models  ModelSettings
	Fusion  FusionSettings
	Weights WeightsSettings
	Web     WebSettings
	Sentry  SentrySettings
}

// WindowSamples returns the fixed model input length in samples.
func (s *Settings) WindowSamples() int {
	return int(s.Audio.WindowSeconds * float64(s.Audio.SampleRate))
}

// MaxBase64Length returns the maximum accepted base64 payload length derived
// from Audio.MaxBytes, with margin for padding.
func (s *Settings) MaxBase64Length() int {
	return int(s.Audio.MaxBytes*4/3) + 100
}

// IsSupportedLanguage reports whether lang is one of the enumerated languages.
func IsSupportedLanguage(lang string) bool {
	for _, l := range SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}

// IsSupportedFormat reports whether the declared audio format is accepted.
// Matching is case-insensitive.
func (s *Settings) IsSupportedFormat(format string) bool {
	format = strings.ToLower(strings.TrimSpace(format))
	for _, f := range s.Audio.Formats {
		if f == format {
			return true
		}
	}
	return false
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration file and environment variables into a Settings
// struct, validates it and stores it as the process-wide instance.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// Setting returns the current settings instance, loading it if needed.
func Setting() *Settings {
	settingsMutex.RLock()
	if settingsInstance != nil {
		defer settingsMutex.RUnlock()
		return settingsInstance
	}
	settingsMutex.RUnlock()

	settings, err := Load()
	if err != nil {
		return nil
	}
	return settings
}

// initViper initializes viper with default values and reads the configuration file.
func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	// Environment overrides, e.g. VOICEGUARD_WEB_PORT.
	viper.SetEnvPrefix("voiceguard")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaultConfig()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return createDefaultConfig()
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}

	return nil
}

// createDefaultConfig writes a default config file to the first config path.
func createDefaultConfig() error {
	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("error creating directories for config file: %w", err)
	}

	out, err := yaml.Marshal(viper.AllSettings())
	if err != nil {
		return fmt.Errorf("error marshaling default config: %w", err)
	}
	if err := os.WriteFile(configPath, out, 0o644); err != nil {
		return fmt.Errorf("error writing default config file: %w", err)
	}

	return viper.ReadInConfig()
}

// GetDefaultConfigPaths returns the directories searched for config.yaml, in
// priority order: working directory, then the user config directory.
func GetDefaultConfigPaths() ([]string, error) {
	paths := []string{"."}

	configDir, err := os.UserConfigDir()
	if err == nil {
		paths = append(paths, filepath.Join(configDir, "voiceguard-go"))
	}

	return paths, nil
}
