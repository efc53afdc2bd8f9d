package conf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// defaultTestSettings returns a settings struct mirroring the shipped defaults.
func defaultTestSettings() *Settings {
	s := &Settings{}
	s.Audio = AudioSettings{
		SampleRate:    16000,
		WindowSeconds: 4.0,
		MaxWindows:    3,
		MinDuration:   0.5,
		MaxDuration:   300.0,
		MaxBytes:      15_000_000,
		FfmpegPath:    "ffmpeg",
		Formats:       []string{"mp3", "wav"},
	}
	s.QC = QCSettings{
		SilenceRatioThreshold: 0.80,
		SampleSilenceFloor:    0.01,
		ClippingFloor:         0.99,
		SilenceConfidenceCap:  0.60,
	}
	s.Models.Primary = ModelConfig{ID: "aasist-ft", Enabled: true, Path: "models/ft.tflite"}
	s.Models.Secondary = ModelConfig{ID: "aasist-orig", Enabled: true, Path: "models/orig.tflite"}
	s.Fusion = FusionSettings{
		Threshold: 0.5,
		Rules: RuleThresholds{
			AgreeHigh:          0.95,
			InversionHigh:      0.95,
			InversionBandLow:   0.85,
			InversionBandHigh:  0.92,
			InversionLanguages: DravidianLanguages,
		},
	}
	s.Web = WebSettings{Host: "127.0.0.1", Port: 8080, MaxInFlight: 1}
	return s
}

func TestValidateSettingsAcceptsDefaults(t *testing.T) {
	require.NoError(t, ValidateSettings(defaultTestSettings()))
}

func TestValidateSettingsRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantMsg string
	}{
		{"zero_sample_rate", func(s *Settings) { s.Audio.SampleRate = 0 }, "samplerate"},
		{"zero_window", func(s *Settings) { s.Audio.WindowSeconds = 0 }, "windowseconds"},
		{"zero_max_windows", func(s *Settings) { s.Audio.MaxWindows = 0 }, "maxwindows"},
		{"inverted_duration_bounds", func(s *Settings) { s.Audio.MaxDuration = 0.1 }, "maxduration"},
		{"no_formats", func(s *Settings) { s.Audio.Formats = nil }, "formats"},
		{"threshold_one", func(s *Settings) { s.Fusion.Threshold = 1.0 }, "fusion.threshold"},
		{"inverted_band", func(s *Settings) {
			s.Fusion.Rules.InversionBandLow = 0.95
			s.Fusion.Rules.InversionBandHigh = 0.85
		}, "inversion band"},
		{"empty_primary_id", func(s *Settings) { s.Models.Primary.ID = "" }, "primary.id"},
		{"duplicate_model_ids", func(s *Settings) { s.Models.Secondary.ID = "aasist-ft" }, "distinct"},
		{"bad_port", func(s *Settings) { s.Web.Port = 0 }, "web.port"},
		{"zero_inflight", func(s *Settings) { s.Web.MaxInFlight = 0 }, "maxinflight"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := defaultTestSettings()
			tt.mutate(s)
			err := ValidateSettings(s)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestWindowSamples(t *testing.T) {
	s := defaultTestSettings()
	assert.Equal(t, 64000, s.WindowSamples())
}

func TestMaxBase64Length(t *testing.T) {
	s := defaultTestSettings()
	assert.Equal(t, 20_000_100, s.MaxBase64Length())
}

func TestIsSupportedFormat(t *testing.T) {
	s := defaultTestSettings()

	assert.True(t, s.IsSupportedFormat("mp3"))
	assert.True(t, s.IsSupportedFormat("MP3"))
	assert.True(t, s.IsSupportedFormat(" wav "))
	assert.False(t, s.IsSupportedFormat("aiff"))
	assert.False(t, s.IsSupportedFormat(""))
}

func TestIsSupportedLanguage(t *testing.T) {
	assert.True(t, IsSupportedLanguage("Tamil"))
	assert.True(t, IsSupportedLanguage("English"))
	assert.False(t, IsSupportedLanguage("tamil"))
	assert.False(t, IsSupportedLanguage("French"))
}
