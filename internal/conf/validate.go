package conf

import (
	"fmt"
	"strings"
)

// ValidateSettings checks the loaded settings for values the pipeline cannot
// operate with. Validation failures are configuration defects, not user input
// problems, so they abort startup.
func ValidateSettings(s *Settings) error {
	var errs []string

	if s.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Sprintf("audio.samplerate must be positive, got %d", s.Audio.SampleRate))
	}
	if s.Audio.WindowSeconds <= 0 {
		errs = append(errs, fmt.Sprintf("audio.windowseconds must be positive, got %g", s.Audio.WindowSeconds))
	}
	if s.Audio.MaxWindows < 1 {
		errs = append(errs, fmt.Sprintf("audio.maxwindows must be at least 1, got %d", s.Audio.MaxWindows))
	}
	if s.Audio.MinDuration < 0 {
		errs = append(errs, fmt.Sprintf("audio.minduration must not be negative, got %g", s.Audio.MinDuration))
	}
	if s.Audio.MaxDuration <= s.Audio.MinDuration {
		errs = append(errs, fmt.Sprintf("audio.maxduration (%g) must exceed audio.minduration (%g)",
			s.Audio.MaxDuration, s.Audio.MinDuration))
	}
	if s.Audio.MaxBytes <= 0 {
		errs = append(errs, fmt.Sprintf("audio.maxbytes must be positive, got %d", s.Audio.MaxBytes))
	}
	if len(s.Audio.Formats) == 0 {
		errs = append(errs, "audio.formats must list at least one accepted format")
	}

	if s.QC.SilenceRatioThreshold <= 0 || s.QC.SilenceRatioThreshold > 1 {
		errs = append(errs, fmt.Sprintf("qc.silenceratiothreshold must be in (0,1], got %g", s.QC.SilenceRatioThreshold))
	}
	if s.QC.SilenceConfidenceCap <= 0 || s.QC.SilenceConfidenceCap > 1 {
		errs = append(errs, fmt.Sprintf("qc.silenceconfidencecap must be in (0,1], got %g", s.QC.SilenceConfidenceCap))
	}

	if s.Fusion.Threshold <= 0 || s.Fusion.Threshold >= 1 {
		errs = append(errs, fmt.Sprintf("fusion.threshold must be in (0,1), got %g", s.Fusion.Threshold))
	}
	if s.Fusion.Rules.InversionBandLow > s.Fusion.Rules.InversionBandHigh {
		errs = append(errs, fmt.Sprintf("fusion.rules inversion band is inverted: [%g, %g]",
			s.Fusion.Rules.InversionBandLow, s.Fusion.Rules.InversionBandHigh))
	}

	if s.Models.Primary.ID == "" {
		errs = append(errs, "models.primary.id must not be empty, fusion rules reference it")
	}
	if s.Models.Secondary.Enabled && s.Models.Secondary.ID == "" {
		errs = append(errs, "models.secondary.id must not be empty when the secondary model is enabled")
	}
	if s.Models.Primary.ID != "" && s.Models.Primary.ID == s.Models.Secondary.ID {
		errs = append(errs, fmt.Sprintf("model ids must be distinct, both are %q", s.Models.Primary.ID))
	}

	if s.Web.Port < 1 || s.Web.Port > 65535 {
		errs = append(errs, fmt.Sprintf("web.port must be in [1,65535], got %d", s.Web.Port))
	}
	if s.Web.MaxInFlight < 1 {
		errs = append(errs, fmt.Sprintf("web.maxinflight must be at least 1, got %d", s.Web.MaxInFlight))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}
