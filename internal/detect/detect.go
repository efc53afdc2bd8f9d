// Package detect orchestrates the detection pipeline: decode, quality gate,
// window sampling, model scoring and score fusion.
package detect

import (
	"context"
	"log/slog"
	"time"

	"github.com/veridict/voiceguard-go/internal/aasist"
	"github.com/veridict/voiceguard-go/internal/conf"
	"github.com/veridict/voiceguard-go/internal/errors"
	"github.com/veridict/voiceguard-go/internal/fusion"
	"github.com/veridict/voiceguard-go/internal/logging"
	"github.com/veridict/voiceguard-go/internal/myaudio"
	"github.com/veridict/voiceguard-go/internal/observability"
	"github.com/veridict/voiceguard-go/internal/qc"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("detect")
}

// Result is the assembled outcome of one detection request.
type Result struct {
	Language        string
	Classification  string
	ConfidenceScore float64
	Explanation     string
	Rule            string  // fusion rule name, or "qc-fallback"
	Quality         string  // quality gate decision
	DurationSeconds float64 // decoded clip duration
	Windows         int     // number of windows scored
}

// Detector runs the pipeline against a fixed model registry. It is safe for
// concurrent use.
type Detector struct {
	settings *conf.Settings
	registry *aasist.Registry
	metrics  *observability.Metrics
}

// New builds a detector. Metrics may be nil when the caller does not export
// them.
func New(settings *conf.Settings, registry *aasist.Registry, metrics *observability.Metrics) *Detector {
	return &Detector{settings: settings, registry: registry, metrics: metrics}
}

// Detect classifies one audio clip. The error is non-nil only for requests
// that cannot produce a classification at all: invalid input, decode failure,
// a duration gate rejection, or a scoring defect on a loaded roster. With no
// models loaded at all the detector still answers, from quality metrics
// alone.
func (d *Detector) Detect(ctx context.Context, language string, audioData []byte, format string) (*Result, error) {
	if !conf.IsSupportedLanguage(language) {
		d.countRejection("UNSUPPORTED_LANGUAGE")
		return nil, errors.Newf("unsupported language %q", language).
			Component("detect").
			Category(errors.CategoryValidation).
			Context("language", language).
			Build()
	}

	decodeStart := time.Now()
	waveform, err := myaudio.DecodeToWaveform(ctx, d.settings, audioData, format)
	if err != nil {
		d.countRejection("DECODE_FAILED")
		return nil, err
	}
	if d.metrics != nil {
		d.metrics.DecodeDuration.Observe(time.Since(decodeStart).Seconds())
	}

	metrics := qc.Assess(waveform, d.settings)
	quality := qc.ClassifyQuality(metrics, d.settings)

	if quality.IsRejection() {
		d.countRejection(quality.String())
		return nil, errors.Newf("audio duration %.2fs outside accepted range [%.1f, %.1f] seconds",
			metrics.DurationSeconds, d.settings.Audio.MinDuration, d.settings.Audio.MaxDuration).
			Component("detect").
			Category(errors.CategoryDurationGate).
			Context("quality", quality.String()).
			Context("duration_seconds", metrics.DurationSeconds).
			Build()
	}

	if d.registry.Empty() {
		result := d.qcFallback(language, metrics, quality)
		d.countDetection(result)
		logger.Warn("no models loaded, returning QC fallback",
			"language", language,
			"quality", quality.String(),
			"confidence", result.ConfidenceScore)
		return result, nil
	}

	windows := myaudio.SampleWindows(waveform, d.settings.Audio.MaxWindows, d.settings.Audio.WindowSeconds)
	windowScores, err := d.scoreWindows(ctx, windows)
	if err != nil {
		return nil, err
	}

	fused, err := fusion.Fuse(windowScores, language, d.settings)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Language:        language,
		Classification:  fused.Classification,
		ConfidenceScore: fused.Confidence,
		Explanation:     fused.Explanation,
		Rule:            fused.Rule,
		Quality:         quality.String(),
		DurationSeconds: metrics.DurationSeconds,
		Windows:         len(windows),
	}
	if quality == qc.QualityTooSilent {
		d.attenuateForSilence(result, metrics)
	}
	d.countDetection(result)
	return result, nil
}

// scoreWindows runs every loaded model over every window. A primary model
// failure aborts the request; a secondary failure drops that model's scores.
func (d *Detector) scoreWindows(ctx context.Context, windows []myaudio.Window) (map[string][]aasist.ModelScore, error) {
	windowScores := make(map[string][]aasist.ModelScore, len(d.registry.Scorers()))

	for _, scorer := range d.registry.Scorers() {
		scores := make([]aasist.ModelScore, 0, len(windows))
		var scoreErr error
		for _, window := range windows {
			start := time.Now()
			score, err := scorer.Score(ctx, window)
			if err != nil {
				scoreErr = err
				break
			}
			if d.metrics != nil {
				d.metrics.InferenceDuration.WithLabelValues(scorer.ID()).Observe(time.Since(start).Seconds())
			}
			scores = append(scores, score)
		}

		if scoreErr != nil {
			if scorer.ID() == d.registry.PrimaryID() {
				return nil, errors.New(scoreErr).
					Component("detect").
					Category(errors.CategoryModelInference).
					ModelContext(scorer.ID()).
					Build()
			}
			logger.Warn("secondary model scoring failed, excluding its scores",
				"model_id", scorer.ID(),
				"error", scoreErr)
			continue
		}
		windowScores[scorer.ID()] = scores
	}
	return windowScores, nil
}

// attenuateForSilence caps the confidence of a mostly-silent clip and notes
// the condition in the explanation. The classification itself stands; silence
// is a confidence signal, not a correctness violation.
func (d *Detector) attenuateForSilence(r *Result, m qc.Metrics) {
	if limit := d.settings.QC.SilenceConfidenceCap; r.ConfidenceScore > limit {
		r.ConfidenceScore = limit
	}
	r.Explanation = fusion.TruncateExplanation(
		r.Explanation + " Audio is mostly silent; confidence reduced.")
}

// qcFallback answers from quality metrics alone when no classifier model is
// loaded: low-confidence HUMAN, scaled by residual signal energy and capped
// by configuration, labeled so callers can tell degraded answers from
// model-backed ones.
func (d *Detector) qcFallback(language string, m qc.Metrics, quality qc.Quality) *Result {
	confidence := 0.5 + m.RMS*0.5
	if limit := d.settings.QC.SilenceConfidenceCap; confidence > limit {
		confidence = limit
	}
	explanation := "No classifier models are available; QC fallback based on signal statistics only."
	if quality == qc.QualityTooSilent {
		explanation = "No classifier models are available and the audio is mostly silent; QC fallback, indeterminate."
	}
	return &Result{
		Language:        language,
		Classification:  fusion.ClassificationHuman,
		ConfidenceScore: confidence,
		Explanation:     fusion.TruncateExplanation(explanation),
		Rule:            "qc-fallback",
		Quality:         quality.String(),
		DurationSeconds: m.DurationSeconds,
	}
}

func (d *Detector) countDetection(r *Result) {
	if d.metrics != nil {
		d.metrics.DetectionsTotal.WithLabelValues(r.Classification, r.Rule).Inc()
	}
}

func (d *Detector) countRejection(reason string) {
	if d.metrics != nil {
		d.metrics.RejectionsTotal.WithLabelValues(reason).Inc()
	}
}
