// Package qc computes quality-control metrics for decoded waveforms and
// classifies whether a clip is usable for model inference.
package qc

import (
	"math"

	"github.com/veridict/voiceguard-go/internal/conf"
	"github.com/veridict/voiceguard-go/internal/myaudio"
)

// Metrics is a small record of quality measurements derived once from a
// waveform and immutable afterwards.
type Metrics struct {
	DurationSeconds float64 // total clip duration
	RMS             float64 // root mean square energy
	SilenceRatio    float64 // fraction of samples below the silence floor
	ClippingRatio   float64 // fraction of samples at or near max amplitude
}

// Quality is the gate decision for a clip.
type Quality int

const (
	QualityUsable Quality = iota
	QualityTooShort
	QualityTooLong
	QualityTooSilent
)

// String returns the gate decision name.
func (q Quality) String() string {
	switch q {
	case QualityUsable:
		return "USABLE"
	case QualityTooShort:
		return "TOO_SHORT"
	case QualityTooLong:
		return "TOO_LONG"
	case QualityTooSilent:
		return "TOO_SILENT"
	default:
		return "UNKNOWN"
	}
}

// Assess computes quality metrics for a waveform. An empty waveform reports
// full silence and zero duration.
func Assess(w *myaudio.Waveform, settings *conf.Settings) Metrics {
	if len(w.Samples) == 0 {
		return Metrics{SilenceRatio: 1.0}
	}

	silenceFloor := settings.QC.SampleSilenceFloor
	clippingFloor := settings.QC.ClippingFloor

	var sumSquares float64
	silent := 0
	clipped := 0
	for _, s := range w.Samples {
		v := float64(s)
		sumSquares += v * v
		if math.Abs(v) < silenceFloor {
			silent++
		}
		if math.Abs(v) > clippingFloor {
			clipped++
		}
	}

	n := float64(len(w.Samples))
	return Metrics{
		DurationSeconds: w.Duration(),
		RMS:             math.Sqrt(sumSquares / n),
		SilenceRatio:    float64(silent) / n,
		ClippingRatio:   float64(clipped) / n,
	}
}

// ClassifyQuality applies the gate policy to a set of metrics. Duration bounds
// are inclusive and checked first: they are unambiguous and cheap, so clips
// outside them never reach inference. Excess silence does not reject the clip;
// it flags the result as low confidence downstream.
func ClassifyQuality(m Metrics, settings *conf.Settings) Quality {
	if m.DurationSeconds < settings.Audio.MinDuration {
		return QualityTooShort
	}
	if m.DurationSeconds > settings.Audio.MaxDuration {
		return QualityTooLong
	}
	if m.SilenceRatio > settings.QC.SilenceRatioThreshold {
		return QualityTooSilent
	}
	return QualityUsable
}

// IsRejection reports whether the quality decision blocks inference entirely.
func (q Quality) IsRejection() bool {
	return q == QualityTooShort || q == QualityTooLong
}
