// Package myaudio handles audio decoding, normalization and window sampling
// for the detection pipeline.
package myaudio

// Waveform is a mono PCM clip at a fixed sample rate with samples normalized
// to [-1, 1]. It is created once per request by the decoder and immutable
// afterwards; nothing in the pipeline shares it across requests.
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the clip length in seconds.
func (w *Waveform) Duration() float64 {
	if w.SampleRate == 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Window is a fixed-length segment of a waveform plus its start offset within
// the clip. Windows are independent and stateless; the sample slice is always
// exactly the model input length, zero-padded when the source ran short.
type Window struct {
	Samples      []float32
	StartSeconds float64
}

// ClampFloat32 limits a sample to the normalized amplitude range [-1, 1].
func ClampFloat32(v float32) float32 {
	switch {
	case v > 1.0:
		return 1.0
	case v < -1.0:
		return -1.0
	default:
		return v
	}
}
