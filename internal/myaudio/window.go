package myaudio

// SampleWindows selects analysis windows from a waveform. It is a pure
// function of its inputs: calling it twice with the same waveform and
// parameters yields identical window boundaries.
//
// A clip no longer than one window yields exactly one window covering the
// whole clip, zero-padded to the model input length. Longer clips yield
// min(maxWindows, ceil(duration/windowLength)) windows evenly spaced across
// the clip, always including offset zero, with the final start offset clamped
// so no window extends past the clip end.
func SampleWindows(w *Waveform, maxWindows int, windowSeconds float64) []Window {
	if maxWindows < 1 {
		maxWindows = 1
	}
	windowSamples := int(windowSeconds * float64(w.SampleRate))
	if windowSamples <= 0 {
		return nil
	}

	if len(w.Samples) <= windowSamples {
		return []Window{padWindow(w.Samples, 0, windowSamples)}
	}

	feasible := (len(w.Samples) + windowSamples - 1) / windowSamples
	count := min(maxWindows, feasible)

	lastStart := len(w.Samples) - windowSamples
	windows := make([]Window, 0, count)
	for i := 0; i < count; i++ {
		start := 0
		if count > 1 {
			start = i * lastStart / (count - 1)
		}
		if start > lastStart {
			start = lastStart
		}
		segment := w.Samples[start : start+windowSamples]
		windows = append(windows, Window{
			Samples:      segment,
			StartSeconds: float64(start) / float64(w.SampleRate),
		})
	}
	return windows
}

// padWindow copies samples into a zero-padded buffer of the model input length.
func padWindow(samples []float32, start int, windowSamples int) Window {
	padded := make([]float32, windowSamples)
	copy(padded, samples)
	return Window{Samples: padded, StartSeconds: float64(start)}
}
