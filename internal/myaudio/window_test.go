package myaudio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeWaveform(seconds float64, sampleRate int) *Waveform {
	n := int(seconds * float64(sampleRate))
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(i%100) / 100.0
	}
	return &Waveform{Samples: samples, SampleRate: sampleRate}
}

func TestSampleWindowsEvenSpacing(t *testing.T) {
	// 10s clip at 16kHz with three 4s windows must start at 0s, 3s and 6s.
	w := makeWaveform(10, 16000)

	windows := SampleWindows(w, 3, 4.0)

	require.Len(t, windows, 3)
	assert.InDelta(t, 0.0, windows[0].StartSeconds, 1e-9)
	assert.InDelta(t, 3.0, windows[1].StartSeconds, 1e-9)
	assert.InDelta(t, 6.0, windows[2].StartSeconds, 1e-9)
	for _, win := range windows {
		assert.Len(t, win.Samples, 64000)
		// No window may extend past the clip end.
		assert.LessOrEqual(t, win.StartSeconds+4.0, w.Duration()+1e-9)
	}
}

func TestSampleWindowsShortClipPads(t *testing.T) {
	w := makeWaveform(2.5, 16000)

	windows := SampleWindows(w, 3, 4.0)

	require.Len(t, windows, 1)
	assert.InDelta(t, 0.0, windows[0].StartSeconds, 1e-9)
	require.Len(t, windows[0].Samples, 64000)
	// Content survives, padding is zeros.
	assert.Equal(t, w.Samples[100], windows[0].Samples[100])
	for _, s := range windows[0].Samples[40000:] {
		assert.Zero(t, s)
	}
}

func TestSampleWindowsExactWindowLength(t *testing.T) {
	w := makeWaveform(4, 16000)

	windows := SampleWindows(w, 3, 4.0)

	require.Len(t, windows, 1)
	assert.Len(t, windows[0].Samples, 64000)
}

func TestSampleWindowsFeasibleCountLimits(t *testing.T) {
	// 6s clip: ceil(6/4) = 2 feasible windows even though 3 are allowed.
	w := makeWaveform(6, 16000)

	windows := SampleWindows(w, 3, 4.0)

	require.Len(t, windows, 2)
	assert.InDelta(t, 0.0, windows[0].StartSeconds, 1e-9)
	assert.InDelta(t, 2.0, windows[1].StartSeconds, 1e-9)
}

func TestSampleWindowsDeterministic(t *testing.T) {
	w := makeWaveform(33.3, 16000)

	first := SampleWindows(w, 3, 4.0)
	second := SampleWindows(w, 3, 4.0)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].StartSeconds, second[i].StartSeconds)
		assert.Equal(t, first[i].Samples, second[i].Samples)
	}
}

func TestSampleWindowsClampedFinalOffset(t *testing.T) {
	// Clip length not a multiple of the window length: the last window must
	// end exactly at the clip end.
	w := makeWaveform(9.7, 16000)

	windows := SampleWindows(w, 3, 4.0)

	require.NotEmpty(t, windows)
	last := windows[len(windows)-1]
	assert.InDelta(t, w.Duration()-4.0, last.StartSeconds, 1e-4)
}

func TestWaveformDuration(t *testing.T) {
	w := makeWaveform(2, 16000)
	assert.InDelta(t, 2.0, w.Duration(), 1e-9)

	empty := &Waveform{}
	assert.Zero(t, empty.Duration())
}
