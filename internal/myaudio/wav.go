package myaudio

import (
	"bytes"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	resampling "github.com/tphakala/go-audio-resampling"

	"github.com/veridict/voiceguard-go/internal/errors"
)

// decodeWAV decodes a WAV buffer natively, downmixes to mono and resamples to
// the target rate when the source rate differs. This avoids the ffmpeg
// subprocess for the most common upload format.
func decodeWAV(data []byte, targetRate int) (*Waveform, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	decoder.ReadInfo()

	if !decoder.IsValidFile() {
		return nil, errors.Newf("input is not a valid WAV audio file").
			Component("myaudio").
			Category(errors.CategoryAudioDecode).
			Build()
	}
	if decoder.BitDepth != 16 && decoder.BitDepth != 24 && decoder.BitDepth != 32 {
		return nil, errors.Newf("unsupported WAV bit depth: %d", decoder.BitDepth).
			Component("myaudio").
			Category(errors.CategoryAudioDecode).
			Context("bit_depth", decoder.BitDepth).
			Build()
	}
	if decoder.NumChans != 1 && decoder.NumChans != 2 {
		return nil, errors.Newf("unsupported WAV channel count: %d", decoder.NumChans).
			Component("myaudio").
			Category(errors.CategoryAudioDecode).
			Context("channels", decoder.NumChans).
			Build()
	}

	divisor, err := sampleDivisor(int(decoder.BitDepth))
	if err != nil {
		return nil, err
	}

	sourceRate := int(decoder.SampleRate)
	numChans := int(decoder.NumChans)

	buf := &audio.IntBuffer{
		Data:   make([]int, 16384),
		Format: &audio.Format{SampleRate: sourceRate, NumChannels: numChans},
	}

	var samples []float32
	for {
		n, err := decoder.PCMBuffer(buf)
		if err != nil {
			return nil, errors.New(err).
				Component("myaudio").
				Category(errors.CategoryAudioDecode).
				Context("operation", "wav-pcm-read").
				Build()
		}
		if n == 0 {
			break
		}

		frame := buf.Data[:n]
		if numChans == 2 {
			// Downmix by averaging left and right.
			for i := 0; i+1 < len(frame); i += 2 {
				mixed := float32(frame[i]+frame[i+1]) / 2.0
				samples = append(samples, ClampFloat32(mixed/divisor))
			}
		} else {
			for _, s := range frame {
				samples = append(samples, ClampFloat32(float32(s)/divisor))
			}
		}
	}

	if len(samples) == 0 {
		return nil, errors.Newf("WAV file contains no audio data").
			Component("myaudio").
			Category(errors.CategoryAudioDecode).
			Build()
	}

	if sourceRate != targetRate {
		samples, err = resampleAudio(samples, sourceRate, targetRate)
		if err != nil {
			return nil, err
		}
	}

	return &Waveform{Samples: samples, SampleRate: targetRate}, nil
}

// sampleDivisor returns the normalization divisor for a given bit depth.
func sampleDivisor(bitDepth int) (float32, error) {
	switch bitDepth {
	case 16:
		return 32768.0, nil
	case 24:
		return 8388608.0, nil
	case 32:
		return 2147483648.0, nil
	default:
		return 0, errors.Newf("unsupported audio file bit depth: %d", bitDepth).
			Component("myaudio").
			Category(errors.CategoryAudioDecode).
			Build()
	}
}

// resampleAudio converts mono samples from sourceRate to targetRate.
func resampleAudio(samples []float32, sourceRate, targetRate int) ([]float32, error) {
	resampler, err := resampling.New(&resampling.Config{
		InputRate:  float64(sourceRate),
		OutputRate: float64(targetRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudioDecode).
			Context("operation", "resampler-init").
			Build()
	}

	input := make([]float64, len(samples))
	for i, s := range samples {
		input[i] = float64(s)
	}

	output, err := resampler.Process(input)
	if err != nil {
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudioDecode).
			Context("operation", "resample").
			Context("source_rate", sourceRate).
			Context("target_rate", targetRate).
			Build()
	}

	out := make([]float32, len(output))
	for i, s := range output {
		out[i] = ClampFloat32(float32(s))
	}
	return out, nil
}
