package audio_test

import (
	"math"
	"testing"
	"time"

	"github.com/AS042971/otto/internal/tts/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mono(rate int, samples ...float64) audio.Buffer {
	return audio.Buffer{Samples: samples, SampleRate: rate, Channels: 1}
}

func TestConcat_PreservesOrder(t *testing.T) {
	t.Parallel()

	first := mono(8000, 0.1, 0.2)
	second := mono(8000, -0.3)
	third := mono(8000, 0.4, 0.5, 0.6)

	result := audio.Concat(8000, first, second, third)

	assert.Equal(t, []float64{0.1, 0.2, -0.3, 0.4, 0.5, 0.6}, result.Samples)
	assert.Equal(t, 8000, result.SampleRate)
	assert.Equal(t, 1, result.Channels)

	reversed := audio.Concat(8000, third, second, first)
	assert.Equal(t, []float64{0.4, 0.5, 0.6, -0.3, 0.1, 0.2}, reversed.Samples)
}

func TestConcat_Empty(t *testing.T) {
	t.Parallel()

	result := audio.Concat(44100)

	assert.Empty(t, result.Samples)
	assert.Equal(t, 44100, result.SampleRate)
	assert.Equal(t, 1, result.Channels)
}

func TestNewSilence(t *testing.T) {
	t.Parallel()

	silence := audio.NewSilence(500, 44100)

	require.Len(t, silence.Samples, 22050)
	assert.Equal(t, 500*time.Millisecond, silence.Duration())
	assert.Zero(t, audio.Peak(silence))

	assert.Empty(t, audio.NewSilence(0, 44100).Samples)
}

func TestDownmix(t *testing.T) {
	t.Parallel()

	stereo := audio.Buffer{Samples: []float64{1, 0, 0.5, 0.5, -1, 1}, SampleRate: 8000, Channels: 2}
	result := audio.Downmix(stereo)

	assert.Equal(t, []float64{0.5, 0.5, 0}, result.Samples)
	assert.Equal(t, 1, result.Channels)
}

func TestResample(t *testing.T) {
	t.Parallel()

	source := mono(4, 0, 1, 0, -1)

	upsampled := audio.Resample(source, 8)
	require.Len(t, upsampled.Samples, 8)
	assert.Equal(t, 8, upsampled.SampleRate)
	assert.InDelta(t, 0.5, upsampled.Samples[1], 1e-9)
	assert.InDelta(t, 1.0, upsampled.Samples[2], 1e-9)

	downsampled := audio.Resample(source, 2)
	assert.Equal(t, []float64{0, 0}, downsampled.Samples)

	same := audio.Resample(source, 4)
	assert.Equal(t, source.Samples, same.Samples)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	quiet := mono(8000, 0.25, -0.5, 0.1)
	result := audio.Normalize(quiet, 0.1)

	expectedPeak := math.Pow(10, -0.1/20)
	assert.InDelta(t, expectedPeak, audio.Peak(result), 1e-12)
	assert.InDelta(t, -expectedPeak, result.Samples[1], 1e-12)
	assert.InDelta(t, expectedPeak/2, result.Samples[0], 1e-12)

	silent := mono(8000, 0, 0)
	assert.Equal(t, silent.Samples, audio.Normalize(silent, 0.1).Samples)
}

func TestQuality_ApplyEffects(t *testing.T) {
	t.Parallel()

	quality := audio.NewDefaultQuality()
	quality.SampleRate = 8000

	stereo := audio.Buffer{Samples: []float64{0.2, 0.2, 0.4, 0.4}, SampleRate: 4000, Channels: 2}

	result, err := quality.ApplyEffects(stereo)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Channels)
	assert.Equal(t, 8000, result.SampleRate)
	assert.Len(t, result.Samples, 4)
	assert.InDelta(t, math.Pow(10, -0.1/20), audio.Peak(result), 1e-12)
}

func TestQuality_ApplyEffects_InvalidBuffer(t *testing.T) {
	t.Parallel()

	quality := audio.NewDefaultQuality()

	_, err := quality.ApplyEffects(audio.Buffer{Samples: nil, SampleRate: 0, Channels: 1})
	require.ErrorIs(t, err, audio.ErrInvalidBuffer)
}

func TestQuality_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(q *audio.Quality)
	}{
		{name: "sample rate", mutate: func(q *audio.Quality) { q.SampleRate = 0 }},
		{name: "bit depth", mutate: func(q *audio.Quality) { q.BitDepth = 12 }},
		{name: "channels", mutate: func(q *audio.Quality) { q.Channels = 0 }},
		{name: "volume", mutate: func(q *audio.Quality) { q.Volume = -1 }},
		{name: "headroom", mutate: func(q *audio.Quality) { q.HeadroomDB = -3 }},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			quality := audio.NewDefaultQuality()
			testCase.mutate(&quality)

			require.ErrorIs(t, quality.Validate(), audio.ErrInvalidQuality)
		})
	}

	quality := audio.NewDefaultQuality()
	require.NoError(t, quality.Validate())
}

func TestFormat_ContentType(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "audio/wav", audio.FORMAT_WAV.ContentType())
}
