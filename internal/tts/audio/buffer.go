package audio

import (
	"time"
)

// Buffer is decoded PCM audio. Samples are amplitudes in [-1, 1], interleaved
// when Channels > 1.
type Buffer struct {
	Samples    []float64
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames.
func (b Buffer) Frames() int {
	if b.Channels <= 0 {
		return 0
	}

	return len(b.Samples) / b.Channels
}

// Duration returns the playing time of the buffer.
func (b Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}

	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// NewSilence returns a mono buffer of zero amplitude lasting durationMs milliseconds.
func NewSilence(durationMs, sampleRate int) Buffer {
	frames := 0
	if durationMs > 0 && sampleRate > 0 {
		frames = sampleRate * durationMs / MILLIS_PER_SECOND
	}

	return Buffer{
		Samples:    make([]float64, frames),
		SampleRate: sampleRate,
		Channels:   1,
	}
}

// Concat joins mono buffers end to end in the given order. The result always
// carries sampleRate and a single channel; nothing is rescaled.
func Concat(sampleRate int, buffers ...Buffer) Buffer {
	total := 0
	for _, buffer := range buffers {
		total += len(buffer.Samples)
	}

	samples := make([]float64, 0, total)
	for _, buffer := range buffers {
		samples = append(samples, buffer.Samples...)
	}

	return Buffer{
		Samples:    samples,
		SampleRate: sampleRate,
		Channels:   1,
	}
}
