package audio_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/AS042971/otto/internal/tts/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWAV_RoundTrip(t *testing.T) {
	t.Parallel()

	source := mono(22050, 0, 0.5, -0.5, 0.25, -1, 1)

	data, err := audio.EncodeWAV(source, audio.BIT_DEPTH_16)
	require.NoError(t, err)
	require.Greater(t, len(data), 44)
	assert.Equal(t, "RIFF", string(data[0:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))

	decoded, err := audio.DecodeWAV(data)
	require.NoError(t, err)

	assert.Equal(t, 22050, decoded.SampleRate)
	assert.Equal(t, 1, decoded.Channels)
	require.Len(t, decoded.Samples, len(source.Samples))

	for index, sample := range source.Samples {
		assert.InDelta(t, sample, decoded.Samples[index], 1e-4)
	}
}

func TestWAV_RoundTripStereo24Bit(t *testing.T) {
	t.Parallel()

	source := audio.Buffer{Samples: []float64{0.1, -0.1, 0.2, -0.2}, SampleRate: 48000, Channels: 2}

	data, err := audio.EncodeWAV(source, audio.BIT_DEPTH_24)
	require.NoError(t, err)

	decoded, err := audio.DecodeWAV(data)
	require.NoError(t, err)

	assert.Equal(t, 2, decoded.Channels)
	assert.Equal(t, 2, decoded.Frames())
	assert.InDelta(t, -0.2, decoded.Samples[3], 1e-6)
}

func TestEncodeWAV_ClipsOutOfRange(t *testing.T) {
	t.Parallel()

	data, err := audio.EncodeWAV(mono(8000, 3, -3), audio.BIT_DEPTH_16)
	require.NoError(t, err)

	decoded, err := audio.DecodeWAV(data)
	require.NoError(t, err)

	assert.InDelta(t, 1.0, decoded.Samples[0], 1e-4)
	assert.InDelta(t, -1.0, decoded.Samples[1], 1e-4)
}

func TestEncodeWAV_RejectsBadInput(t *testing.T) {
	t.Parallel()

	_, err := audio.EncodeWAV(mono(8000, 0), 12)
	require.ErrorIs(t, err, audio.ErrUnsupportedFormat)

	_, err = audio.EncodeWAV(mono(8000, 0), audio.BIT_DEPTH_8)
	require.ErrorIs(t, err, audio.ErrUnsupportedFormat)

	_, err = audio.EncodeWAV(audio.Buffer{Samples: nil, SampleRate: 0, Channels: 1}, audio.BIT_DEPTH_16)
	require.ErrorIs(t, err, audio.ErrInvalidBuffer)
}

func TestDecodeWAV_RejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := audio.DecodeWAV([]byte("definitely not a wave file"))
	require.ErrorIs(t, err, audio.ErrUnsupportedFormat)

	_, err = audio.DecodeWAV(nil)
	require.Error(t, err)
}

// floatWAV builds an IEEE float WAV file (format tag 3).
func floatWAV(t *testing.T, rate, bits int, samples ...float64) []byte {
	t.Helper()

	var payload bytes.Buffer

	for _, sample := range samples {
		if bits == 32 {
			require.NoError(t, binary.Write(&payload, binary.LittleEndian, math.Float32bits(float32(sample))))
		} else {
			require.NoError(t, binary.Write(&payload, binary.LittleEndian, math.Float64bits(sample)))
		}
	}

	blockAlign := bits / 8

	var file bytes.Buffer

	file.WriteString("RIFF")
	require.NoError(t, binary.Write(&file, binary.LittleEndian, uint32(36+payload.Len())))
	file.WriteString("WAVEfmt ")

	for _, field := range []any{
		uint32(16), uint16(3), uint16(1), uint32(rate),
		uint32(rate * blockAlign), uint16(blockAlign), uint16(bits),
	} {
		require.NoError(t, binary.Write(&file, binary.LittleEndian, field))
	}

	file.WriteString("data")
	require.NoError(t, binary.Write(&file, binary.LittleEndian, uint32(payload.Len())))
	file.Write(payload.Bytes())

	return file.Bytes()
}

func TestDecodeWAV_IEEEFloat(t *testing.T) {
	t.Parallel()

	samples := []float64{0.5, -0.25, 1, 0, -1}

	for _, bits := range []int{32, 64} {
		buffer, err := audio.DecodeWAV(floatWAV(t, 8000, bits, samples...))
		require.NoError(t, err, "bits %d", bits)

		assert.Equal(t, 8000, buffer.SampleRate)
		assert.Equal(t, 1, buffer.Channels)
		assert.Equal(t, samples, buffer.Samples, "bits %d", bits)
	}
}

func TestDecodeWAV_IEEEFloatRejectsOddDepth(t *testing.T) {
	t.Parallel()

	data := floatWAV(t, 8000, 32, 0.5, 0.5)
	// patch the bit depth field to 16
	binary.LittleEndian.PutUint16(data[34:], 16)

	_, err := audio.DecodeWAV(data)
	require.ErrorIs(t, err, audio.ErrUnsupportedFormat)
}
