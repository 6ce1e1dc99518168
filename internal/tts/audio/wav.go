package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAV audio format tags.
const (
	wavFormatPCM        = 1
	wavFormatIEEEFloat  = 3
	wavFormatExtensible = 0xFFFE

	floatBitDepth64 = 64
)

// Error messages and formats for the WAV codec.
const (
	ERR_FMT_NOT_WAV          = "%w: not a RIFF/WAVE file"
	ERR_FMT_WAV_FORMAT       = "%w: unsupported WAV format tag %d"
	ERR_FMT_WAV_BIT_DEPTH    = "%w: unsupported bit depth %d"
	ERR_FMT_WAV_READ         = "failed to read PCM data: %w"
	ERR_FMT_WAV_WRITE        = "failed to write PCM data: %w"
	ERR_FMT_WAV_CLOSE        = "failed to finalize WAV file: %w"
	ERR_FMT_WAV_SEEK_INVALID = "invalid seek to %d"
)

// ErrUnsupportedFormat is returned for audio data the codec cannot handle.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// DecodeWAV decodes integer PCM or IEEE float WAV data into a buffer with
// amplitudes in [-1, 1]. Float samples are passed through unscaled.
func DecodeWAV(data []byte) (Buffer, error) {
	decoder := wav.NewDecoder(bytes.NewReader(data))
	if !decoder.IsValidFile() {
		return Buffer{}, fmt.Errorf(ERR_FMT_NOT_WAV, ErrUnsupportedFormat)
	}

	if decoder.WavAudioFormat == wavFormatIEEEFloat {
		return decodeFloatWAV(decoder)
	}

	if decoder.WavAudioFormat != wavFormatPCM && decoder.WavAudioFormat != wavFormatExtensible {
		return Buffer{}, fmt.Errorf(ERR_FMT_WAV_FORMAT, ErrUnsupportedFormat, decoder.WavAudioFormat)
	}

	pcm, err := decoder.FullPCMBuffer()
	if err != nil {
		return Buffer{}, fmt.Errorf(ERR_FMT_WAV_READ, err)
	}

	bitDepth := int(decoder.BitDepth)

	scale, offset, err := sampleScale(bitDepth)
	if err != nil {
		return Buffer{}, err
	}

	samples := make([]float64, len(pcm.Data))
	for index, value := range pcm.Data {
		samples[index] = (float64(value) - offset) / scale
	}

	return Buffer{
		Samples:    samples,
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
	}, nil
}

func decodeFloatWAV(decoder *wav.Decoder) (Buffer, error) {
	bitDepth := int(decoder.BitDepth)
	if bitDepth != BIT_DEPTH_32 && bitDepth != floatBitDepth64 {
		return Buffer{}, fmt.Errorf(ERR_FMT_WAV_BIT_DEPTH, ErrUnsupportedFormat, bitDepth)
	}

	err := decoder.FwdToPCM()
	if err != nil {
		return Buffer{}, fmt.Errorf(ERR_FMT_WAV_READ, err)
	}

	if decoder.PCMChunk == nil {
		return Buffer{}, fmt.Errorf(ERR_FMT_NOT_WAV, ErrUnsupportedFormat)
	}

	raw := make([]byte, decoder.PCMChunk.Size)

	_, err = io.ReadFull(decoder.PCMChunk.R, raw)
	if err != nil {
		return Buffer{}, fmt.Errorf(ERR_FMT_WAV_READ, err)
	}

	width := bitDepth / 8
	samples := make([]float64, len(raw)/width)

	for index := range samples {
		sample := raw[index*width:]
		if bitDepth == BIT_DEPTH_32 {
			samples[index] = float64(math.Float32frombits(binary.LittleEndian.Uint32(sample)))
		} else {
			samples[index] = math.Float64frombits(binary.LittleEndian.Uint64(sample))
		}
	}

	return Buffer{
		Samples:    samples,
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
	}, nil
}

// EncodeWAV encodes the buffer as integer PCM WAV at bitDepth (16, 24 or 32).
// Samples outside [-1, 1] are clipped.
func EncodeWAV(buffer Buffer, bitDepth int) ([]byte, error) {
	if bitDepth == BIT_DEPTH_8 {
		return nil, fmt.Errorf(ERR_FMT_WAV_BIT_DEPTH, ErrUnsupportedFormat, bitDepth)
	}

	scale, _, err := sampleScale(bitDepth)
	if err != nil {
		return nil, err
	}

	if buffer.Channels <= 0 || buffer.SampleRate <= 0 {
		return nil, fmt.Errorf(ERR_FMT_BUFFER_SHAPE, ErrInvalidBuffer, buffer.Channels, buffer.SampleRate)
	}

	data := make([]int, len(buffer.Samples))
	for index, sample := range buffer.Samples {
		clipped := math.Max(-1, math.Min(1, sample))
		data[index] = int(math.Round(clipped * (scale - 1)))
	}

	sink := &memorySink{data: nil, position: 0}
	encoder := wav.NewEncoder(sink, buffer.SampleRate, bitDepth, buffer.Channels, wavFormatPCM)

	writeErr := encoder.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: buffer.Channels, SampleRate: buffer.SampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	})
	if writeErr != nil {
		return nil, fmt.Errorf(ERR_FMT_WAV_WRITE, writeErr)
	}

	closeErr := encoder.Close()
	if closeErr != nil {
		return nil, fmt.Errorf(ERR_FMT_WAV_CLOSE, closeErr)
	}

	return sink.data, nil
}

// sampleScale returns the full-scale magnitude and the zero offset for a bit
// depth. 8-bit WAV samples are unsigned.
func sampleScale(bitDepth int) (scale, offset float64, err error) {
	switch bitDepth {
	case BIT_DEPTH_8:
		return 128, 128, nil
	case BIT_DEPTH_16, BIT_DEPTH_24, BIT_DEPTH_32:
		return math.Exp2(float64(bitDepth - 1)), 0, nil
	default:
		return 0, 0, fmt.Errorf(ERR_FMT_WAV_BIT_DEPTH, ErrUnsupportedFormat, bitDepth)
	}
}

// memorySink is an in-memory io.WriteSeeker; the WAV encoder seeks back to
// patch chunk sizes once all samples are written.
type memorySink struct {
	data     []byte
	position int
}

func (m *memorySink) Write(p []byte) (int, error) {
	end := m.position + len(p)
	if end > len(m.data) {
		m.data = append(m.data, make([]byte, end-len(m.data))...)
	}

	copy(m.data[m.position:], p)
	m.position = end

	return len(p), nil
}

func (m *memorySink) Seek(offset int64, whence int) (int64, error) {
	var target int64

	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = int64(m.position) + offset
	case io.SeekEnd:
		target = int64(len(m.data)) + offset
	default:
		return 0, fmt.Errorf(ERR_FMT_WAV_SEEK_INVALID, offset)
	}

	if target < 0 {
		return 0, fmt.Errorf(ERR_FMT_WAV_SEEK_INVALID, target)
	}

	m.position = int(target)

	return target, nil
}
