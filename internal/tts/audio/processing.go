// Package audio provides audio buffers, quality settings and the signal processing
// applied to every clip before it is assembled: downmixing, resampling and peak
// normalization.
package audio

import (
	"errors"
	"fmt"
	"math"
)

// Constants for default audio quality settings.
const (
	DEFAULT_SAMPLE_RATE = 44100 // Rate of the original clip bank.
	DEFAULT_BIT_DEPTH   = 16    // Bit depth of encoded output.
	DEFAULT_CHANNELS    = 1     // Clips are always assembled in mono.
	DEFAULT_HEADROOM_DB = 0.1   // Peak normalization leaves this much headroom.
)

// Constants for supported bit depths.
const (
	BIT_DEPTH_8  = 8
	BIT_DEPTH_16 = 16
	BIT_DEPTH_24 = 24
	BIT_DEPTH_32 = 32
)

// Constants for quality validation limits.
const (
	MAX_SAMPLE_RATE   = 192000
	MAX_CHANNELS      = 8
	MAX_VOLUME        = 10.0
	MAX_HEADROOM_DB   = 60.0
	MILLIS_PER_SECOND = 1000
)

// Constants for error messages and formats.
const (
	ERR_FMT_SAMPLE_RATE_RANGE = "%w: sample rate must be between 1 and %d Hz"
	ERR_FMT_BIT_DEPTH_VALUES  = "%w: bit depth must be 8, 16, 24, or 32"
	ERR_FMT_CHANNELS_RANGE    = "%w: channels must be between 1 and %d"
	ERR_FMT_VOLUME_RANGE      = "%w: volume must be between 0.0 and %.1f"
	ERR_FMT_HEADROOM_RANGE    = "%w: headroom must be between 0.0 and %.1f dB"
	ERR_FMT_BUFFER_SHAPE      = "%w: %d channels at %d Hz"
	ERR_FMT_CHANNEL_CONVERT   = "%w: cannot convert %d channels to %d"
)

// Common errors for the audio package.
var (
	ErrInvalidQuality = errors.New("invalid quality settings")
	ErrInvalidBuffer  = errors.New("invalid audio buffer")
)

// Format represents supported audio formats.
type Format string

const (
	FORMAT_WAV Format = "wav"
)

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	return "audio/" + string(f)
}

// Quality represents the target shape of every loaded clip.
type Quality struct {
	SampleRate int     `json:"sampleRate"`
	BitDepth   int     `json:"bitDepth"`
	Channels   int     `json:"channels"`
	Volume     float64 `json:"volume"`
	HeadroomDB float64 `json:"headroomDb"`
	Normalize  bool    `json:"normalize"`
}

// NewDefaultQuality provides the settings used by the original clip bank.
func NewDefaultQuality() Quality {
	return Quality{
		SampleRate: DEFAULT_SAMPLE_RATE,
		BitDepth:   DEFAULT_BIT_DEPTH,
		Channels:   DEFAULT_CHANNELS,
		Volume:     1.0,
		HeadroomDB: DEFAULT_HEADROOM_DB,
		Normalize:  true,
	}
}

// Validate checks if quality settings are within reasonable bounds.
func (q *Quality) Validate() error {
	audioParamsErr := q.validateAudioParams()
	if audioParamsErr != nil {
		return audioParamsErr
	}

	effectParamsErr := q.validateEffectParams()
	if effectParamsErr != nil {
		return effectParamsErr
	}

	return nil
}

// ApplyEffects brings a decoded buffer to the quality settings: it downmixes,
// resamples, normalizes and scales, in that order.
func (q *Quality) ApplyEffects(buffer Buffer) (Buffer, error) {
	err := q.Validate()
	if err != nil {
		return Buffer{}, err
	}

	if buffer.Channels <= 0 || buffer.SampleRate <= 0 {
		return Buffer{}, fmt.Errorf(ERR_FMT_BUFFER_SHAPE, ErrInvalidBuffer, buffer.Channels, buffer.SampleRate)
	}

	processed := buffer

	if processed.Channels != q.Channels {
		if q.Channels != 1 {
			return Buffer{}, fmt.Errorf(ERR_FMT_CHANNEL_CONVERT, ErrInvalidBuffer, processed.Channels, q.Channels)
		}

		processed = Downmix(processed)
	}

	if processed.SampleRate != q.SampleRate {
		processed = Resample(processed, q.SampleRate)
	}

	if q.Normalize {
		processed = Normalize(processed, q.HeadroomDB)
	}

	if q.Volume != 1.0 {
		processed = Gain(processed, q.Volume)
	}

	return processed, nil
}

// Downmix averages the channels of every frame into a mono buffer.
func Downmix(buffer Buffer) Buffer {
	if buffer.Channels <= 1 {
		return buffer
	}

	frames := buffer.Frames()
	samples := make([]float64, frames)

	for frame := range frames {
		sum := 0.0
		for channel := range buffer.Channels {
			sum += buffer.Samples[frame*buffer.Channels+channel]
		}

		samples[frame] = sum / float64(buffer.Channels)
	}

	return Buffer{Samples: samples, SampleRate: buffer.SampleRate, Channels: 1}
}

// Resample converts the buffer to sampleRate by linear interpolation.
func Resample(buffer Buffer, sampleRate int) Buffer {
	if buffer.SampleRate == sampleRate || sampleRate <= 0 || buffer.SampleRate <= 0 {
		return Buffer{Samples: buffer.Samples, SampleRate: buffer.SampleRate, Channels: buffer.Channels}
	}

	channels := max(buffer.Channels, 1)
	frames := len(buffer.Samples) / channels
	outFrames := int(int64(frames) * int64(sampleRate) / int64(buffer.SampleRate))
	ratio := float64(buffer.SampleRate) / float64(sampleRate)
	samples := make([]float64, outFrames*channels)

	for frame := range outFrames {
		position := float64(frame) * ratio
		index := int(position)
		fraction := position - float64(index)
		next := min(index+1, frames-1)

		for channel := range channels {
			current := buffer.Samples[index*channels+channel]
			following := buffer.Samples[next*channels+channel]
			samples[frame*channels+channel] = current + (following-current)*fraction
		}
	}

	return Buffer{Samples: samples, SampleRate: sampleRate, Channels: channels}
}

// Normalize scales the buffer so that its peak sits headroomDB below full scale.
// Silent buffers are returned unchanged.
func Normalize(buffer Buffer, headroomDB float64) Buffer {
	peak := Peak(buffer)
	if peak == 0 {
		return buffer
	}

	return Gain(buffer, dbToGain(-headroomDB)/peak)
}

// Gain multiplies every sample by factor.
func Gain(buffer Buffer, factor float64) Buffer {
	samples := make([]float64, len(buffer.Samples))
	for index, sample := range buffer.Samples {
		samples[index] = sample * factor
	}

	return Buffer{Samples: samples, SampleRate: buffer.SampleRate, Channels: buffer.Channels}
}

// Peak returns the largest absolute sample value.
func Peak(buffer Buffer) float64 {
	peak := 0.0
	for _, sample := range buffer.Samples {
		peak = max(peak, math.Abs(sample))
	}

	return peak
}

func dbToGain(db float64) float64 {
	return math.Pow(10, db/20)
}

// validateAudioParams checks core audio settings.
func (q *Quality) validateAudioParams() error {
	sampleRateErr := validateSampleRate(q.SampleRate)
	if sampleRateErr != nil {
		return sampleRateErr
	}

	bitDepthErr := validateBitDepth(q.BitDepth)
	if bitDepthErr != nil {
		return bitDepthErr
	}

	channelsErr := validateChannels(q.Channels)
	if channelsErr != nil {
		return channelsErr
	}

	return nil
}

// validateEffectParams checks audio effect settings.
func (q *Quality) validateEffectParams() error {
	volumeErr := validateVolume(q.Volume)
	if volumeErr != nil {
		return volumeErr
	}

	headroomErr := validateHeadroom(q.HeadroomDB)
	if headroomErr != nil {
		return headroomErr
	}

	return nil
}

//
// Validation Helpers
//

func validateSampleRate(sampleRate int) error {
	if sampleRate <= 0 || sampleRate > MAX_SAMPLE_RATE {
		return fmt.Errorf(
			ERR_FMT_SAMPLE_RATE_RANGE,
			ErrInvalidQuality,
			MAX_SAMPLE_RATE,
		)
	}

	return nil
}

func validateBitDepth(bitDepth int) error {
	switch bitDepth {
	case BIT_DEPTH_8, BIT_DEPTH_16, BIT_DEPTH_24, BIT_DEPTH_32:
		return nil
	default:
		return fmt.Errorf(ERR_FMT_BIT_DEPTH_VALUES, ErrInvalidQuality)
	}
}

func validateChannels(channels int) error {
	if channels <= 0 || channels > MAX_CHANNELS {
		return fmt.Errorf(ERR_FMT_CHANNELS_RANGE, ErrInvalidQuality, MAX_CHANNELS)
	}

	return nil
}

func validateVolume(volume float64) error {
	if volume < 0.0 || volume > MAX_VOLUME {
		return fmt.Errorf(ERR_FMT_VOLUME_RANGE, ErrInvalidQuality, MAX_VOLUME)
	}

	return nil
}

func validateHeadroom(headroom float64) error {
	if headroom < 0.0 || headroom > MAX_HEADROOM_DB {
		return fmt.Errorf(ERR_FMT_HEADROOM_RANGE, ErrInvalidQuality, MAX_HEADROOM_DB)
	}

	return nil
}
