// Package tts assembles speech from pre-recorded clips. Input text is split into
// special and literal fragments, every fragment is resolved to clip references,
// and the referenced clips are concatenated in order.
package tts

import (
	"context"
	"fmt"

	"github.com/AS042971/otto/internal/core"
	"github.com/AS042971/otto/internal/tts/audio"
	"github.com/AS042971/otto/internal/tts/clip"
	"github.com/AS042971/otto/internal/tts/text"
	"github.com/AS042971/otto/internal/voicebank"
	"github.com/book-expert/logger"
)

const (
	errFmtMatcher  = "failed to build pattern matcher: %w"
	errFmtCache    = "failed to create clip cache: %w"
	errFmtResolve  = "failed to resolve fragment %q: %w"
	errFmtLoad     = "failed to load clip for fragment %q: %w"
	errFmtEncode   = "failed to encode synthesized audio: %w"
	logSynthesized = "Synthesized %d fragments (%d clips, %d cached) into %s of audio"
	logReady       = "Synthesizer ready with %d special patterns at %d Hz"
)

// Option configures a Synthesizer.
type Option func(*options)

type options struct {
	chooser     Chooser
	readNumbers bool
	quality     audio.Quality
}

// WithChooser sets the source used to draw random alternatives.
func WithChooser(chooser Chooser) Option {
	return func(o *options) {
		o.chooser = chooser
	}
}

// WithNumberReading makes Arabic numerals in literal text read as Chinese numerals.
func WithNumberReading(enabled bool) Option {
	return func(o *options) {
		o.readNumbers = enabled
	}
}

// WithQuality overrides the clip processing settings. The sample rate always
// comes from the voicebank.
func WithQuality(quality audio.Quality) Option {
	return func(o *options) {
		o.quality = quality
	}
}

// Synthesizer turns text into a single mono waveform. It implements
// core.TTSProcessor and is safe for concurrent use.
type Synthesizer struct {
	bank     *voicebank.Voicebank
	matcher  *text.Matcher
	resolver *Resolver
	cache    *clip.Cache
	bitDepth int
	log      *logger.Logger
}

var _ core.TTSProcessor = (*Synthesizer)(nil)

// New creates a Synthesizer over bank, reading clips from store.
func New(
	bank *voicebank.Voicebank,
	store core.AssetStore,
	converter core.SyllableConverter,
	log *logger.Logger,
	opts ...Option,
) (*Synthesizer, error) {
	settings := options{chooser: nil, readNumbers: false, quality: audio.NewDefaultQuality()}
	for _, opt := range opts {
		opt(&settings)
	}

	settings.quality.SampleRate = bank.SampleRate()
	settings.quality.Channels = audio.DEFAULT_CHANNELS

	matcher, err := text.NewMatcher(bank.Patterns())
	if err != nil {
		return nil, fmt.Errorf(errFmtMatcher, err)
	}

	cache, err := clip.New(store, settings.quality, bank.SilentDuration(), log)
	if err != nil {
		return nil, fmt.Errorf(errFmtCache, err)
	}

	var resolverOpts []ResolverOption
	if settings.readNumbers {
		resolverOpts = append(resolverOpts, WithLiteralFilter(text.NewNumberReader().ReadNumbers))
	}

	if log != nil {
		log.Info(logReady, matcher.Len(), bank.SampleRate())
	}

	return &Synthesizer{
		bank:     bank,
		matcher:  matcher,
		resolver: NewResolver(bank, converter, settings.chooser, resolverOpts...),
		cache:    cache,
		bitDepth: settings.quality.BitDepth,
		log:      log,
	}, nil
}

// Synthesize produces the waveform for input. Empty input yields an empty buffer.
// Any clip that cannot be loaded fails the whole call.
func (s *Synthesizer) Synthesize(ctx context.Context, input string) (audio.Buffer, error) {
	fragments := s.matcher.Segment(input)
	buffers := make([]audio.Buffer, 0, len(fragments))

	for _, fragment := range fragments {
		refs, err := s.resolver.Resolve(fragment)
		if err != nil {
			return audio.Buffer{}, fmt.Errorf(errFmtResolve, fragment.Text, err)
		}

		for _, ref := range refs {
			if ref.Kind == RefSilence {
				buffers = append(buffers, s.cache.Silence())

				continue
			}

			buffer, loadErr := s.cache.Load(ctx, ref.ID)
			if loadErr != nil {
				return audio.Buffer{}, fmt.Errorf(errFmtLoad, fragment.Text, loadErr)
			}

			buffers = append(buffers, buffer)
		}
	}

	result := audio.Concat(s.bank.SampleRate(), buffers...)

	if s.log != nil {
		s.log.Info(logSynthesized, len(fragments), len(buffers), s.cache.Len(), result.Duration())
	}

	return result, nil
}

// Process synthesizes text and encodes the result as a PCM WAV file.
func (s *Synthesizer) Process(ctx context.Context, input []byte) ([]byte, error) {
	buffer, err := s.Synthesize(ctx, string(input))
	if err != nil {
		return nil, err
	}

	data, err := audio.EncodeWAV(buffer, s.bitDepth)
	if err != nil {
		return nil, fmt.Errorf(errFmtEncode, err)
	}

	return data, nil
}

// Fragments returns the segmentation of input without resolving it.
func (s *Synthesizer) Fragments(input string) []text.Fragment {
	return s.matcher.Segment(input)
}

// Voicebank returns the configuration the synthesizer was built from.
func (s *Synthesizer) Voicebank() *voicebank.Voicebank {
	return s.bank
}
