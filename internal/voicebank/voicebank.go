// Package voicebank holds the immutable clip configuration that drives synthesis:
// the syllable map, the ordered special patterns and the audio parameters.
//
// A Voicebank is built once at startup and only read afterwards, so it is shared
// between goroutines without synchronization.
package voicebank

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"unicode/utf8"
)

const (
	maxPort = 65535
)

// ErrInvalidConfig is returned for malformed or missing voicebank fields.
var ErrInvalidConfig = errors.New("invalid voicebank configuration")

var (
	errRandomWithoutAlternatives = errors.New("random spec needs at least one alternative")
	errNestedRandom              = errors.New("random alternatives cannot be random specs")
	errUnknownSpecKind           = errors.New("unknown clip spec kind")
	errEmptyClipList             = errors.New("clip list cannot be empty")
	errEmptyClipID               = errors.New("clip identifier cannot be empty")
)

// Error message formats.
const (
	errFmtSampleRate       = "%w: sampleRate must be positive, got %d"
	errFmtSilentDuration   = "%w: silentDuration must be non-negative, got %d"
	errFmtPort             = "%w: port must be between 1 and %d, got %d"
	errFmtSyllableClip     = "%w: syllable %q has an empty clip identifier"
	errFmtEmptySyllable    = "%w: empty syllable key"
	errFmtEmptyPattern     = "%w: special pattern at position %d is empty"
	errFmtDuplicatePattern = "%w: special pattern %q declared twice"
	errFmtBadPattern       = "%w: special pattern %q does not compile: %w"
	errFmtBadSpec          = "%w: special pattern %q: %w"
)

// Params is the raw material of a Voicebank. Special entries keep their
// declaration order; their Index fields are assigned by New.
type Params struct {
	Syllables      map[string]string
	Special        []PatternEntry
	Port           int
	SampleRate     int
	SilentDuration int
}

// Voicebank is the validated, read-only clip configuration.
type Voicebank struct {
	syllables      map[string]string
	special        map[string]ClipSpec
	patterns       []PatternEntry
	port           int
	sampleRate     int
	silentDuration int
}

// New validates params and builds a Voicebank. Patterns are ordered by
// descending character length, then by declaration order.
func New(params Params) (*Voicebank, error) {
	err := validateParams(params)
	if err != nil {
		return nil, err
	}

	special := make(map[string]ClipSpec, len(params.Special))
	patterns := make([]PatternEntry, 0, len(params.Special))

	for index, entry := range params.Special {
		entryErr := validateEntry(entry, index, special)
		if entryErr != nil {
			return nil, entryErr
		}

		special[entry.Source] = entry.Spec
		patterns = append(patterns, PatternEntry{Source: entry.Source, Spec: entry.Spec, Index: index})
	}

	slices.SortFunc(patterns, ComparePatterns)

	return &Voicebank{
		syllables:      maps.Clone(params.Syllables),
		special:        special,
		patterns:       patterns,
		port:           params.Port,
		sampleRate:     params.SampleRate,
		silentDuration: params.SilentDuration,
	}, nil
}

// ComparePatterns orders entries by the composite key (-length, declaration index).
func ComparePatterns(left, right PatternEntry) int {
	byLength := cmp.Compare(utf8.RuneCountInString(right.Source), utf8.RuneCountInString(left.Source))
	if byLength != 0 {
		return byLength
	}

	return cmp.Compare(left.Index, right.Index)
}

func validateParams(params Params) error {
	if params.SampleRate <= 0 {
		return fmt.Errorf(errFmtSampleRate, ErrInvalidConfig, params.SampleRate)
	}

	if params.SilentDuration < 0 {
		return fmt.Errorf(errFmtSilentDuration, ErrInvalidConfig, params.SilentDuration)
	}

	if params.Port <= 0 || params.Port > maxPort {
		return fmt.Errorf(errFmtPort, ErrInvalidConfig, maxPort, params.Port)
	}

	for syllable, clip := range params.Syllables {
		if syllable == "" {
			return fmt.Errorf(errFmtEmptySyllable, ErrInvalidConfig)
		}

		if clip == "" {
			return fmt.Errorf(errFmtSyllableClip, ErrInvalidConfig, syllable)
		}
	}

	return nil
}

func validateEntry(entry PatternEntry, index int, seen map[string]ClipSpec) error {
	if entry.Source == "" {
		return fmt.Errorf(errFmtEmptyPattern, ErrInvalidConfig, index)
	}

	if _, duplicate := seen[entry.Source]; duplicate {
		return fmt.Errorf(errFmtDuplicatePattern, ErrInvalidConfig, entry.Source)
	}

	_, compileErr := regexp.Compile(entry.Source)
	if compileErr != nil {
		return fmt.Errorf(errFmtBadPattern, ErrInvalidConfig, entry.Source, compileErr)
	}

	specErr := entry.Spec.validate()
	if specErr != nil {
		return fmt.Errorf(errFmtBadSpec, ErrInvalidConfig, entry.Source, specErr)
	}

	return nil
}

// Port is the listening port requested by the voicebank file.
func (v *Voicebank) Port() int {
	return v.port
}

// SampleRate is the rate every clip is resampled to.
func (v *Voicebank) SampleRate() int {
	return v.sampleRate
}

// SilentDuration is the length in milliseconds of the silence used for unknown syllables.
func (v *Voicebank) SilentDuration() int {
	return v.silentDuration
}

// Clip returns the clip identifier mapped to a syllable.
func (v *Voicebank) Clip(syllable string) (string, bool) {
	id, ok := v.syllables[syllable]

	return id, ok
}

// Special returns the spec declared for a canonical pattern source.
func (v *Voicebank) Special(pattern string) (ClipSpec, bool) {
	spec, ok := v.special[pattern]

	return spec, ok
}

// Patterns returns a copy of the special entries in matching order.
func (v *Voicebank) Patterns() []PatternEntry {
	return slices.Clone(v.patterns)
}

// SyllableCount reports how many syllables have a clip.
func (v *Voicebank) SyllableCount() int {
	return len(v.syllables)
}
