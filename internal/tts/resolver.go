package tts

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/AS042971/otto/internal/core"
	"github.com/AS042971/otto/internal/tts/text"
	"github.com/AS042971/otto/internal/voicebank"
)

// ErrUnknownPattern is returned when a special fragment names a pattern the
// voicebank does not declare.
var ErrUnknownPattern = errors.New("unknown special pattern")

// RefKind tells whether a clip reference points at a recorded clip or at silence.
type RefKind int

const (
	// RefClip is a clip identifier to load from the asset store.
	RefClip RefKind = iota
	// RefSilence stands in for a syllable that has no clip.
	RefSilence
)

// ClipRef is one resolved unit of audio.
type ClipRef struct {
	Kind RefKind
	ID   string
}

// Chooser picks an index in [0, n). It is used to draw random alternatives.
type Chooser interface {
	IntN(n int) int
}

// LockedRand is a Chooser backed by a PCG generator and safe for concurrent use.
type LockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewLockedRand returns a generator seeded with seed.
func NewLockedRand(seed uint64) *LockedRand {
	return &LockedRand{mu: sync.Mutex{}, rng: rand.New(rand.NewPCG(seed, seed))}
}

// IntN returns a uniformly distributed index in [0, n).
func (r *LockedRand) IntN(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.rng.IntN(n)
}

type globalRand struct{}

func (globalRand) IntN(n int) int {
	return rand.IntN(n)
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLiteralFilter rewrites literal text before it is converted to syllables.
func WithLiteralFilter(filter func(string) string) ResolverOption {
	return func(r *Resolver) {
		r.literalFilter = filter
	}
}

// Resolver turns fragments into ordered clip references.
type Resolver struct {
	bank          *voicebank.Voicebank
	converter     core.SyllableConverter
	chooser       Chooser
	literalFilter func(string) string
}

// NewResolver creates a Resolver. A nil chooser draws from the process-wide
// random source.
func NewResolver(
	bank *voicebank.Voicebank,
	converter core.SyllableConverter,
	chooser Chooser,
	opts ...ResolverOption,
) *Resolver {
	if chooser == nil {
		chooser = globalRand{}
	}

	resolver := &Resolver{
		bank:          bank,
		converter:     converter,
		chooser:       chooser,
		literalFilter: nil,
	}

	for _, opt := range opts {
		opt(resolver)
	}

	return resolver
}

// Resolve expands a fragment. Random specs draw a fresh alternative on every
// call; syllables missing from the voicebank resolve to silence.
func (r *Resolver) Resolve(fragment text.Fragment) ([]ClipRef, error) {
	key := fragment.Key()

	if fragment.Kind == text.Special {
		spec, ok := r.bank.Special(key)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPattern, key)
		}

		return r.expand(spec), nil
	}

	literal := key
	if r.literalFilter != nil {
		literal = r.literalFilter(literal)
	}

	syllables := r.converter.Syllables(literal)
	refs := make([]ClipRef, 0, len(syllables))

	for _, syllable := range syllables {
		id, ok := r.bank.Clip(syllable)
		if !ok {
			refs = append(refs, ClipRef{Kind: RefSilence, ID: ""})

			continue
		}

		refs = append(refs, ClipRef{Kind: RefClip, ID: id})
	}

	return refs, nil
}

func (r *Resolver) expand(spec voicebank.ClipSpec) []ClipRef {
	if spec.Kind == voicebank.KindRandom {
		spec = spec.Alternatives[r.chooser.IntN(len(spec.Alternatives))]
	}

	refs := make([]ClipRef, 0, len(spec.Clips))
	for _, id := range spec.Clips {
		refs = append(refs, ClipRef{Kind: RefClip, ID: id})
	}

	return refs
}
