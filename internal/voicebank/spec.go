package voicebank

// SpecKind identifies the shape of a ClipSpec.
type SpecKind int

const (
	// KindSingle is a single clip identifier.
	KindSingle SpecKind = iota
	// KindSequence is an ordered list of clips that are concatenated.
	KindSequence
	// KindRandom picks one alternative uniformly at every resolution.
	KindRandom
)

// RandomMarker is the first list element that turns a special entry into a
// random-choice spec.
const RandomMarker = "RANDOM"

// ClipSpec is the target of a special pattern: one clip, an ordered list of
// clips, or a random choice between alternatives.
type ClipSpec struct {
	Kind         SpecKind
	Clips        []string
	Alternatives []ClipSpec
}

// Single returns a spec resolving to exactly one clip.
func Single(id string) ClipSpec {
	return ClipSpec{Kind: KindSingle, Clips: []string{id}, Alternatives: nil}
}

// Sequence returns a spec resolving to the given clips in order.
func Sequence(ids ...string) ClipSpec {
	return ClipSpec{Kind: KindSequence, Clips: append([]string(nil), ids...), Alternatives: nil}
}

// Random returns a spec that resolves to one of the alternatives.
func Random(alternatives ...ClipSpec) ClipSpec {
	return ClipSpec{Kind: KindRandom, Clips: nil, Alternatives: append([]ClipSpec(nil), alternatives...)}
}

// PatternEntry couples a special pattern source with its clip spec.
// Index is the declaration position in the voicebank file.
type PatternEntry struct {
	Source string
	Spec   ClipSpec
	Index  int
}

func (s ClipSpec) validate() error {
	switch s.Kind {
	case KindSingle, KindSequence:
		return validateClips(s.Clips)
	case KindRandom:
		if len(s.Alternatives) == 0 {
			return errRandomWithoutAlternatives
		}

		for _, alternative := range s.Alternatives {
			if alternative.Kind == KindRandom {
				return errNestedRandom
			}

			err := alternative.validate()
			if err != nil {
				return err
			}
		}

		return nil
	default:
		return errUnknownSpecKind
	}
}

func validateClips(ids []string) error {
	if len(ids) == 0 {
		return errEmptyClipList
	}

	for _, id := range ids {
		if id == "" {
			return errEmptyClipID
		}
	}

	return nil
}
