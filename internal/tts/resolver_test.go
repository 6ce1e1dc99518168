package tts_test

import (
	"testing"

	"github.com/AS042971/otto/internal/tts"
	"github.com/AS042971/otto/internal/tts/text"
	"github.com/AS042971/otto/internal/voicebank"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clipRefs(ids ...string) []tts.ClipRef {
	refs := make([]tts.ClipRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, tts.ClipRef{Kind: tts.RefClip, ID: id})
	}

	return refs
}

func special(pattern string) text.Fragment {
	return text.Fragment{Text: pattern, Pattern: pattern, Kind: text.Special}
}

func literal(input string) text.Fragment {
	return text.Fragment{Text: input, Pattern: "", Kind: text.Literal}
}

func TestResolver_Literal(t *testing.T) {
	t.Parallel()

	bank := newBank(t, map[string]string{"ni3": "ni.wav", "hao3": "hao.wav"})
	resolver := tts.NewResolver(bank, splitConverter{"nihao": {"ni3", "hao3"}}, nil)

	refs, err := resolver.Resolve(literal("nihao"))
	require.NoError(t, err)

	assert.Equal(t, clipRefs("ni.wav", "hao.wav"), refs)
}

func TestResolver_UnknownSyllableIsSilence(t *testing.T) {
	t.Parallel()

	bank := newBank(t, map[string]string{"ni3": "ni.wav"})
	resolver := tts.NewResolver(bank, splitConverter{}, nil)

	refs, err := resolver.Resolve(literal("ni3 xyz ni3"))
	require.NoError(t, err)

	assert.Equal(t, []tts.ClipRef{
		{Kind: tts.RefClip, ID: "ni.wav"},
		{Kind: tts.RefSilence, ID: ""},
		{Kind: tts.RefClip, ID: "ni.wav"},
	}, refs)
}

func TestResolver_SpecialSingleAndSequence(t *testing.T) {
	t.Parallel()

	bank := newBank(t, nil,
		entry("ha+", voicebank.Single("laugh.wav")),
		entry("duo", voicebank.Sequence("x.wav", "y.wav")),
	)
	resolver := tts.NewResolver(bank, splitConverter{}, nil)

	refs, err := resolver.Resolve(special("ha+"))
	require.NoError(t, err)
	assert.Equal(t, clipRefs("laugh.wav"), refs)

	refs, err = resolver.Resolve(special("duo"))
	require.NoError(t, err)
	assert.Equal(t, clipRefs("x.wav", "y.wav"), refs)
}

func TestResolver_UnknownPattern(t *testing.T) {
	t.Parallel()

	resolver := tts.NewResolver(newBank(t, nil), splitConverter{}, nil)

	_, err := resolver.Resolve(special("nope"))
	require.ErrorIs(t, err, tts.ErrUnknownPattern)
}

func TestResolver_RandomContainment(t *testing.T) {
	t.Parallel()

	bank := newBank(t, nil, entry("greet", voicebank.Random(
		voicebank.Single("a.wav"),
		voicebank.Sequence("b.wav", "c.wav"),
	)))
	resolver := tts.NewResolver(bank, splitConverter{}, tts.NewLockedRand(7))

	seen := map[string]int{}

	for range 200 {
		refs, err := resolver.Resolve(special("greet"))
		require.NoError(t, err)

		switch len(refs) {
		case 1:
			assert.Equal(t, clipRefs("a.wav"), refs)
			seen["a"]++
		case 2:
			assert.Equal(t, clipRefs("b.wav", "c.wav"), refs)
			seen["bc"]++
		default:
			t.Fatalf("unexpected resolution %v", refs)
		}
	}

	assert.Positive(t, seen["a"])
	assert.Positive(t, seen["bc"])
}

func TestResolver_RandomIsNotMemoized(t *testing.T) {
	t.Parallel()

	bank := newBank(t, nil, entry("greet", voicebank.Random(voicebank.Single("a.wav"), voicebank.Single("b.wav"))))
	resolver := tts.NewResolver(bank, splitConverter{}, &sequenceChooser{choices: []int{0, 1, 1, 0}})

	var ids []string

	for range 4 {
		refs, err := resolver.Resolve(special("greet"))
		require.NoError(t, err)

		ids = append(ids, refs[0].ID)
	}

	assert.Equal(t, []string{"a.wav", "b.wav", "b.wav", "a.wav"}, ids)
}

func TestResolver_SeededReproducibility(t *testing.T) {
	t.Parallel()

	bank := newBank(t, nil, entry("greet", voicebank.Random(
		voicebank.Single("a.wav"),
		voicebank.Single("b.wav"),
		voicebank.Single("c.wav"),
	)))

	draw := func(seed uint64) []string {
		resolver := tts.NewResolver(bank, splitConverter{}, tts.NewLockedRand(seed))
		ids := make([]string, 0, 50)

		for range 50 {
			refs, err := resolver.Resolve(special("greet"))
			require.NoError(t, err)

			ids = append(ids, refs[0].ID)
		}

		return ids
	}

	assert.Equal(t, draw(42), draw(42))
}

func TestResolver_LiteralFilter(t *testing.T) {
	t.Parallel()

	bank := newBank(t, map[string]string{"er4": "er.wav", "shi2": "shi.wav"})
	converter := splitConverter{"二十": {"er4", "shi2"}}
	reader := text.NewNumberReader()

	resolver := tts.NewResolver(bank, converter, nil, tts.WithLiteralFilter(reader.ReadNumbers))

	refs, err := resolver.Resolve(literal("20"))
	require.NoError(t, err)

	assert.Equal(t, clipRefs("er.wav", "shi.wav"), refs)
}
