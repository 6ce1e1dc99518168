package tts_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/AS042971/otto/internal/core"
	"github.com/AS042971/otto/internal/tts/audio"
	"github.com/AS042971/otto/internal/voicebank"
	"github.com/book-expert/logger"
	"github.com/stretchr/testify/require"
)

const testSampleRate = 8000

// memoryStore serves clips from a map and records every read.
type memoryStore struct {
	mu    sync.Mutex
	clips map[string][]byte
	reads []string
}

func (m *memoryStore) ReadClip(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reads = append(m.reads, id)

	data, ok := m.clips[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrAssetNotFound, id)
	}

	return data, nil
}

// splitConverter maps whole words through a table and falls back to splitting
// on spaces.
type splitConverter map[string][]string

func (c splitConverter) Syllables(input string) []string {
	if syllables, ok := c[input]; ok {
		return syllables
	}

	return strings.Fields(input)
}

// sequenceChooser replays a fixed list of choices.
type sequenceChooser struct {
	mu      sync.Mutex
	choices []int
}

func (s *sequenceChooser) IntN(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	choice := s.choices[0] % n
	s.choices = append(s.choices[1:], s.choices[0])

	return choice
}

// testClips returns distinct WAV clips. Every clip peaks at full scale and has
// a unique tail, so normalized buffers can be traced back to their sources.
func testClips(t *testing.T, ids ...string) map[string][]byte {
	t.Helper()

	clips := make(map[string][]byte, len(ids))

	for index, id := range ids {
		level := 0.1 * float64(index+1)

		data, err := audio.EncodeWAV(audio.Buffer{
			Samples:    []float64{1, -level, level / 2},
			SampleRate: testSampleRate,
			Channels:   1,
		}, audio.BIT_DEPTH_16)
		require.NoError(t, err)

		clips[id] = data
	}

	return clips
}

// normalizedClip returns the buffer the cache is expected to hold for id.
func normalizedClip(t *testing.T, clips map[string][]byte, id string) audio.Buffer {
	t.Helper()

	decoded, err := audio.DecodeWAV(clips[id])
	require.NoError(t, err)

	quality := audio.NewDefaultQuality()
	quality.SampleRate = testSampleRate

	processed, err := quality.ApplyEffects(decoded)
	require.NoError(t, err)

	return processed
}

func concatClips(t *testing.T, clips map[string][]byte, ids ...string) audio.Buffer {
	t.Helper()

	buffers := make([]audio.Buffer, 0, len(ids))
	for _, id := range ids {
		buffers = append(buffers, normalizedClip(t, clips, id))
	}

	return audio.Concat(testSampleRate, buffers...)
}

func newBank(t *testing.T, syllables map[string]string, special ...voicebank.PatternEntry) *voicebank.Voicebank {
	t.Helper()

	bank, err := voicebank.New(voicebank.Params{
		Syllables:      syllables,
		Special:        special,
		Port:           8002,
		SampleRate:     testSampleRate,
		SilentDuration: 500,
	})
	require.NoError(t, err)

	return bank
}

func entry(source string, spec voicebank.ClipSpec) voicebank.PatternEntry {
	return voicebank.PatternEntry{Source: source, Spec: spec, Index: 0}
}

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "tts-test.log")
	require.NoError(t, err)

	t.Cleanup(func() { _ = log.Close() })

	return log
}
