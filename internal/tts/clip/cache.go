// Package clip loads pre-recorded clips from an asset store and keeps the
// processed buffers in memory for the lifetime of the process.
package clip

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/AS042971/otto/internal/core"
	"github.com/AS042971/otto/internal/tts/audio"
	"github.com/book-expert/logger"
)

// ErrDecode is returned when clip bytes are not a readable WAV file.
var ErrDecode = errors.New("failed to decode clip")

const (
	errFmtRead    = "%w: %s: %w"
	errFmtAborted = "read of clip %s aborted: %w"
	errFmtDecode  = "%w: %s: %w"
	errFmtProcess = "failed to process clip %s: %w"
	logLoaded     = "Loaded clip %s (%d frames at %d Hz)"
)

// Cache maps clip identifiers to normalized mono buffers at the target sample
// rate. Entries are never evicted. Concurrent loads of the same clip may both
// reach the store; the buffers they produce are identical so the last write wins.
type Cache struct {
	store   core.AssetStore
	quality audio.Quality
	log     *logger.Logger
	silence func() audio.Buffer

	mu    sync.RWMutex
	clips map[string]audio.Buffer
}

// New creates a Cache reading from store. silentMs is the length of the silence
// buffer returned by Silence.
func New(store core.AssetStore, quality audio.Quality, silentMs int, log *logger.Logger) (*Cache, error) {
	err := quality.Validate()
	if err != nil {
		return nil, err
	}

	rate := quality.SampleRate

	return &Cache{
		store:   store,
		quality: quality,
		log:     log,
		silence: sync.OnceValue(func() audio.Buffer { return audio.NewSilence(silentMs, rate) }),
		mu:      sync.RWMutex{},
		clips:   make(map[string]audio.Buffer),
	}, nil
}

// Load returns the processed buffer for id, reading and decoding it on first use.
// The returned buffer is shared and must not be modified.
func (c *Cache) Load(ctx context.Context, id string) (audio.Buffer, error) {
	c.mu.RLock()
	buffer, ok := c.clips[id]
	c.mu.RUnlock()

	if ok {
		return buffer, nil
	}

	data, err := c.store.ReadClip(ctx, id)
	if err != nil {
		if errors.Is(err, core.ErrAssetNotFound) {
			return audio.Buffer{}, err
		}

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return audio.Buffer{}, fmt.Errorf(errFmtAborted, id, err)
		}

		return audio.Buffer{}, fmt.Errorf(errFmtRead, core.ErrAssetNotFound, id, err)
	}

	decoded, err := audio.DecodeWAV(data)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf(errFmtDecode, ErrDecode, id, err)
	}

	processed, err := c.quality.ApplyEffects(decoded)
	if err != nil {
		return audio.Buffer{}, fmt.Errorf(errFmtProcess, id, err)
	}

	c.mu.Lock()
	c.clips[id] = processed
	c.mu.Unlock()

	if c.log != nil {
		c.log.Info(logLoaded, id, processed.Frames(), processed.SampleRate)
	}

	return processed, nil
}

// Silence returns the silence buffer used for syllables without a clip.
func (c *Cache) Silence() audio.Buffer {
	return c.silence()
}

// SampleRate is the rate of every buffer the cache returns.
func (c *Cache) SampleRate() int {
	return c.quality.SampleRate
}

// Len reports how many clips are cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.clips)
}
