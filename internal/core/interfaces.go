// Package core defines the core business logic and interfaces for the otto service.
package core

import (
	"context"
	"errors"
)

// ErrAssetNotFound is returned when a declared clip cannot be read from the asset store.
var ErrAssetNotFound = errors.New("asset not found")

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// AssetStore provides the raw bytes of pre-recorded clips by identifier.
// Implementations must wrap ErrAssetNotFound when the clip does not exist.
type AssetStore interface {
	ReadClip(ctx context.Context, id string) ([]byte, error)
}

// SyllableConverter turns a run of ordinary text into ordered syllable tokens.
type SyllableConverter interface {
	Syllables(text string) []string
}

// TTSProcessor defines the interface for a text-to-speech processing engine.
// Process returns an encoded WAV file for the given text.
type TTSProcessor interface {
	Process(ctx context.Context, text []byte) ([]byte, error)
}
