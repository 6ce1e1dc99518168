// Package app wires a loaded configuration into a ready synthesizer, its asset
// store and the NATS connection shared by the service and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"time"

	"github.com/AS042971/otto/internal/assets"
	"github.com/AS042971/otto/internal/config"
	"github.com/AS042971/otto/internal/core"
	"github.com/AS042971/otto/internal/objectstore"
	"github.com/AS042971/otto/internal/server"
	"github.com/AS042971/otto/internal/tts"
	"github.com/AS042971/otto/internal/tts/pinyin"
	"github.com/AS042971/otto/internal/tts/ttsutils"
	"github.com/AS042971/otto/internal/voicebank"
	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
)

const (
	connectionName = "otto"

	errFmtConnect      = "failed to connect to NATS at %s: %w"
	errFmtJetStream    = "failed to get JetStream context: %w"
	errFmtVoicebank    = "failed to load voicebank: %w"
	errFmtAssetStore   = "failed to open asset store: %w"
	errFmtPinyinStyle  = "failed to parse pinyin style: %w"
	errFmtSynthesizer  = "failed to create synthesizer: %w"
	errFmtListClips    = "failed to list clips: %w"
	errFmtPushClip     = "failed to push clip %s: %w"
	errFmtReadLocal    = "failed to read local clip %s: %w"
	logVoicebankLoaded = "Loaded voicebank %s (%d syllables, %d special patterns, %d Hz)"
	logAssetSource     = "Serving clips from %s"
	logClipPushed      = "Pushed clip %s (%d bytes) to bucket %s"
)

// ErrNATSRequired is returned when the configuration needs NATS but no
// connection was supplied.
var ErrNATSRequired = errors.New("a NATS connection is required for this asset source")

// Connection bundles a NATS connection with its JetStream context.
type Connection struct {
	Conn      *nats.Conn
	JetStream nats.JetStreamContext
}

// Connect dials the NATS server at url and opens a JetStream context.
func Connect(url string) (*Connection, error) {
	natsConnection, err := nats.Connect(url, nats.Name(connectionName))
	if err != nil {
		return nil, fmt.Errorf(errFmtConnect, url, err)
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		natsConnection.Close()

		return nil, fmt.Errorf(errFmtJetStream, err)
	}

	return &Connection{Conn: natsConnection, JetStream: jetstreamContext}, nil
}

// Close closes the underlying connection.
func (c *Connection) Close() {
	c.Conn.Close()
}

// LoadVoicebank resolves and loads the configured voicebank. It also returns
// the directory holding the voicebank file, against which a relative assets
// directory is resolved.
func LoadVoicebank(cfg *config.Config) (*voicebank.Voicebank, string, error) {
	path, err := ttsutils.ResolveVoicebankPath(cfg.Otto.VoicebankPath)
	if err != nil {
		return nil, "", fmt.Errorf(errFmtVoicebank, err)
	}

	bank, err := voicebank.Load(path)
	if err != nil {
		return nil, "", fmt.Errorf(errFmtVoicebank, err)
	}

	return bank, filepath.Dir(path), nil
}

// AssetsDir returns the configured assets directory, resolved against
// voicebankDir when it is relative.
func AssetsDir(cfg *config.Config, voicebankDir string) string {
	if filepath.IsAbs(cfg.Otto.AssetsDir) {
		return cfg.Otto.AssetsDir
	}

	return filepath.Join(voicebankDir, cfg.Otto.AssetsDir)
}

// NewAssetStore opens the clip source selected by otto.asset_source. The NATS
// source needs conn; the directory source ignores it.
func NewAssetStore(cfg *config.Config, voicebankDir string, conn *Connection) (core.AssetStore, error) {
	if cfg.Otto.AssetSource == config.AssetSourceNATS {
		if conn == nil {
			return nil, ErrNATSRequired
		}

		store, err := objectstore.New(conn.JetStream, cfg.NATS.ClipObjectStore)
		if err != nil {
			return nil, fmt.Errorf(errFmtAssetStore, err)
		}

		return store, nil
	}

	store, err := assets.NewDirStore(AssetsDir(cfg, voicebankDir))
	if err != nil {
		return nil, fmt.Errorf(errFmtAssetStore, err)
	}

	return store, nil
}

// NewSynthesizer loads the voicebank, opens the asset store and builds a
// synthesizer with the configured pinyin style, seed and number reading.
func NewSynthesizer(cfg *config.Config, conn *Connection, log *logger.Logger) (*tts.Synthesizer, error) {
	bank, voicebankDir, err := LoadVoicebank(cfg)
	if err != nil {
		return nil, err
	}

	log.Info(logVoicebankLoaded, cfg.Otto.VoicebankPath, bank.SyllableCount(), len(bank.Patterns()), bank.SampleRate())

	store, err := NewAssetStore(cfg, voicebankDir, conn)
	if err != nil {
		return nil, err
	}

	log.Info(logAssetSource, describeStore(store))

	style, err := pinyin.ParseStyle(cfg.Otto.PinyinStyle)
	if err != nil {
		return nil, fmt.Errorf(errFmtPinyinStyle, err)
	}

	opts := []tts.Option{tts.WithNumberReading(cfg.Otto.ReadNumbers)}
	if cfg.Otto.Seed != 0 {
		opts = append(opts, tts.WithChooser(tts.NewLockedRand(cfg.Otto.Seed)))
	}

	synthesizer, err := tts.New(bank, store, pinyin.New(style), log, opts...)
	if err != nil {
		return nil, fmt.Errorf(errFmtSynthesizer, err)
	}

	return synthesizer, nil
}

// ListenAddress returns host:port for the HTTP server. The voicebank port is
// used unless http.port overrides it.
func ListenAddress(cfg *config.Config, bank *voicebank.Voicebank) string {
	port := cfg.HTTP.Port
	if port == 0 {
		port = bank.Port()
	}

	return net.JoinHostPort(cfg.HTTP.Host, strconv.Itoa(port))
}

// ServerOptions maps the [http] section onto server options.
func ServerOptions(cfg *config.Config) server.Options {
	return server.Options{
		RateLimit:    cfg.HTTP.RateLimit,
		RateBurst:    cfg.HTTP.RateBurst,
		MaxTextRunes: cfg.HTTP.MaxTextRunes,
		Timeout:      time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
	}
}

// PushClips uploads every clip of a local assets directory to store under the
// same identifier and returns the number of clips pushed.
func PushClips(ctx context.Context, local *assets.DirStore, store core.ObjectStore, bucket string, log *logger.Logger) (int, error) {
	ids, err := local.ClipIDs()
	if err != nil {
		return 0, fmt.Errorf(errFmtListClips, err)
	}

	for _, id := range ids {
		data, readErr := local.ReadClip(ctx, id)
		if readErr != nil {
			return 0, fmt.Errorf(errFmtReadLocal, id, readErr)
		}

		uploadErr := store.Upload(ctx, id, data)
		if uploadErr != nil {
			return 0, fmt.Errorf(errFmtPushClip, id, uploadErr)
		}

		log.Info(logClipPushed, id, len(data), bucket)
	}

	return len(ids), nil
}

func describeStore(store core.AssetStore) string {
	switch typed := store.(type) {
	case *assets.DirStore:
		return typed.Root()
	case *objectstore.NatsObjectStore:
		return "nats bucket " + typed.Bucket()
	default:
		return fmt.Sprintf("%T", store)
	}
}
