// Package config_test tests the configuration loading for the otto service.
package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/AS042971/otto/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `
[otto]
voicebank_path = "voicebanks/otto.yaml"
assets_dir = "voicebanks/assets"
asset_source = "nats"
pinyin_style = "tone3"
seed = 42
read_numbers = true

[http]
host = "0.0.0.0"
port = 9000
rate_limit = 5.5
rate_burst = 10
max_text_runes = 500
timeout_seconds = 12

[nats]
url = "nats://127.0.0.1:4222"
text_processed_subject = "text.processed"
queue_group = "otto"
text_object_store_bucket = "TEXT"
audio_object_store_bucket = "AUDIO"
clip_object_store_bucket = "CLIPS"

[paths]
base_logs_dir = "/var/log/otto"
output_dir = "/tmp/otto"
`

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	err := toml.Unmarshal([]byte(fullConfig), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "voicebanks/otto.yaml", cfg.Otto.VoicebankPath)
	assert.Equal(t, "voicebanks/assets", cfg.Otto.AssetsDir)
	assert.Equal(t, config.AssetSourceNATS, cfg.Otto.AssetSource)
	assert.Equal(t, "tone3", cfg.Otto.PinyinStyle)
	assert.Equal(t, uint64(42), cfg.Otto.Seed)
	assert.True(t, cfg.Otto.ReadNumbers)

	assert.Equal(t, "0.0.0.0", cfg.HTTP.Host)
	assert.Equal(t, 9000, cfg.HTTP.Port)
	assert.InEpsilon(t, 5.5, cfg.HTTP.RateLimit, 0.001)
	assert.Equal(t, 10, cfg.HTTP.RateBurst)
	assert.Equal(t, 500, cfg.HTTP.MaxTextRunes)
	assert.Equal(t, 12, cfg.HTTP.TimeoutSeconds)

	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "text.processed", cfg.NATS.TextProcessedSubject)
	assert.Equal(t, "otto", cfg.NATS.QueueGroup)
	assert.Equal(t, "TEXT", cfg.NATS.TextObjectStore)
	assert.Equal(t, "AUDIO", cfg.NATS.AudioObjectStore)
	assert.Equal(t, "CLIPS", cfg.NATS.ClipObjectStore)

	assert.Equal(t, "/var/log/otto", cfg.Paths.BaseLogsDir)
	assert.Equal(t, "/tmp/otto", cfg.Paths.OutputDir)

	require.NoError(t, cfg.Validate())
}

func TestLoadFile_AppliesDefaults(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "project.toml")
	require.NoError(t, os.WriteFile(path, []byte("[http]\nport = 8100\n"), 0o600))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, 8100, cfg.HTTP.Port)
	assert.Equal(t, "voicebank.yaml", cfg.Otto.VoicebankPath)
	assert.Equal(t, config.AssetSourceDir, cfg.Otto.AssetSource)
	assert.Equal(t, "normal", cfg.Otto.PinyinStyle)
	assert.Equal(t, "127.0.0.1", cfg.HTTP.Host)
	assert.Equal(t, 40, cfg.HTTP.RateBurst)
	assert.Equal(t, "otto-workers", cfg.NATS.QueueGroup)
	assert.Empty(t, cfg.NATS.URL)
}

func TestLoadFile_Errors(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)

	broken := filepath.Join(t.TempDir(), "broken.toml")
	require.NoError(t, os.WriteFile(broken, []byte("[http\nport ="), 0o600))

	_, err = config.LoadFile(broken)
	require.Error(t, err)

	invalid := filepath.Join(t.TempDir(), "invalid.toml")
	require.NoError(t, os.WriteFile(invalid, []byte("[otto]\nasset_source = \"s3\"\n"), 0o600))

	_, err = config.LoadFile(invalid)
	require.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
	}{
		{name: "nats source without url", mutate: func(cfg *config.Config) { cfg.Otto.AssetSource = config.AssetSourceNATS }},
		{name: "port too large", mutate: func(cfg *config.Config) { cfg.HTTP.Port = 70000 }},
		{name: "negative rate", mutate: func(cfg *config.Config) { cfg.HTTP.RateLimit = -1 }},
		{name: "negative burst", mutate: func(cfg *config.Config) { cfg.HTTP.RateBurst = -1 }},
		{name: "negative text limit", mutate: func(cfg *config.Config) { cfg.HTTP.MaxTextRunes = -1 }},
		{name: "negative timeout", mutate: func(cfg *config.Config) { cfg.HTTP.TimeoutSeconds = -1 }},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.Default()
			testCase.mutate(cfg)

			require.ErrorIs(t, cfg.Validate(), config.ErrInvalidConfig)
		})
	}

	require.NoError(t, config.Default().Validate())
}
