// Package objectstore_test tests the NATS object store implementation.
package objectstore_test

import (
	"context"
	"testing"

	"github.com/AS042971/otto/internal/core"
	"github.com/AS042971/otto/internal/objectstore"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats-server/v2/test"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

// StartTestServer starts an in-process JetStream-enabled NATS server.
func StartTestServer(t *testing.T) (*server.Server, *nats.Conn) {
	t.Helper()

	opts := test.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = true
	opts.StoreDir = t.TempDir()
	natsServer := test.RunServer(&opts)

	natsConnection, err := nats.Connect(natsServer.ClientURL())
	if err != nil {
		t.Fatalf("Failed to connect to test NATS server: %v", err)
	}

	t.Cleanup(func() {
		natsConnection.Close()
		natsServer.Shutdown()
	})

	return natsServer, natsConnection
}

func newStore(t *testing.T, bucket string) (*objectstore.NatsObjectStore, nats.JetStreamContext) {
	t.Helper()

	_, natsConnection := StartTestServer(t)

	jetstreamContext, err := natsConnection.JetStream()
	require.NoError(t, err)

	store, err := objectstore.New(jetstreamContext, bucket)
	require.NoError(t, err)

	return store, jetstreamContext
}

func TestNatsObjectStore_UploadDownload(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, "test-bucket")
	ctx := context.Background()
	uploadData := []byte("你好，世界")

	err := store.Upload(ctx, "page-0001.txt", uploadData)
	require.NoError(t, err)

	downloadData, err := store.Download(ctx, "page-0001.txt")
	require.NoError(t, err)
	require.Equal(t, uploadData, downloadData)
	require.Equal(t, "test-bucket", store.Bucket())
}

func TestNatsObjectStore_ReadClip(t *testing.T) {
	t.Parallel()

	store, _ := newStore(t, "otto-clips")
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, "ni.wav", []byte("RIFF")))

	data, err := store.ReadClip(ctx, "ni.wav")
	require.NoError(t, err)
	require.Equal(t, []byte("RIFF"), data)

	_, err = store.ReadClip(ctx, "missing.wav")
	require.ErrorIs(t, err, core.ErrAssetNotFound)
}

func TestNew_BindsExistingBucket(t *testing.T) {
	t.Parallel()

	store, jetstreamContext := newStore(t, "shared")
	require.NoError(t, store.Upload(context.Background(), "a.wav", []byte("a")))

	again, err := objectstore.New(jetstreamContext, "shared")
	require.NoError(t, err)

	data, err := again.Download(context.Background(), "a.wav")
	require.NoError(t, err)
	require.Equal(t, []byte("a"), data)
}
