package client

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cirrus-project/cirrus/pkg/transfer"
	"github.com/cirrus-project/cirrus/pkg/transport/inmem"
)

func TestUploadFileRoundTrip(t *testing.T) {
	ctx := context.Background()
	c, store := newTestClient(t, inmem.WithChunkQuantum(64))
	fs := afero.NewMemMapFs()

	payload := bytes.Repeat([]byte{0xEE}, 500)
	require.NoError(t, afero.WriteFile(fs, "/local/in.bin", payload, 0o644))

	result, err := c.UploadFile(ctx, fs, "/local/in.bin", "/remote/in.bin", WithMaxBufferSize(128))
	require.NoError(t, err)
	assert.Equal(t, transfer.UploadDone, result.State)
	require.NotNil(t, result.Metadata)
	assert.Equal(t, uint64(500), result.Metadata.Size)

	stored, ok := store.ObjectData("/remote/in.bin")
	require.True(t, ok)
	assert.Equal(t, payload, stored)
}

func TestUploadFileMissingLocal(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	fs := afero.NewMemMapFs()

	_, err := c.UploadFile(ctx, fs, "/nope.bin", "/remote/nope.bin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open /nope.bin")
}

func TestDownloadFileCreatesParents(t *testing.T) {
	ctx := context.Background()
	c, store := newTestClient(t)
	fs := afero.NewMemMapFs()

	payload := []byte("downloaded content")
	store.Seed("/remote/out.txt", payload)

	require.NoError(t, c.DownloadFile(ctx, fs, "/remote/out.txt", "/deep/nested/out.txt"))

	got, err := afero.ReadFile(fs, "/deep/nested/out.txt")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestDownloadFileMissingRemote(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestClient(t)
	fs := afero.NewMemMapFs()

	err := c.DownloadFile(ctx, fs, "/remote/nope.txt", "/out.txt")
	require.Error(t, err)
	assert.True(t, transfer.IsNotFound(err))

	exists, _ := afero.Exists(fs, "/out.txt")
	assert.False(t, exists, "no local file is created when the open fails")
}
