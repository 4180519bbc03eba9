package storage

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adb-analytics/apiserver/config"
)

func TestOpenDisabled(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{Backend: "s3"})
	assert.Error(t, err)
}

func TestOpenMinioRequiresCredentials(t *testing.T) {
	_, err := Open(context.Background(), config.StorageConfig{
		Backend: "minio",
		Minio:   config.MinioConfig{Endpoint: "localhost:9000", Bucket: "reports"},
	})
	assert.ErrorContains(t, err, "MINIO_ACCESS_KEY")
}

func TestOpenMemory(t *testing.T) {
	s, err := Open(context.Background(), config.StorageConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.Equal(t, "reports", s.Bucket())
}

func TestPutJSONGetList(t *testing.T) {
	ctx := context.Background()
	s := NewStorage(NewMemoryObjects("reports"))

	require.NoError(t, s.PutJSON(ctx, "reports/u1/b.json", map[string]int{"total": 3}))
	require.NoError(t, s.PutJSON(ctx, "reports/u1/a.json", map[string]int{"total": 1}))
	require.NoError(t, s.PutJSON(ctx, "reports/u2/c.json", map[string]int{"total": 9}))

	rc, err := s.Get(ctx, "reports/u1/b.json")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	var got map[string]int
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 3, got["total"])

	objects, err := s.List(ctx, "reports/u1/")
	require.NoError(t, err)
	require.Len(t, objects, 2)
	assert.Equal(t, "reports/u1/a.json", objects[0].Key)
	assert.Positive(t, objects[0].Size)

	_, err = s.Get(ctx, "reports/u1/missing.json")
	assert.ErrorIs(t, err, ErrObjectNotFound)
}
