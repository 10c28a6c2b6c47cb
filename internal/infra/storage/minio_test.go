package storage

import (
	"context"
	"io"
	"os"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectURL(t *testing.T) {
	assert.Equal(t, "http://minio:9000/ethica/analyses/a.json", objectURL("", "minio:9000", "ethica", "analyses/a.json"))
	assert.Equal(t, "https://s3.example.com/b/k.json", objectURL("https", "s3.example.com", "b", "k.json"))
}

// Runs only when ETHICA_TEST_MINIO_ENDPOINT is set (e.g. a local minio container).
func TestStore_PutJSON_Integration(t *testing.T) {
	endpoint := os.Getenv("ETHICA_TEST_MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("ETHICA_TEST_MINIO_ENDPOINT not set")
	}
	ctx := context.Background()
	s, err := New(ctx, Config{
		Endpoint:   endpoint,
		BucketName: "ethica-test",
		AccessKey:  os.Getenv("ETHICA_TEST_MINIO_ACCESS_KEY"),
		SecretKey:  os.Getenv("ETHICA_TEST_MINIO_SECRET_KEY"),
	})
	require.NoError(t, err)
	require.NoError(t, s.Check(ctx))

	body := []byte(`{"scenario_id":"ETH-minio001"}`)
	url, err := s.PutJSON(ctx, "analyses/test.json", body)
	require.NoError(t, err)
	assert.Contains(t, url, "/ethica-test/analyses/test.json")

	obj, err := s.client.GetObject(ctx, "ethica-test", "analyses/test.json", minio.GetObjectOptions{})
	require.NoError(t, err)
	defer obj.Close()
	got, err := io.ReadAll(obj)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}
