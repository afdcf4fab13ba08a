package clients

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/beam-cloud/gmail2tg/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves path-style GET and PUT for one bucket
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/state-bucket/")
	switch r.Method {
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		f.objects[key] = data
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		data, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestStorageClient(t *testing.T) *StorageClient {
	t.Helper()
	srv := httptest.NewServer(&fakeS3{objects: make(map[string][]byte)})
	t.Cleanup(srv.Close)

	client, err := NewStorageClient(context.Background(), types.S3Config{
		Bucket:    "state-bucket",
		Region:    "us-east-1",
		Endpoint:  srv.URL,
		AccessKey: "test",
		SecretKey: "test",
	})
	require.NoError(t, err)
	return client
}

func TestStorageClient_MissingKey(t *testing.T) {
	client := newTestStorageClient(t)

	_, err := client.GetObject(context.Background(), "gmail2tg/state.json")
	assert.ErrorIs(t, err, types.ErrObjectNotFound)
}

func TestStorageClient_PutThenGet(t *testing.T) {
	client := newTestStorageClient(t)
	ctx := context.Background()

	require.NoError(t, client.PutObject(ctx, "gmail2tg/state.json", []byte(`{"startAfter":1}`)))

	data, err := client.GetObject(ctx, "gmail2tg/state.json")
	require.NoError(t, err)
	assert.Equal(t, `{"startAfter":1}`, string(data))
	assert.Equal(t, "state-bucket", client.Bucket())
}

func TestNewStorageClient_RequiresBucket(t *testing.T) {
	_, err := NewStorageClient(context.Background(), types.S3Config{})
	assert.Error(t, err)
}
