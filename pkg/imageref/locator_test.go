package imageref

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cerrors "github.com/spawn-mcp/campaign-synth/pkg/errors"
	"github.com/spawn-mcp/campaign-synth/pkg/types"
)

func newObjectServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead && r.URL.Path == "/uploads/mug.png" {
			w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
			w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
			w.Header().Set("Content-Type", "image/png")
			w.Header().Set("Content-Length", "0")
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestObjectLocator(t *testing.T) {
	srv := newObjectServer(t)
	loc, err := New(Config{
		Endpoint:   strings.TrimPrefix(srv.URL, "http://"),
		AccessKey:  "access",
		SecretKey:  "secret",
		Region:     "us-east-1",
		PresignTTL: time.Minute,
	})
	require.NoError(t, err)

	u, err := loc.Locate(context.Background(), types.ImageRef{Bucket: "uploads", Key: "mug.png"})
	require.NoError(t, err)
	assert.Contains(t, u, "/uploads/mug.png")
	assert.Contains(t, u, "X-Amz-Signature=")
	assert.Contains(t, u, "X-Amz-Expires=60")

	_, err = loc.Locate(context.Background(), types.ImageRef{Bucket: "uploads", Key: "missing.png"})
	require.Error(t, err)

	_, err = loc.Locate(context.Background(), types.ImageRef{})
	assert.Equal(t, cerrors.ErrInvalidInput, cerrors.CodeOf(err))
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://b.s3.amazonaws.com/k/x.jpg", PublicURL(types.ImageRef{Bucket: "b", Key: "k/x.jpg"}))
	assert.Empty(t, PublicURL(types.ImageRef{}))
}

func TestNewRequiresEndpoint(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}
