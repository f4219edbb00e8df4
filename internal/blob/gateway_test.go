package blob

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayUpload(t *testing.T) {
	var gotAuth, gotName, gotBody string
	pin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		defer f.Close()
		gotName = hdr.Filename
		data, _ := io.ReadAll(f)
		gotBody = string(data)
		w.Write([]byte(`{"Name":"lease.pdf","Hash":"QmTestCID","Size":"11"}`))
	}))
	defer pin.Close()

	g := NewGateway("lh-key", WithGatewayEndpoints(pin.URL, "http://unused"))
	cid, err := g.Upload(context.Background(), "lease.pdf", "application/pdf",
		strings.NewReader("hello world"), 11)
	require.NoError(t, err)
	assert.Equal(t, "QmTestCID", cid)
	assert.Equal(t, "Bearer lh-key", gotAuth)
	assert.Equal(t, "lease.pdf", gotName)
	assert.Equal(t, "hello world", gotBody)
}

func TestGatewayUploadRejected(t *testing.T) {
	pin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusUnauthorized)
	}))
	defer pin.Close()

	g := NewGateway("bad-key", WithGatewayEndpoints(pin.URL, "http://unused"))
	_, err := g.Upload(context.Background(), "lease.pdf", "application/pdf", strings.NewReader("x"), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestGatewayUploadMissingCID(t *testing.T) {
	pin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer pin.Close()

	g := NewGateway("k", WithGatewayEndpoints(pin.URL, "http://unused"))
	_, err := g.Upload(context.Background(), "lease.pdf", "application/pdf", strings.NewReader("x"), 1)
	require.Error(t, err)
}

func TestGatewayDownload(t *testing.T) {
	gw := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ipfs/QmTestCID", r.URL.Path)
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("pdf bytes"))
	}))
	defer gw.Close()

	g := NewGateway("k", WithGatewayEndpoints("http://unused", gw.URL+"/ipfs"))
	obj, err := g.Download(context.Background(), "QmTestCID")
	require.NoError(t, err)
	defer obj.Body.Close()
	body, _ := io.ReadAll(obj.Body)
	assert.Equal(t, "pdf bytes", string(body))
	assert.Equal(t, "application/pdf", obj.ContentType)
}

func TestGatewayDownloadNotFound(t *testing.T) {
	gw := httptest.NewServer(http.NotFoundHandler())
	defer gw.Close()

	g := NewGateway("k", WithGatewayEndpoints("http://unused", gw.URL+"/ipfs"))
	_, err := g.Download(context.Background(), "QmMissing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}
