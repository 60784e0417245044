package httpsource_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edo-build/edo/pkg/edoid"
	"github.com/edo-build/edo/pkg/source/httpsource"
	"github.com/edo-build/edo/pkg/storage/localbackend"
	"github.com/edo-build/edo/pkg/storagemgr"
)

func TestFetchStoresContentAddressedArtifact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("hello from origin"))
	}))
	defer srv.Close()

	local, err := localbackend.New(t.TempDir())
	require.NoError(t, err)
	mgr := storagemgr.New(local)

	src := httpsource.HTTP{URL: srv.URL}
	a, err := src.Fetch(context.Background(), logr.Discard(), mgr)
	require.NoError(t, err)
	require.Len(t, a.Layers, 1)

	rc, err := mgr.SafeRead(context.Background(), a.Layers[0])
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello from origin", string(data))
}

func TestFetchRejectsIntegrityMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("actual bytes"))
	}))
	defer srv.Close()

	local, err := localbackend.New(t.TempDir())
	require.NoError(t, err)
	mgr := storagemgr.New(local)

	src := httpsource.HTTP{URL: srv.URL, Integrity: edoid.Blake3Hex([]byte("wrong bytes"))}
	_, err = src.Fetch(context.Background(), logr.Discard(), mgr)
	require.Error(t, err)
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	local, err := localbackend.New(t.TempDir())
	require.NoError(t, err)
	mgr := storagemgr.New(local)

	src := httpsource.HTTP{URL: srv.URL}
	_, err = src.Fetch(context.Background(), logr.Discard(), mgr)
	require.Error(t, err)
}

func TestUniqueIdStableForSameURL(t *testing.T) {
	a := httpsource.HTTP{URL: "https://example.com/pkg.tar.gz"}
	b := httpsource.HTTP{URL: "https://example.com/pkg.tar.gz"}
	assert.Equal(t, a.UniqueId(), b.UniqueId())
}
