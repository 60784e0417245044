package orasbackend_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edo-build/edo/pkg/storage/orasbackend"
)

func TestCredentialsFetcherReturnsParsedCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"username":"robot","password":"s3cr3t"}`))
	}))
	defer srv.Close()

	f := orasbackend.NewCredentialsFetcher(srv.URL, "test-token")
	creds, err := f.Fetch(context.Background(), "registry.internal")
	require.NoError(t, err)
	assert.Equal(t, "robot", creds.Username)
	assert.Equal(t, "s3cr3t", creds.Password)
}

func TestCredentialsFetcherCachesSecondCall(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"username":"robot","password":"s3cr3t"}`))
	}))
	defer srv.Close()

	f := orasbackend.NewCredentialsFetcher(srv.URL, "test-token")
	_, err := f.Fetch(context.Background(), "registry.internal")
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), "registry.internal")
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestCredentialsFetcherPropagatesNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := orasbackend.NewCredentialsFetcher(srv.URL, "test-token")
	_, err := f.Fetch(context.Background(), "registry.internal")
	require.Error(t, err)
}
