package orasbackend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// CredentialsResponse is the wire shape a remote credentials endpoint
// returns for one registry host.
type CredentialsResponse struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CredentialsFetcher retrieves registry Credentials for a host from a
// remote credentials service at Run time, rather than requiring them
// baked into process configuration — the same role the teacher's
// registry Secret copy (registry_secrets.go's ensureRegistryCredentials)
// and its web-API secrets client (internal/secrets/client.go) played
// together: fetch a bearer-authenticated credential payload once, cache
// it, hand it to whatever needs to authenticate.
type CredentialsFetcher struct {
	BaseURL     string
	HTTPClient  *http.Client
	BearerToken string

	mu    sync.Mutex
	cache map[string]Credentials
}

// NewCredentialsFetcher builds a fetcher against baseURL (e.g.
// "https://registry-auth.internal"), authenticating with bearerToken.
func NewCredentialsFetcher(baseURL, bearerToken string) *CredentialsFetcher {
	return &CredentialsFetcher{
		BaseURL:     baseURL,
		HTTPClient:  &http.Client{Timeout: 30 * time.Second},
		BearerToken: bearerToken,
		cache:       map[string]Credentials{},
	}
}

// Fetch returns Credentials for host, served from cache on repeat calls.
func (f *CredentialsFetcher) Fetch(ctx context.Context, host string) (Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.cache[host]; ok {
		return c, nil
	}

	url := fmt.Sprintf("%s/api/internal/registry-credentials/%s", f.BaseURL, host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Credentials{}, fmt.Errorf("orasbackend: build credentials request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+f.BearerToken)

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return Credentials{}, fmt.Errorf("orasbackend: fetch credentials for %s: %w", host, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return Credentials{}, fmt.Errorf("orasbackend: unauthorized fetching credentials for %s", host)
	case http.StatusNotFound:
		return Credentials{}, fmt.Errorf("orasbackend: no credentials configured for host %s", host)
	case http.StatusOK:
	default:
		body, _ := io.ReadAll(resp.Body)
		return Credentials{}, fmt.Errorf("orasbackend: unexpected status %d fetching credentials for %s: %s", resp.StatusCode, host, body)
	}

	var parsed CredentialsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Credentials{}, fmt.Errorf("orasbackend: decode credentials for %s: %w", host, err)
	}

	creds := Credentials{Username: parsed.Username, Password: parsed.Password}
	f.cache[host] = creds
	return creds, nil
}

// NewBackendWithFetchedCredentials resolves host's credentials through f
// and constructs a Backend, combining CredentialsFetcher.Fetch with New.
func NewBackendWithFetchedCredentials(ctx context.Context, f *CredentialsFetcher, host string, plainHTTP bool) (*Backend, error) {
	creds, err := f.Fetch(ctx, host)
	if err != nil {
		return nil, err
	}
	return New(host, creds, plainHTTP), nil
}
