// Package httpsource implements source.Source over a plain HTTP(S)
// download, following the same request/status-check/read-body shape as
// the teacher's internal/secrets.SecretsFetcher rather than reaching for
// a third-party HTTP client library.
package httpsource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-logr/logr"

	"github.com/edo-build/edo/pkg/artifact"
	"github.com/edo-build/edo/pkg/edoerr"
	"github.com/edo-build/edo/pkg/edoid"
	"github.com/edo-build/edo/pkg/mediatype"
	"github.com/edo-build/edo/pkg/source"
)

// HTTP is an HTTP(S)-backed source.Source. Integrity, if set, is the
// expected Blake3 hex digest of the downloaded bytes; a mismatch is a
// ValidationFailed-shaped error. If empty, the unique id falls back to
// Blake3 of the URL itself (the download is then only idempotent, not
// integrity-checked).
type HTTP struct {
	URL       string
	Integrity string

	Client *http.Client
}

var _ source.Source = HTTP{}

func (h HTTP) client() *http.Client {
	if h.Client != nil {
		return h.Client
	}
	return &http.Client{Timeout: 60 * time.Second}
}

// UniqueId is Blake3 of the caller-supplied integrity digest if present,
// else Blake3 of the URL — per spec.md §4.4.
func (h HTTP) UniqueId() edoid.Id {
	payload := h.Integrity
	if payload == "" {
		payload = "url:" + h.URL
	}
	return edoid.Id{Name: "http-source", Digest: edoid.Blake3Hex([]byte(payload))}
}

// Fetch downloads the URL, verifies integrity if configured, pushes the
// body as a single layer, and returns the resulting artifact.
func (h HTTP) Fetch(ctx context.Context, log logr.Logger, st source.Storage) (artifact.Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.URL, nil)
	if err != nil {
		return artifact.Artifact{}, edoerr.New(edoerr.KindInvalidArtifact, "httpsource.Fetch", h.URL, err)
	}

	log.Info("fetching http source", "url", h.URL)
	resp, err := h.client().Do(req)
	if err != nil {
		return artifact.Artifact{}, edoerr.New(edoerr.KindIo, "httpsource.Fetch", h.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return artifact.Artifact{}, edoerr.New(edoerr.KindNotFound, "httpsource.Fetch", h.URL, nil)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return artifact.Artifact{}, edoerr.New(edoerr.KindIo, "httpsource.Fetch", h.URL,
			fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return artifact.Artifact{}, edoerr.New(edoerr.KindIo, "httpsource.Fetch", h.URL, err)
	}

	if h.Integrity != "" {
		got := edoid.Blake3Hex(data)
		if got != h.Integrity {
			return artifact.Artifact{}, edoerr.New(edoerr.KindInvalidArtifact, "httpsource.Fetch", h.URL,
				fmt.Errorf("integrity mismatch: want %s, got %s", h.Integrity, got))
		}
	}

	w, err := st.SafeStartLayer(ctx)
	if err != nil {
		return artifact.Artifact{}, err
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Abort()
		return artifact.Artifact{}, err
	}
	layer, err := w.Finish(ctx, mediatype.NewFile(mediatype.None), nil)
	if err != nil {
		return artifact.Artifact{}, err
	}

	a := artifact.Artifact{
		MediaType: mediatype.NewManifest(),
		Config: artifact.Config{
			Id:       h.UniqueId(),
			Provides: artifact.ProvidesSet(h.UniqueId().Name),
		},
		Layers: []artifact.Layer{layer},
	}
	a, err = artifact.Finalize(a)
	if err != nil {
		return artifact.Artifact{}, err
	}
	if err := st.SafeSave(ctx, a); err != nil {
		return artifact.Artifact{}, err
	}
	return a, nil
}

// Stage writes the cached artifact's single file layer into path.
func (h HTTP) Stage(ctx context.Context, log logr.Logger, st source.Storage, env source.Environment, path string) error {
	a, err := st.SafeOpen(ctx, h.UniqueId())
	if err != nil {
		return fmt.Errorf("httpsource: stage: %w", err)
	}
	for _, l := range a.Layers {
		rc, err := st.SafeRead(ctx, l)
		if err != nil {
			return fmt.Errorf("httpsource: stage: read layer: %w", err)
		}
		err = env.Write(ctx, path, rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("httpsource: stage: write: %w", err)
		}
	}
	return nil
}
