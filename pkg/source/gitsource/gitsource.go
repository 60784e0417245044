// Package gitsource implements source.Source against a git repository,
// generalizing the chart-clone logic in the teacher's
// internal/controller/helm_deploy.go (temp-dir PlainClone, optional
// single-branch shallow clone, optional commit checkout) into a
// content-addressed, cacheable provider.
package gitsource

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-logr/logr"

	"github.com/edo-build/edo/pkg/artifact"
	"github.com/edo-build/edo/pkg/edoid"
	"github.com/edo-build/edo/pkg/mediatype"
	"github.com/edo-build/edo/pkg/source"
)

// Git is a git-backed source.Source. Ref may be a branch name (cloned
// single-branch, shallow) or a commit SHA (full clone of the default
// branch, then checked out) — the same split the teacher's chart
// cloning logic makes.
type Git struct {
	URL string
	Ref string
}

var _ source.Source = Git{}

// UniqueId is Blake3("git:<url>:<ref>"), per spec.md §4.4's example.
func (g Git) UniqueId() edoid.Id {
	payload := fmt.Sprintf("git:%s:%s", g.URL, g.Ref)
	return edoid.Id{
		Name:   "git-source",
		Digest: edoid.Blake3Hex([]byte(payload)),
	}
}

func isCommitSha(ref string) bool {
	if len(ref) != 40 {
		return false
	}
	for _, r := range ref {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			return false
		}
	}
	return true
}

// Fetch clones the repository into a temp directory, tars the working
// tree into a single layer, and returns the resulting artifact.
func (g Git) Fetch(ctx context.Context, log logr.Logger, st source.Storage) (artifact.Artifact, error) {
	tempDir, err := os.MkdirTemp("", "edo-git-source-*")
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("gitsource: create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	cloneOpts := &git.CloneOptions{URL: g.URL}
	commit := isCommitSha(g.Ref)
	if g.Ref != "" && !commit {
		cloneOpts.SingleBranch = true
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(g.Ref)
	}
	if !commit {
		cloneOpts.Depth = 1
	}

	log.Info("cloning git source", "url", g.URL, "ref", g.Ref, "dir", tempDir)
	if _, err := git.PlainCloneContext(ctx, tempDir, false, cloneOpts); err != nil {
		return artifact.Artifact{}, fmt.Errorf("gitsource: clone %s: %w", g.URL, err)
	}

	if commit {
		repo, err := git.PlainOpen(tempDir)
		if err != nil {
			return artifact.Artifact{}, fmt.Errorf("gitsource: open clone: %w", err)
		}
		wt, err := repo.Worktree()
		if err != nil {
			return artifact.Artifact{}, fmt.Errorf("gitsource: worktree: %w", err)
		}
		if err := wt.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(g.Ref)}); err != nil {
			return artifact.Artifact{}, fmt.Errorf("gitsource: checkout %s: %w", g.Ref, err)
		}
	}

	tarBytes, err := tarDir(tempDir)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("gitsource: tar working tree: %w", err)
	}

	w, err := st.SafeStartLayer(ctx)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("gitsource: start layer: %w", err)
	}
	if _, err := w.Write(tarBytes); err != nil {
		_ = w.Abort()
		return artifact.Artifact{}, fmt.Errorf("gitsource: write layer: %w", err)
	}
	layer, err := w.Finish(ctx, mediatype.NewTar(mediatype.None), nil)
	if err != nil {
		return artifact.Artifact{}, fmt.Errorf("gitsource: finish layer: %w", err)
	}

	a := artifact.Artifact{
		MediaType: mediatype.NewManifest(),
		Config: artifact.Config{
			Id:       g.UniqueId(),
			Provides: artifact.ProvidesSet(g.UniqueId().Name),
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

// Stage unpacks the cached artifact's single tar layer into path within env.
func (g Git) Stage(ctx context.Context, log logr.Logger, st source.Storage, env source.Environment, path string) error {
	a, err := st.SafeOpen(ctx, g.UniqueId())
	if err != nil {
		return fmt.Errorf("gitsource: stage: %w", err)
	}
	for _, l := range a.Layers {
		rc, err := st.SafeRead(ctx, l)
		if err != nil {
			return fmt.Errorf("gitsource: stage: read layer: %w", err)
		}
		err = env.Unpack(ctx, path, rc)
		rc.Close()
		if err != nil {
			return fmt.Errorf("gitsource: stage: unpack: %w", err)
		}
	}
	return nil
}

func tarDir(root string) ([]byte, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		_, err = tw.Write(data)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
