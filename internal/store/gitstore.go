package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-git/go-git/v6"
	gitconfig "github.com/go-git/go-git/v6/config"
	"github.com/go-git/go-git/v6/plumbing"
	"github.com/go-git/go-git/v6/plumbing/object"
	"github.com/go-git/go-git/v6/plumbing/transport"
	"github.com/go-git/go-git/v6/plumbing/transport/http"
	"github.com/hiboutik/oauth-client/internal/config"
	log "github.com/sirupsen/logrus"
)

const gitTokenDir = "tokens"

// GitStore commits tokens to a local clone and force-pushes them. The branch
// is rewritten to a single commit on every save so old tokens do not linger
// in history.
type GitStore struct {
	mu      sync.Mutex
	cfg     config.GitStoreConfig
	repoDir string
}

// NewGitStore prepares a store cloning cfg.URL into cfg.LocalPath, or into
// ./gitstore when unset. The repository is synced lazily.
func NewGitStore(cfg config.GitStoreConfig) (*GitStore, error) {
	cfg.URL = strings.TrimSpace(cfg.URL)
	if cfg.URL == "" {
		return nil, fmt.Errorf("git store: remote not configured")
	}
	repoDir := strings.TrimSpace(cfg.LocalPath)
	if repoDir == "" {
		repoDir = "gitstore"
	}
	abs, err := filepath.Abs(repoDir)
	if err != nil {
		return nil, fmt.Errorf("git store: resolve local path: %w", err)
	}
	return &GitStore{cfg: cfg, repoDir: abs}, nil
}

// Save writes the token into the clone, commits and pushes.
func (s *GitStore) Save(_ context.Context, id string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureRepository(); err != nil {
		return "", err
	}
	rel := filepath.Join(gitTokenDir, id)
	path := filepath.Join(s.repoDir, rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", fmt.Errorf("git store: create token dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("git store: write token: %w", err)
	}
	if err := s.commitAndPush("Update token "+id, rel); err != nil {
		return "", err
	}
	return s.cfg.URL + "#" + filepath.ToSlash(rel), nil
}

// Load pulls the clone and reads the token.
func (s *GitStore) Load(_ context.Context, id string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureRepository(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.repoDir, gitTokenDir, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("git store: read token: %w", err)
	}
	return data, nil
}

// Close is a no-op.
func (s *GitStore) Close() error { return nil }

// ensureRepository clones the remote, or pulls an existing clone. An empty
// remote is initialized locally and pushed on the first save.
func (s *GitStore) ensureRepository() error {
	gitDir := filepath.Join(s.repoDir, ".git")
	_, err := os.Stat(gitDir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if errMk := os.MkdirAll(s.repoDir, 0o700); errMk != nil {
			return fmt.Errorf("git store: create repo dir: %w", errMk)
		}
		_, errClone := git.PlainClone(s.repoDir, &git.CloneOptions{Auth: s.auth(), URL: s.cfg.URL})
		if errClone == nil {
			return nil
		}
		if !errors.Is(errClone, transport.ErrEmptyRemoteRepository) {
			return fmt.Errorf("git store: clone remote: %w", errClone)
		}
		_ = os.RemoveAll(gitDir)
		repo, errInit := git.PlainInit(s.repoDir, false)
		if errInit != nil {
			return fmt.Errorf("git store: init empty repo: %w", errInit)
		}
		if _, errCreate := repo.CreateRemote(&gitconfig.RemoteConfig{
			Name: "origin",
			URLs: []string{s.cfg.URL},
		}); errCreate != nil && !errors.Is(errCreate, git.ErrRemoteExists) {
			return fmt.Errorf("git store: configure remote: %w", errCreate)
		}
		return nil
	case err != nil:
		return fmt.Errorf("git store: stat repo: %w", err)
	}

	repo, err := git.PlainOpen(s.repoDir)
	if err != nil {
		return fmt.Errorf("git store: open repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("git store: worktree: %w", err)
	}
	if errPull := worktree.Pull(&git.PullOptions{Auth: s.auth(), RemoteName: "origin", Force: true}); errPull != nil {
		switch {
		case errors.Is(errPull, git.NoErrAlreadyUpToDate),
			errors.Is(errPull, transport.ErrEmptyRemoteRepository),
			errors.Is(errPull, plumbing.ErrReferenceNotFound):
		case errors.Is(errPull, git.ErrNonFastForwardUpdate):
			// The remote branch is squashed on every save; our next push wins.
			log.Debug("git store: remote history diverged")
		default:
			return fmt.Errorf("git store: pull: %w", errPull)
		}
	}
	return nil
}

func (s *GitStore) auth() transport.AuthMethod {
	if s.cfg.Username == "" && s.cfg.Password == "" {
		return nil
	}
	user := s.cfg.Username
	if user == "" {
		user = "git"
	}
	return &http.BasicAuth{Username: user, Password: s.cfg.Password}
}

func (s *GitStore) commitAndPush(message, rel string) error {
	repo, err := git.PlainOpen(s.repoDir)
	if err != nil {
		return fmt.Errorf("git store: open repo: %w", err)
	}
	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("git store: worktree: %w", err)
	}
	if _, err = worktree.Add(filepath.ToSlash(rel)); err != nil {
		return fmt.Errorf("git store: add %s: %w", rel, err)
	}
	status, err := worktree.Status()
	if err != nil {
		return fmt.Errorf("git store: status: %w", err)
	}
	if status.IsClean() {
		return nil
	}
	signature := &object.Signature{Name: "hiboutik-oauth", Email: "hiboutik-oauth@local", When: time.Now()}
	commitHash, err := worktree.Commit(message, &git.CommitOptions{Author: signature})
	if err != nil {
		if errors.Is(err, git.ErrEmptyCommit) {
			return nil
		}
		return fmt.Errorf("git store: commit: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return fmt.Errorf("git store: get head: %w", err)
	}
	if err = squashHead(repo, head.Name(), commitHash, message, signature); err != nil {
		return err
	}
	if err = repo.Push(&git.PushOptions{Auth: s.auth(), Force: true}); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("git store: push: %w", err)
	}
	return nil
}

// squashHead points branch at a parentless copy of commitHash.
func squashHead(repo *git.Repository, branch plumbing.ReferenceName, commitHash plumbing.Hash, message string, signature *object.Signature) error {
	commit, err := repo.CommitObject(commitHash)
	if err != nil {
		return fmt.Errorf("git store: inspect head commit: %w", err)
	}
	squashed := &object.Commit{
		Author:    *signature,
		Committer: *signature,
		Message:   message,
		TreeHash:  commit.TreeHash,
		Encoding:  commit.Encoding,
	}
	mem := &plumbing.MemoryObject{}
	mem.SetType(plumbing.CommitObject)
	if err = squashed.Encode(mem); err != nil {
		return fmt.Errorf("git store: encode squashed commit: %w", err)
	}
	newHash, err := repo.Storer.SetEncodedObject(mem)
	if err != nil {
		return fmt.Errorf("git store: write squashed commit: %w", err)
	}
	if err = repo.Storer.SetReference(plumbing.NewHashReference(branch, newHash)); err != nil {
		return fmt.Errorf("git store: update branch reference: %w", err)
	}
	return nil
}
