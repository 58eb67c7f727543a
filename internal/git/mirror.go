package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/google/uuid"
	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/utils"
)

const defaultBranch = "master"

// MirrorOptions configures a Mirror
type MirrorOptions struct {
	URL         string
	Branch      string
	AuthorName  string
	AuthorEmail string
	Token       string
	// WorkDir receives the temporary clones; defaults to the system temp dir
	WorkDir string
	Client  Client
	Retrier *utils.Retrier
	Logger  *utils.Logger
	Now     func() time.Time
}

// Mirror commits files into a remote repository and pushes them
type Mirror struct {
	opts   MirrorOptions
	auth   transport.AuthMethod
	logger *utils.Logger
}

// NewMirror creates a Mirror for the repository at opts.URL
func NewMirror(opts MirrorOptions) (*Mirror, error) {
	if opts.URL == "" {
		return nil, domain.NewConfigurationError("git.mirror_url", "a mirror repository is required to push manifests")
	}
	if opts.Client == nil {
		opts.Client = NewClient()
	}
	if opts.Retrier == nil {
		ro := utils.DefaultRetrierOptions()
		ro.Retryable = IsTransientPushError
		opts.Retrier = utils.NewRetrier(ro)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}

	m := &Mirror{
		opts:   opts,
		logger: opts.Logger.OrNop().WithComponent("git-mirror"),
	}
	if opts.Token != "" {
		// token auth accepts any non-empty user name
		m.auth = &http.BasicAuth{Username: "impresso", Password: opts.Token}
	}
	return m, nil
}

// IsTransientPushError reports push failures worth retrying. Rejected
// (non fast-forward) pushes and cancellations are final.
func IsTransientPushError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, git.ErrNonFastForwardUpdate) || errors.Is(err, transport.ErrAuthenticationRequired) ||
		errors.Is(err, transport.ErrAuthorizationFailed) {
		return false
	}
	return true
}

// CommitAndPush writes files (destination path relative to the repository
// root → content) into a fresh clone, commits them and pushes. It returns the
// hash of the pushed commit.
func (m *Mirror) CommitAndPush(ctx context.Context, files map[string][]byte, message string) (string, error) {
	if len(files) == 0 {
		return "", fmt.Errorf("nothing to commit")
	}

	dir := filepath.Join(m.opts.WorkDir, "impresso-mirror-"+uuid.NewString())
	defer os.RemoveAll(dir)

	repo, branch, err := m.checkout(ctx, dir)
	if err != nil {
		return "", err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return "", err
	}

	paths := make([]string, 0, len(files))
	for p := range files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		rel := strings.TrimPrefix(filepath.ToSlash(filepath.Clean(p)), "/")
		if rel == "." || strings.HasPrefix(rel, "../") {
			return "", fmt.Errorf("invalid mirror path %q", p)
		}
		if err := utils.WriteFile(filepath.Join(dir, filepath.FromSlash(rel)), files[p]); err != nil {
			return "", fmt.Errorf("write %s: %w", rel, err)
		}
		if _, err := wt.Add(rel); err != nil {
			return "", fmt.Errorf("stage %s: %w", rel, err)
		}
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  m.opts.AuthorName,
			Email: m.opts.AuthorEmail,
			When:  m.opts.Now(),
		},
		AllowEmptyCommits: true,
	})
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	refSpec := gitconfig.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	err = m.opts.Retrier.Retry(ctx, func() error {
		pushErr := repo.PushContext(ctx, &git.PushOptions{
			RemoteName: "origin",
			RefSpecs:   []gitconfig.RefSpec{refSpec},
			Auth:       m.auth,
		})
		if errors.Is(pushErr, git.NoErrAlreadyUpToDate) {
			return nil
		}
		if pushErr != nil {
			m.logger.Warn().Err(pushErr).Str("branch", branch).Msg("Push failed")
		}
		return pushErr
	})
	if err != nil {
		return "", fmt.Errorf("push to %s: %w", m.opts.URL, err)
	}

	m.logger.Info().
		Str("commit", hash.String()).
		Str("branch", branch).
		Strs("files", paths).
		Msg("Pushed to mirror")
	return hash.String(), nil
}

// checkout clones the mirror into dir. An empty remote is initialized locally.
func (m *Mirror) checkout(ctx context.Context, dir string) (*git.Repository, string, error) {
	cloneOpts := &git.CloneOptions{
		URL:          m.opts.URL,
		Auth:         m.auth,
		SingleBranch: true,
		Tags:         git.NoTags,
	}
	if m.opts.Branch != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(m.opts.Branch)
	}

	repo, err := m.opts.Client.PlainCloneContext(ctx, dir, false, cloneOpts)
	switch {
	case err == nil:
		branch := m.opts.Branch
		if branch == "" {
			head, err := repo.Head()
			if err != nil {
				return nil, "", fmt.Errorf("resolve mirror HEAD: %w", err)
			}
			branch = head.Name().Short()
		}
		return repo, branch, nil
	case errors.Is(err, transport.ErrEmptyRemoteRepository):
		_ = os.RemoveAll(dir)
		return m.initEmpty(dir)
	default:
		return nil, "", fmt.Errorf("clone %s: %w", m.opts.URL, err)
	}
}

func (m *Mirror) initEmpty(dir string) (*git.Repository, string, error) {
	repo, err := m.opts.Client.PlainInit(dir, false)
	if err != nil {
		return nil, "", err
	}
	if _, err := repo.CreateRemote(&gitconfig.RemoteConfig{Name: "origin", URLs: []string{m.opts.URL}}); err != nil {
		return nil, "", err
	}
	branch := m.opts.Branch
	if branch == "" {
		branch = defaultBranch
	}
	ref := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(branch))
	if err := repo.Storer.SetReference(ref); err != nil {
		return nil, "", err
	}
	return repo, branch, nil
}

var _ domain.Committer = (*Mirror)(nil)
