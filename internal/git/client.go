package git

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5"
	"github.com/impresso/impresso-essentials-go/internal/domain"
)

// RealClient implements Client using go-git
type RealClient struct{}

// NewClient creates a new RealClient
func NewClient() *RealClient {
	return &RealClient{}
}

// PlainCloneContext calls git.PlainCloneContext
func (c *RealClient) PlainCloneContext(ctx context.Context, path string, isBare bool, o *git.CloneOptions) (*git.Repository, error) {
	return git.PlainCloneContext(ctx, path, isBare, o)
}

// PlainInit calls git.PlainInit
func (c *RealClient) PlainInit(path string, isBare bool) (*git.Repository, error) {
	return git.PlainInit(path, isBare)
}

// PlainOpenWithOptions calls git.PlainOpenWithOptions
func (c *RealClient) PlainOpenWithOptions(path string, o *git.PlainOpenOptions) (*git.Repository, error) {
	return git.PlainOpenWithOptions(path, o)
}

// HeadCommit returns the hash of the commit checked out in the repository
// containing repoPath.
func (c *RealClient) HeadCommit(repoPath string) (string, error) {
	repo, err := c.PlainOpenWithOptions(repoPath, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return "", domain.NewConfigurationError("git_repository",
			fmt.Sprintf("%s is not a git work tree: %v", repoPath, err))
	}
	head, err := repo.Head()
	if err != nil {
		return "", domain.NewConfigurationError("git_repository",
			fmt.Sprintf("cannot resolve HEAD of %s: %v", repoPath, err))
	}
	return head.Hash().String(), nil
}

var _ domain.CommitResolver = (*RealClient)(nil)
