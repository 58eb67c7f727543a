package git

import (
	"context"

	"github.com/go-git/go-git/v5"
)

// Client defines the interface for Git operations
type Client interface {
	PlainCloneContext(ctx context.Context, path string, isBare bool, o *git.CloneOptions) (*git.Repository, error)
	PlainInit(path string, isBare bool) (*git.Repository, error)
	PlainOpenWithOptions(path string, o *git.PlainOpenOptions) (*git.Repository, error)
}
