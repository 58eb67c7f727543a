package mocks

import (
	"context"

	"github.com/go-git/go-git/v5"
	"github.com/stretchr/testify/mock"
)

// MockGitClient mocks the git Client interface
type MockGitClient struct {
	mock.Mock
}

// PlainCloneContext mocks the git clone operation
func (m *MockGitClient) PlainCloneContext(ctx context.Context, path string, isBare bool, o *git.CloneOptions) (*git.Repository, error) {
	args := m.Called(ctx, path, isBare, o)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*git.Repository), args.Error(1)
}

// PlainInit mocks the repository initialization
func (m *MockGitClient) PlainInit(path string, isBare bool) (*git.Repository, error) {
	args := m.Called(path, isBare)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*git.Repository), args.Error(1)
}

// PlainOpenWithOptions mocks opening a local repository
func (m *MockGitClient) PlainOpenWithOptions(path string, o *git.PlainOpenOptions) (*git.Repository, error) {
	args := m.Called(path, o)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*git.Repository), args.Error(1)
}
