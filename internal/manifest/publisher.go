package manifest

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"

	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/utils"
)

const contentTypeJSON = "application/json"

// PublishResult reports what a publication wrote. GitErr is set when the
// manifest was stored but the mirror push failed.
type PublishResult struct {
	StorageURI string
	LocalPath  string
	GitPath    string
	GitCommit  string
	GitErr     error
}

// Publisher writes manifests to storage and to the git mirror
type Publisher struct {
	Store     domain.ObjectStore
	Committer domain.Committer
	Logger    *utils.Logger
}

// Publish stores the manifest in the output partition and, when push_to_git
// is set, pushes it to the mirror. A version already stored is never replaced. A failed push returns a git PublishError
// together with the result: the stored manifest stays in place.
func (p *Publisher) Publish(ctx context.Context, m *Manifest, cfg *Config) (*PublishResult, error) {
	log := p.Logger.OrNop().WithComponent("publisher").WithStage(m.DataStage)

	data, name, err := encodeNamed(m)
	if err != nil {
		return nil, domain.NewPublishError(domain.PublishTargetStorage, err)
	}

	loc := cfg.Output()
	key := loc.Join(name)
	if err := p.ensureUnpublished(ctx, loc.Bucket, key); err != nil {
		return nil, domain.NewPublishError(domain.PublishTargetStorage, err)
	}

	res := &PublishResult{}
	if cfg.TempDirectory != "" {
		local := filepath.Join(utils.ExpandPath(cfg.TempDirectory), name)
		if err := utils.WriteFile(local, data); err != nil {
			log.Warn().Err(err).Str("path", local).Msg("Failed to export manifest locally")
		} else {
			res.LocalPath = local
		}
	}

	if err := p.Store.Put(ctx, loc.Bucket, key, data, contentTypeJSON, nil); err != nil {
		return nil, domain.NewPublishError(domain.PublishTargetStorage, err)
	}
	res.StorageURI = loc.Sub(name).URI()
	log.Info().Str("uri", res.StorageURI).Str("version", m.Version).Msg("Manifest stored")

	if !cfg.PushToGit {
		return res, nil
	}
	if err := p.push(ctx, res, m, cfg, data, name); err != nil {
		return res, err
	}
	return res, nil
}

// ensureUnpublished refuses to replace a stored manifest
func (p *Publisher) ensureUnpublished(ctx context.Context, bucket, key string) error {
	_, err := p.Store.Stat(ctx, bucket, key)
	switch {
	case err == nil:
		return fmt.Errorf("s3://%s/%s: %w", bucket, key, domain.ErrVersionExists)
	case errors.Is(err, domain.ErrNotFound):
		return nil
	default:
		return err
	}
}

// RetryGitPush pushes an already stored manifest to the mirror again
func (p *Publisher) RetryGitPush(ctx context.Context, m *Manifest, cfg *Config) (*PublishResult, error) {
	data, name, err := encodeNamed(m)
	if err != nil {
		return nil, domain.NewPublishError(domain.PublishTargetGit, err)
	}
	res := &PublishResult{StorageURI: cfg.Output().Sub(name).URI()}
	if err := p.push(ctx, res, m, cfg, data, name); err != nil {
		return res, err
	}
	return res, nil
}

func (p *Publisher) push(ctx context.Context, res *PublishResult, m *Manifest, cfg *Config, data []byte, name string) error {
	log := p.Logger.OrNop().WithComponent("publisher").WithStage(m.DataStage)

	res.GitPath = path.Join(cfg.RelativeGitPath, name)
	if p.Committer == nil {
		res.GitErr = domain.NewPublishError(domain.PublishTargetGit,
			domain.NewConfigurationError("git.mirror_url", "no git mirror configured"))
		return res.GitErr
	}

	message := fmt.Sprintf("Add %s manifest %s", m.DataStage, m.Version)
	commit, err := p.Committer.CommitAndPush(ctx, map[string][]byte{res.GitPath: data}, message)
	if err != nil {
		res.GitErr = domain.NewPublishError(domain.PublishTargetGit, err)
		log.Error().Err(err).Str("path", res.GitPath).Msg("Manifest stored but not pushed to the mirror")
		return res.GitErr
	}
	res.GitCommit = commit
	log.Info().Str("path", res.GitPath).Str("commit", commit).Msg("Manifest pushed to the mirror")
	return nil
}

func encodeNamed(m *Manifest) ([]byte, string, error) {
	name, err := m.FileName()
	if err != nil {
		return nil, "", err
	}
	data, err := Encode(m)
	if err != nil {
		return nil, "", err
	}
	return data, name, nil
}
