// Package manifest computes, versions and publishes the manifest of a data
// stage. A manifest summarizes the content of a storage partition per media
// title and per year, together with the provenance of each update.
//
// # Run Configuration
//
// A run is described by a JSON or YAML file:
//
//	{
//	  "data_stage": "entities",
//	  "output_bucket": "32-processed-data-final/entities",
//	  "git_repository": "/home/user/impresso-pipelines",
//	  "file_extensions": "jsonl.bz2",
//	  "newspapers": ["DLE"],
//	  "is_patch": false,
//	  "push_to_git": true
//	}
//
// # Usage
//
//	cfg, err := manifest.NewLoader().Load("entities.json")
//	if err != nil {
//	    return err
//	}
//	previous, err := manifest.LoadPrevious(ctx, store, cfg.PreviousManifest)
//	if err != nil {
//	    return err
//	}
//	m, err := builder.Build(ctx, cfg, previous)
//	if err != nil {
//	    return err
//	}
//	result, err := publisher.Publish(ctx, m, cfg)
//
// Build only reads from storage. Publish writes the manifest to storage first
// and then, when push_to_git is set, to the git mirror. A failed mirror push
// leaves the stored manifest in place and can be retried with RetryGitPush.
//
// # Error Handling
//
// Invalid configuration fails with a domain.ConfigurationError, listing
// failures with a domain.StorageAccessError, corrupted archives with a
// domain.IntegrityError and publishing failures with a domain.PublishError.
package manifest
