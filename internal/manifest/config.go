package manifest

import (
	"fmt"
	"sort"
	"strings"

	"github.com/impresso/impresso-essentials-go/internal/domain"
	"github.com/impresso/impresso-essentials-go/internal/stage"
	"github.com/impresso/impresso-essentials-go/internal/storage"
)

// Config is the configuration of one manifest computation
type Config struct {
	DataStage         string   `yaml:"data_stage" json:"data_stage"`
	OutputBucket      string   `yaml:"output_bucket" json:"output_bucket"`
	InputBucket       string   `yaml:"input_bucket,omitempty" json:"input_bucket,omitempty"`
	GitRepository     string   `yaml:"git_repository" json:"git_repository"`
	Newspapers        []string `yaml:"newspapers,omitempty" json:"newspapers,omitempty"`
	TempDirectory     string   `yaml:"temp_directory,omitempty" json:"temp_directory,omitempty"`
	PreviousManifest  string   `yaml:"previous_mft_s3_path,omitempty" json:"previous_mft_s3_path,omitempty"`
	IsPatch           bool     `yaml:"is_patch" json:"is_patch"`
	PatchedFields     []string `yaml:"patched_fields,omitempty" json:"patched_fields,omitempty"`
	PushToGit         bool     `yaml:"push_to_git" json:"push_to_git"`
	RelativeGitPath   string   `yaml:"relative_git_path,omitempty" json:"relative_git_path,omitempty"`
	OnlyCounting      bool     `yaml:"only_counting" json:"only_counting"`
	ModelID           string   `yaml:"model_id,omitempty" json:"model_id,omitempty"`
	RunID             string   `yaml:"run_id,omitempty" json:"run_id,omitempty"`
	Notes             string   `yaml:"notes,omitempty" json:"notes,omitempty"`
	FileExtensions    string   `yaml:"file_extensions" json:"file_extensions"`
	ComputeAltogether bool     `yaml:"compute_altogether" json:"compute_altogether"`
	CheckArchives     bool     `yaml:"check_s3_archives" json:"check_s3_archives"`
}

// Validate checks the configuration and normalizes its values. It must run
// once before the configuration is used.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataStage) == "" {
		return domain.NewConfigurationError("data_stage", "is required")
	}
	st, err := stage.Parse(c.DataStage)
	if err != nil {
		return err
	}
	c.DataStage = st.String()

	c.OutputBucket = strings.TrimSpace(c.OutputBucket)
	if c.OutputBucket == "" {
		return domain.NewConfigurationError("output_bucket", "is required")
	}
	if _, err := storage.ParseLocation(c.OutputBucket); err != nil {
		return domain.NewConfigurationError("output_bucket", err.Error())
	}
	if c.InputBucket = strings.TrimSpace(c.InputBucket); c.InputBucket != "" {
		if _, err := storage.ParseLocation(c.InputBucket); err != nil {
			return domain.NewConfigurationError("input_bucket", err.Error())
		}
	}
	if c.PreviousManifest = strings.TrimSpace(c.PreviousManifest); c.PreviousManifest != "" {
		if _, err := storage.ParseLocation(c.PreviousManifest); err != nil {
			return domain.NewConfigurationError("previous_mft_s3_path", err.Error())
		}
	}

	if strings.TrimSpace(c.GitRepository) == "" {
		return domain.NewConfigurationError("git_repository", "is required")
	}

	ext := strings.TrimSpace(c.FileExtensions)
	ext = strings.TrimPrefix(ext, "*")
	if ext == "" || ext == "." {
		return domain.NewConfigurationError("file_extensions", "is required")
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	c.FileExtensions = ext

	c.PatchedFields = cleanList(c.PatchedFields)
	if c.IsPatch && len(c.PatchedFields) == 0 {
		return domain.NewConfigurationError("patched_fields", "must list the patched fields when is_patch is true")
	}
	if !c.IsPatch && len(c.PatchedFields) > 0 {
		return domain.NewConfigurationError("patched_fields", "must be empty when is_patch is false")
	}

	c.Newspapers = cleanList(c.Newspapers)

	c.RelativeGitPath = strings.Trim(strings.TrimSpace(c.RelativeGitPath), "/")
	if c.RelativeGitPath == "" {
		c.RelativeGitPath = c.DataStage
	}
	if strings.Contains(c.RelativeGitPath, "..") {
		return domain.NewConfigurationError("relative_git_path", fmt.Sprintf("%q escapes the mirror", c.RelativeGitPath))
	}

	return nil
}

// Stage returns the parsed data stage. Validate must have succeeded.
func (c *Config) Stage() stage.DataStage {
	return stage.DataStage(c.DataStage)
}

// Output returns the location of the partition the manifest describes
func (c *Config) Output() storage.Location {
	return storage.MustParseLocation(c.OutputBucket)
}

// AllTitles reports whether the run covers every title of the partition
func (c *Config) AllTitles() bool {
	return len(c.Newspapers) == 0
}

// HasTitle reports whether title is in the scope of the run
func (c *Config) HasTitle(title string) bool {
	if c.AllTitles() {
		return true
	}
	for _, t := range c.Newspapers {
		if t == title {
			return true
		}
	}
	return false
}

// cleanList trims, deduplicates and sorts a list, dropping empty values
func cleanList(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			set[v] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
