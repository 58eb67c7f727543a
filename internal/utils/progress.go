package utils

import "github.com/schollz/progressbar/v3"

// Standard progress bar descriptions
const (
	DescScanning  = "Scanning archives"
	DescTagging   = "Tagging"
	DescMigrating = "Migrating"
	DescDeleting  = "Deleting"
)

// NewProgressBar creates a consistently styled progress bar.
//
// Use a negative total for unknown totals (spinner mode). Known totals show
// the count and iterations per second.
//
//	bar := utils.NewProgressBar(len(keys), utils.DescMigrating)
//	defer bar.Finish()
func NewProgressBar(total int, description string) *progressbar.ProgressBar {
	opts := []progressbar.Option{
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
	}

	if total < 0 {
		opts = append(opts,
			progressbar.OptionSpinnerType(14),
			progressbar.OptionSetRenderBlankState(true),
		)
	} else {
		opts = append(opts,
			progressbar.OptionShowIts(),
		)
	}

	return progressbar.NewOptions(total, opts...)
}

// NewSilentProgressBar creates a progress bar that renders nothing, for dry runs
// and non-interactive output.
func NewSilentProgressBar(total int) *progressbar.ProgressBar {
	return progressbar.NewOptions(total, progressbar.OptionSetVisibility(false))
}
