package tui

import (
	"github.com/charmbracelet/huh"
)

// Confirm asks a yes/no question on the terminal. The answer defaults to no.
func Confirm(title, description string, accessible bool) (bool, error) {
	var ok bool

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).WithTheme(formTheme(accessible)).WithAccessible(accessible).Run()
	if err != nil {
		return false, err
	}
	return ok, nil
}
