// Package prompt provides interactive terminal prompts for CLI commands.
package prompt

import (
	"errors"
	"strings"

	"github.com/manifoldco/promptui"
)

// ErrAborted is returned when the user cancels a prompt with Ctrl+C.
var ErrAborted = errors.New("aborted")

// Confirm asks a yes/no question. An empty answer takes the default; any
// other input must be a yes/no variant.
func Confirm(label string, defaultYes bool) (bool, error) {
	hint := "y/N"
	if defaultYes {
		hint = "Y/n"
	}

	p := promptui.Prompt{
		Label: label + " [" + hint + "]",
		Validate: func(in string) error {
			switch normalize(in) {
			case "", "y", "yes", "n", "no":
				return nil
			}
			return errors.New("answer y or n")
		},
	}

	answer, err := p.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return false, ErrAborted
		}
		return false, err
	}

	switch normalize(answer) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return defaultYes, nil
	}
}

// Input prompts for a string value with a default.
func Input(label, defaultValue string) (string, error) {
	p := promptui.Prompt{
		Label:   label,
		Default: defaultValue,
	}
	result, err := p.Run()
	if err != nil {
		if errors.Is(err, promptui.ErrInterrupt) {
			return "", ErrAborted
		}
		return "", err
	}
	return result, nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
