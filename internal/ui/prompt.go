package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/franz/camo/internal/util"
)

// ErrNotInteractive means a confirmation was needed but nobody can answer it
var ErrNotInteractive = errors.New("confirmation required: run interactively or pass --yes")

// interactive reports whether a prompt can be answered. Tests replace it.
var interactive = util.IsInteractive

// confirmPrompt asks a yes/no question on the terminal. Tests replace it.
var confirmPrompt = func(title, description string, value *bool) error {
	return huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Yes").
		Negative("No").
		Value(value).
		Run()
}

// secretPrompt reads a value without echoing it. Tests replace it.
var secretPrompt = func(title string, value *string) error {
	return huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(value).
		Run()
}

// Secret asks for a value that must not be shown, such as a token
func Secret(title string) (string, error) {
	if !interactive() {
		return "", ErrNotInteractive
	}

	var value string
	if err := secretPrompt(title, &value); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", util.ErrAborted
		}
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return strings.TrimSpace(value), nil
}

// Confirm asks the user a yes/no question. --yes answers "yes" without
// asking; without a terminal it fails with ErrNotInteractive. Ctrl-C is
// util.ErrAborted.
func Confirm(title, description string, def bool) (bool, error) {
	if util.AssumeYes() {
		util.DebugLog("Assuming yes: %s", title)
		return true, nil
	}
	if !interactive() {
		return false, ErrNotInteractive
	}

	answer := def
	if err := confirmPrompt(title, description, &answer); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, util.ErrAborted
		}
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return answer, nil
}

// Warning renders a yellow label and message
func Warning(format string, args ...interface{}) string {
	return label("[yellow][bold]Warning:[reset] ", format, args...)
}

// Error renders a red label and message
func Error(format string, args ...interface{}) string {
	return label("[red][bold]Error:[reset] ", format, args...)
}

// Success renders a green label and message
func Success(format string, args ...interface{}) string {
	return label("[green][bold]Success:[reset] ", format, args...)
}

// Aborting renders the message printed when the user declines
func Aborting() string {
	return label("[red]Aborting.", "")
}

func label(markup, format string, args ...interface{}) string {
	return util.Colorize(markup) + fmt.Sprintf(format, args...)
}
