// Package humanio is the single boundary through which Crucible talks to a
// human. Everything the pipeline needs from the operator (confirmation,
// selection, free text) goes through the Interactor interface, so tests and
// unattended runs can substitute a scripted implementation.
package humanio

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	crucerrors "github.com/crucidev/crucible/internal/errors"
)

// Interactor presents structured prompts to the operator.
type Interactor interface {
	// Confirm presents a yes/no prompt and returns the literal choice.
	Confirm(ctx context.Context, prompt string, defaultYes bool) (bool, error)

	// Select presents a single-selection menu and returns the chosen option.
	Select(ctx context.Context, prompt string, options []string) (string, error)

	// Input presents a free-text prompt and returns the entered text.
	Input(ctx context.Context, prompt, placeholder string) (string, error)
}

// Colors for prompt styling.
var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#F46036"} //nolint:gochecknoglobals // style constant
	colorMuted   = lipgloss.AdaptiveColor{Light: "240", Dark: "244"}         //nolint:gochecknoglobals // style constant
)

// TerminalChecker reports whether interactive prompts can be shown.
type TerminalChecker func() bool

// Prompter is the interactive Interactor backed by huh forms.
type Prompter struct {
	isTerminal TerminalChecker
}

// NewPrompter creates a Prompter. isTerminal gates every prompt; when it
// reports false, all methods return ErrNonInteractiveMode instead of hanging
// on a detached stdin.
func NewPrompter(isTerminal TerminalChecker) *Prompter {
	return &Prompter{isTerminal: isTerminal}
}

// Confirm presents a yes/no prompt.
func (p *Prompter) Confirm(ctx context.Context, prompt string, defaultYes bool) (bool, error) {
	confirmed := defaultYes

	field := huh.NewConfirm().
		Title(prompt).
		Affirmative("Yes").
		Negative("No").
		Value(&confirmed)

	if err := p.runForm(ctx, field); err != nil {
		return false, err
	}
	return confirmed, nil
}

// Select presents a single-selection menu.
func (p *Prompter) Select(ctx context.Context, prompt string, options []string) (string, error) {
	huhOptions := make([]huh.Option[string], len(options))
	for i, opt := range options {
		huhOptions[i] = huh.NewOption(opt, opt)
	}

	var selected string
	field := huh.NewSelect[string]().
		Title(prompt).
		Options(huhOptions...).
		Value(&selected)

	if err := p.runForm(ctx, field); err != nil {
		return "", err
	}
	return selected, nil
}

// Input presents a multi-line free-text prompt.
func (p *Prompter) Input(ctx context.Context, prompt, placeholder string) (string, error) {
	var value string
	field := huh.NewText().
		Title(prompt).
		Placeholder(placeholder).
		Value(&value)

	if err := p.runForm(ctx, field); err != nil {
		return "", err
	}
	return value, nil
}

// runForm runs a single-field form with the shared theme and TTY gate.
func (p *Prompter) runForm(ctx context.Context, field huh.Field) error {
	if p.isTerminal != nil && !p.isTerminal() {
		return crucerrors.ErrNonInteractiveMode
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	form := huh.NewForm(huh.NewGroup(field)).WithTheme(crucibleTheme())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return fmt.Errorf("prompt aborted: %w", crucerrors.ErrAborted)
		}
		return fmt.Errorf("prompt failed: %w", err)
	}
	return nil
}

// crucibleTheme returns the huh theme used for all prompts.
func crucibleTheme() *huh.Theme {
	t := huh.ThemeBase()

	t.Focused.Base = t.Focused.Base.BorderForeground(colorPrimary)
	t.Focused.Title = t.Focused.Title.Foreground(colorPrimary)
	t.Focused.SelectSelector = t.Focused.SelectSelector.Foreground(colorPrimary)
	t.Focused.SelectedOption = t.Focused.SelectedOption.Foreground(colorPrimary)
	t.Blurred.Title = t.Blurred.Title.Foreground(colorMuted)
	t.Focused.Description = t.Focused.Description.Foreground(colorMuted)

	return t
}
