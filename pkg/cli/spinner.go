package cli

import (
	"context"

	"github.com/charmbracelet/huh/spinner"
)

// RunSpinnerCtx runs an action with a spinner and returns its error. Without a
// terminal, or in JSON mode, the action runs without the spinner.
func RunSpinnerCtx(ctx context.Context, title string, fn func(ctx context.Context) error) error {
	if outputJSON || !isTerminal() {
		return fn(ctx)
	}

	var actionErr error

	err := spinner.New().
		Title("  " + title).
		Context(ctx).
		Action(func() {
			actionErr = fn(ctx)
		}).
		Run()

	if err != nil {
		return err
	}
	return actionErr
}
