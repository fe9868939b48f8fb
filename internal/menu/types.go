package menu

import (
	"context"

	"proxyup/internal/app"
	"proxyup/internal/history"
	"proxyup/internal/ui"
)

// MenuOption represents a selectable option shown to the user.
type MenuOption struct {
	Label       string
	Description string
	Handler     func(ctx context.Context) error
	Color       string
	Enabled     bool
}

// Actions is the subset of the application the menu drives.
type Actions interface {
	Status(ctx context.Context) (ui.StatusView, string)
	Run(ctx context.Context, command string, opts app.Options) error
	Restart(ctx context.Context, command string) error
	History(ctx context.Context, limit int) ([]history.Record, error)
}

var _ Actions = (*app.App)(nil)
