package menu

import (
	"context"

	"github.com/pkg/errors"

	"proxyup/internal/app"
)

const menuCommand = "menu"

func (m *Menu) handleRefreshRules(ctx context.Context) error {
	m.logger.Info("Refreshing rule data...")
	if err := m.actions.Run(ctx, menuCommand, app.Options{Rules: true}); err != nil {
		return errors.Wrap(err, "rule refresh failed")
	}
	return nil
}

func (m *Menu) handleUpgrade(ctx context.Context) error {
	m.logger.Info("Checking for a newer release...")
	if err := m.actions.Run(ctx, menuCommand, app.Options{Upgrade: true}); err != nil {
		return errors.Wrap(err, "upgrade failed")
	}
	return nil
}

func (m *Menu) handleRestart(ctx context.Context) error {
	if err := m.actions.Restart(ctx, menuCommand); err != nil {
		return errors.Wrap(err, "restart failed")
	}
	return nil
}

func (m *Menu) handleHistory(ctx context.Context) error {
	records, err := m.actions.History(ctx, historyLimit)
	if err != nil {
		return errors.Wrap(err, "failed to read history")
	}
	m.printer.PrintHistory(records, m.now())
	return nil
}
