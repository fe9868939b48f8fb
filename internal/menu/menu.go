// Package menu offers the proxyup operations as an interactive terminal menu.
package menu

import (
	"context"
	"fmt"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/pkg/errors"

	"proxyup/internal/logger"
	"proxyup/internal/ui"
)

const historyLimit = 15

// errQuit ends the menu loop without an error.
var errQuit = errors.New("quit")

// Menu coordinates the interactive workflow.
type Menu struct {
	actions Actions
	console *ui.Console
	logger  logger.Logger
	printer *ui.Printer
	choose  func(items []string) (int, error)
	pause   func(message string)
	clear   func()
	now     func() time.Time
}

// NewMenu creates a new menu manager instance.
func NewMenu(actions Actions, console *ui.Console, printer *ui.Printer) *Menu {
	var log logger.Logger = logger.NewStandardLogger()
	if console != nil && console.Logger() != nil {
		log = console.Logger()
	}
	if printer == nil {
		printer = ui.NewPrinter()
	}

	m := &Menu{
		actions: actions,
		console: console,
		logger:  log,
		printer: printer,
		choose:  promptSelection,
		pause:   waitForUserInput,
		clear:   clearScreen,
		now:     time.Now,
	}
	return m
}

// ShowMainMenu displays the interactive menu until the user quits.
func (m *Menu) ShowMainMenu(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		m.clear()
		m.printer.PrintBanner()
		m.displayStatus(ctx)

		options := m.buildMenuOptions()
		selected, err := m.promptUserSelection(options)
		if err != nil {
			if errors.Is(err, promptui.ErrInterrupt) || errors.Is(err, promptui.ErrEOF) {
				m.logger.Info("User cancelled operation")
				return nil
			}
			return fmt.Errorf("failed to process user input: %w", err)
		}

		if err := options[selected].Handler(ctx); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			m.logger.Error("Operation failed: %v", err)
		}
		m.pause("\nPress Enter to continue...")
	}
}

func (m *Menu) buildMenuOptions() []MenuOption {
	return []MenuOption{
		{
			Label:       "1. Refresh rule data",
			Description: "Download geoip.dat and geosite.dat, then restart the daemon",
			Handler:     m.handleRefreshRules,
			Color:       "green",
			Enabled:     true,
		},
		{
			Label:       "2. Upgrade proxy",
			Description: "Install the latest release when newer, then restart the daemon",
			Handler:     m.handleUpgrade,
			Color:       "green",
			Enabled:     true,
		},
		{
			Label:       "3. Restart daemon",
			Description: "Stop and start the proxy daemon",
			Handler:     m.handleRestart,
			Color:       "yellow",
			Enabled:     true,
		},
		{
			Label:       "4. Show history",
			Description: "List recent runs",
			Handler:     m.handleHistory,
			Color:       "cyan",
			Enabled:     true,
		},
		{
			Label:       "0. Exit",
			Description: "Leave the menu",
			Handler:     func(context.Context) error { return errQuit },
			Color:       "red",
			Enabled:     true,
		},
	}
}

func (m *Menu) displayStatus(ctx context.Context) {
	view, latest := m.actions.Status(ctx)
	m.printer.PrintStatus(view)
	m.writeLine("Latest release: %s", latest)
}

func (m *Menu) writeLine(format string, args ...interface{}) {
	if m.console != nil {
		m.console.WriteLine(format, args...)
		return
	}
	m.logger.Info(format, args...)
}

func clearScreen() {
	fmt.Print("\033[H\033[2J")
}
