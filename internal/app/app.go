// Package app wires configuration, the proxy manager and the run ledger
// into the operations exposed by the CLI and the menu.
package app

import (
	"context"
	"time"

	"github.com/google/uuid"

	"proxyup/internal/archive"
	"proxyup/internal/config"
	"proxyup/internal/downloader"
	apperrors "proxyup/internal/errors"
	"proxyup/internal/errors/logging"
	"proxyup/internal/history"
	"proxyup/internal/logger"
	"proxyup/internal/process"
	"proxyup/internal/proxy"
	"proxyup/internal/release"
	"proxyup/internal/system"
	"proxyup/internal/ui"
)

const moduleName = "app"

// Options selects what one Run does.
type Options struct {
	Rules     bool
	Upgrade   bool
	NoRestart bool
}

// App owns every collaborator for one invocation.
type App struct {
	cfg      *config.Config
	platform system.Platform
	logger   logger.Logger
	console  *ui.Console
	printer  *ui.Printer
	releases proxy.ReleaseFetcher
	fetcher  proxy.Fetcher
	proxy    proxy.Proxy
	history  history.Repository
	runID    func() string
	now      func() time.Time
}

// Option customises App construction.
type Option func(*App)

// WithProxy replaces the proxy manager.
func WithProxy(p proxy.Proxy) Option {
	return func(a *App) { a.proxy = p }
}

// WithFetcher replaces the downloader used for rule files.
func WithFetcher(f proxy.Fetcher) Option {
	return func(a *App) { a.fetcher = f }
}

// WithReleases replaces the release client.
func WithReleases(r proxy.ReleaseFetcher) Option {
	return func(a *App) { a.releases = r }
}

// WithHistory replaces the run ledger.
func WithHistory(h history.Repository) Option {
	return func(a *App) { a.history = h }
}

// WithConsole replaces the console.
func WithConsole(c *ui.Console) Option {
	return func(a *App) { a.console = c }
}

// WithPrinter replaces the printer.
func WithPrinter(p *ui.Printer) Option {
	return func(a *App) { a.printer = p }
}

// WithRunIDs overrides run ID generation.
func WithRunIDs(next func() string) Option {
	return func(a *App) { a.runID = next }
}

// New builds an App from a resolved configuration. Collaborators not
// supplied through options are constructed from cfg.
func New(ctx context.Context, cfg *config.Config, platform system.Platform, log logger.Logger, opts ...Option) (*App, error) {
	if cfg == nil || log == nil {
		return nil, apperrors.SystemError(apperrors.CodeSystemGeneric, "config and logger are required", nil).
			WithModule(moduleName).
			WithOperation("New")
	}

	a := &App{
		cfg:      cfg,
		platform: platform,
		logger:   log,
		runID:    func() string { return uuid.NewString() },
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.console == nil {
		a.console = ui.NewConsole(log, nil)
	}
	if a.printer == nil {
		a.printer = ui.NewPrinter()
	}

	client := downloader.NewHTTPClient(cfg.HTTP.Timeout)
	if a.fetcher == nil {
		dl, err := downloader.New(log,
			downloader.WithHTTPClient(client),
			downloader.WithUserAgent(cfg.HTTP.UserAgent),
			downloader.WithProgressReporter(downloader.NewConsoleProgressReporter(a.console.Output())),
		)
		if err != nil {
			return nil, err
		}
		a.fetcher = dl
	}
	if a.releases == nil {
		a.releases = release.NewClient(log,
			release.WithHTTPClient(client),
			release.WithUserAgent(cfg.HTTP.UserAgent),
		)
	}

	if a.proxy == nil {
		variant, err := proxy.ParseVariant(cfg.Proxy.Variant)
		if err != nil {
			return nil, err
		}
		p, err := proxy.New(proxy.Settings{
			Variant:    variant,
			Dir:        cfg.OutputDir,
			ReleaseURL: cfg.Proxy.ReleaseURL,
			AssetName:  cfg.Proxy.AssetName,
			Platform:   platform,
		}, proxy.Dependencies{
			Process:   process.NewSystemController(log),
			Releases:  a.releases,
			Fetcher:   a.fetcher,
			Extractor: archive.ZipExtractor{},
			Logger:    log,
		})
		if err != nil {
			return nil, err
		}
		a.proxy = p
	}

	if a.history == nil {
		a.history = openHistory(ctx, cfg.History, log)
	}

	return a, nil
}

// openHistory falls back to a discarding ledger when the database cannot
// be opened.
func openHistory(ctx context.Context, cfg config.HistoryConfig, log logger.Logger) history.Repository {
	if cfg.Disabled {
		return history.Discard{}
	}
	repo, err := history.Open(ctx, cfg.Path)
	if err != nil {
		logging.Warn(ctx, log, "run history unavailable", err)
		return history.Discard{}
	}
	return repo
}

// Close releases the run ledger.
func (a *App) Close() error {
	return a.history.Close()
}

// Console exposes the console shared with the CLI.
func (a *App) Console() *ui.Console {
	return a.console
}

// Printer exposes the printer shared with the CLI.
func (a *App) Printer() *ui.Printer {
	return a.printer
}

// Run executes the selected steps under a fresh run ID. The daemon is
// restarted when rules or upgrade ran, unless opts.NoRestart is set.
func (a *App) Run(ctx context.Context, command string, opts Options) error {
	runID := a.runID()
	ctx = logger.ContextWithTrace(ctx, logger.TraceContext{TraceID: runID, Command: command})

	var steps []Step
	if opts.Rules {
		steps = append(steps, Step{Name: "Refresh rule data", Action: history.ActionRules, Fn: a.refreshRulesStep})
	}
	if opts.Upgrade {
		steps = append(steps, Step{Name: "Upgrade proxy", Action: history.ActionUpgrade, Fn: a.upgradeStep})
	}
	if len(steps) > 0 && !opts.NoRestart {
		steps = append(steps, a.restartStepDef())
	}
	if len(steps) == 0 {
		a.logger.InfoContext(ctx, "nothing to do")
		return nil
	}

	a.logger.DebugContext(ctx, "run started", logger.Int("steps", len(steps)))
	return NewPipeline(a.console, a.logger, steps, a.recorder(runID)).Execute(ctx)
}

// Restart runs only the restart step.
func (a *App) Restart(ctx context.Context, command string) error {
	runID := a.runID()
	ctx = logger.ContextWithTrace(ctx, logger.TraceContext{TraceID: runID, Command: command})
	return NewPipeline(a.console, a.logger, []Step{a.restartStepDef()}, a.recorder(runID)).Execute(ctx)
}

// History returns the most recent ledger rows.
func (a *App) History(ctx context.Context, limit int) ([]history.Record, error) {
	return a.history.Recent(ctx, limit)
}

func (a *App) recorder(runID string) StepObserver {
	return func(ctx context.Context, step Step, outcome Outcome, err error) {
		rec := history.Record{
			RunID:   runID,
			Action:  step.Action,
			Status:  outcome.Status,
			Detail:  outcome.Detail,
			Version: outcome.Version,
			SHA256:  outcome.SHA256,
			At:      a.now(),
		}
		if recErr := a.history.Record(ctx, rec); recErr != nil {
			logging.Warn(ctx, a.logger, "failed to record run history", recErr)
		}
	}
}
