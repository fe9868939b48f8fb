package app

import (
	"context"
	"path/filepath"
	"strings"

	"proxyup/internal/history"
	"proxyup/internal/logger"
	"proxyup/internal/ui"
	"proxyup/internal/version"
)

// RefreshRules downloads the IP rule file then the domain rule file into
// the output directory, stopping at the first failure.
func (a *App) RefreshRules(ctx context.Context) ([]string, error) {
	sources := []string{a.cfg.Rules.IPURL, a.cfg.Rules.DomainURL}
	paths := make([]string, 0, len(sources))

	for _, src := range sources {
		path, err := a.fetcher.Download(ctx, src, a.cfg.OutputDir)
		if err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func (a *App) refreshRulesStep(ctx context.Context) (Outcome, error) {
	paths, err := a.RefreshRules(ctx)
	if err != nil {
		return Outcome{}, err
	}

	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	a.console.Success("Rule data refreshed: %s", strings.Join(names, ", "))
	return Outcome{Detail: strings.Join(names, ",")}, nil
}

func (a *App) upgradeStep(ctx context.Context) (Outcome, error) {
	result, err := a.proxy.Upgrade(ctx)
	if err != nil {
		return Outcome{}, err
	}
	if !result.Upgraded {
		return Outcome{
			Status:  history.StatusSkipped,
			Detail:  "already latest",
			Version: result.Current.String(),
		}, nil
	}

	a.console.Success("Upgraded %s: %s -> %s", a.proxy.Identity().Name, result.Current, result.Latest)
	return Outcome{
		Detail:  filepath.Base(result.Archive),
		Version: result.Latest.String(),
		SHA256:  result.Checksum,
	}, nil
}

func (a *App) restartStepDef() Step {
	return Step{
		Name:    "Restart " + a.proxy.Identity().DaemonName,
		Action:  history.ActionRestart,
		Spinner: true,
		Fn: func(ctx context.Context) (Outcome, error) {
			if err := a.proxy.Restart(ctx); err != nil {
				return Outcome{}, err
			}
			return Outcome{Detail: a.proxy.Identity().DaemonName}, nil
		},
	}
}

// Status reports the installed version and, when reachable, the latest
// published one.
func (a *App) Status(ctx context.Context) (ui.StatusView, string) {
	id := a.proxy.Identity()
	view := ui.StatusView{
		Variant:   a.cfg.Proxy.Variant,
		Dir:       id.Dir,
		Daemon:    id.DaemonName,
		AssetName: id.AssetName,
		State:     ui.StateUnknown,
		Version:   "?",
	}

	if v, err := a.proxy.Version(ctx); err != nil {
		a.logger.WarnContext(ctx, "failed to detect installed version", logger.Error(err))
	} else if v.IsZero() {
		view.State = ui.StateNotInstalled
		view.Version = version.Zero.String()
	} else {
		view.State = ui.StateInstalled
		view.Version = v.String()
	}

	latest := "unknown"
	if rel, err := a.releases.FetchLatest(ctx, id.ReleaseURL); err != nil {
		a.logger.WarnContext(ctx, "failed to fetch latest release", logger.Error(err))
	} else if v, err := rel.Version(); err == nil {
		latest = v.String()
	} else {
		latest = rel.TagName
	}
	return view, latest
}
