package main

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"proxyup/internal/app"
	"proxyup/internal/config"
	apperrors "proxyup/internal/errors"
	"proxyup/internal/errors/logging"
	"proxyup/internal/logger"
	"proxyup/internal/menu"
	"proxyup/internal/system"
	"proxyup/internal/ui"
)

type flags struct {
	configPath  string
	output      string
	ipURL       string
	domainURL   string
	variant     string
	releaseURL  string
	asset       string
	timeout     time.Duration
	userAgent   string
	historyPath string
	noHistory   bool
	logLevel    string
	logFormat   string
	rules       bool
	upgrade     bool
	noRestart   bool
	limit       int
}

type cli struct {
	out      io.Writer
	platform system.Platform
	flags    flags

	mu  sync.Mutex
	log logger.Logger
}

func newCLI(out io.Writer) *cli {
	return &cli{
		out:      out,
		platform: system.Detect(),
		log:      logger.NewColoredLogger(),
	}
}

func (c *cli) logger() logger.Logger {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.log
}

func (c *cli) setLogger(log logger.Logger) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log = log
}

func (c *cli) rootCommand() *cobra.Command {
	defaults, err := config.Default()
	if err != nil {
		defaults = &config.Config{}
	}

	root := &cobra.Command{
		Use:   "proxyup",
		Short: "Refresh proxy rule data, upgrade the proxy and restart its daemon",
		Long: `proxyup keeps a locally installed proxy current.

Without a subcommand it refreshes geoip.dat and geosite.dat, upgrades the
proxy when a newer release is published, then restarts the daemon.`,
		Version:       buildVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Run(ctx, "proxyup", app.Options{
					Rules:     c.flags.rules,
					Upgrade:   c.flags.upgrade,
					NoRestart: c.flags.noRestart,
				})
			})
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.flags.configPath, "config", "", "Path to a YAML configuration file")
	pf.StringVarP(&c.flags.output, "output", "o", defaults.OutputDir, "Install and rule data directory")
	pf.StringVarP(&c.flags.ipURL, "ip-url", "i", defaults.Rules.IPURL, "URL of the IP rule file")
	pf.StringVarP(&c.flags.domainURL, "domain-url", "d", defaults.Rules.DomainURL, "URL of the domain rule file")
	pf.StringVar(&c.flags.variant, "proxy", defaults.Proxy.Variant, "Proxy variant: xray, v2ray")
	pf.StringVar(&c.flags.releaseURL, "release-url", defaults.Proxy.ReleaseURL, "Latest-release API URL")
	pf.StringVar(&c.flags.asset, "asset", "", "Release asset name (default: the archive for this platform)")
	pf.DurationVar(&c.flags.timeout, "timeout", defaults.HTTP.Timeout, "HTTP timeout, 0 for none")
	pf.StringVar(&c.flags.userAgent, "user-agent", defaults.HTTP.UserAgent, "User-Agent sent with HTTP requests")
	pf.StringVar(&c.flags.historyPath, "history", defaults.History.Path, "Run history database, relative to --output unless absolute")
	pf.BoolVar(&c.flags.noHistory, "no-history", false, "Do not record run history")
	pf.StringVar(&c.flags.logLevel, "log-level", defaults.Log.Level, "Log level: debug, info, warn, error")
	pf.StringVar(&c.flags.logFormat, "log-format", defaults.Log.Format, "Log format: text, json")
	pf.BoolVar(&c.flags.noRestart, "no-restart", false, "Do not restart the daemon afterwards")

	root.Flags().BoolVar(&c.flags.rules, "rules", true, "Refresh rule data")
	root.Flags().BoolVar(&c.flags.upgrade, "upgrade", true, "Upgrade the proxy")

	_ = root.RegisterFlagCompletionFunc("proxy", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"xray", "v2ray"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = root.RegisterFlagCompletionFunc("log-format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	root.AddCommand(c.rulesCommand())
	root.AddCommand(c.upgradeCommand())
	root.AddCommand(c.restartCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.historyCommand())
	root.AddCommand(c.menuCommand())

	return root
}

func (c *cli) rulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Download geoip.dat and geosite.dat, then restart the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Run(ctx, "rules", app.Options{Rules: true, NoRestart: c.flags.noRestart})
			})
		},
	}
}

func (c *cli) upgradeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade",
		Short: "Install the latest release when newer, then restart the daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Run(ctx, "upgrade", app.Options{Upgrade: true, NoRestart: c.flags.noRestart})
			})
		},
	}
}

func (c *cli) restartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Stop and start the proxy daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return a.Restart(ctx, "restart")
			})
		},
	}
}

func (c *cli) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the installed and latest proxy versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				view, latest := a.Status(ctx)
				a.Printer().PrintStatus(view)
				a.Console().WriteLine("Latest release: %s", latest)
				return nil
			})
		},
	}
}

func (c *cli) historyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				records, err := a.History(ctx, c.flags.limit)
				if err != nil {
					return err
				}
				a.Printer().PrintHistory(records, time.Now())
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&c.flags.limit, "limit", "n", 20, "Number of entries to show")
	return cmd
}

func (c *cli) menuCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Interactive menu",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(ctx context.Context, a *app.App) error {
				return menu.NewMenu(a, a.Console(), a.Printer()).ShowMainMenu(ctx)
			})
		},
	}
}

// withApp resolves configuration, builds the logger and the App, and runs fn.
func (c *cli) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := c.resolveConfig(cmd)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	c.setLogger(log)

	ctx := cmd.Context()
	printer := ui.NewPrinter()
	if c.out != os.Stdout {
		printer = ui.NewPrinterTo(c.out, false)
	}

	a, err := app.New(ctx, cfg, c.platform, log,
		app.WithConsole(ui.NewConsole(log, c.out)),
		app.WithPrinter(printer),
	)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

// resolveConfig layers embedded defaults, the optional config file and
// explicitly set flags, in that order.
func (c *cli) resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	defaults, err := config.Default()
	if err != nil {
		return nil, err
	}

	var file *config.Config
	if c.flags.configPath != "" {
		if file, err = config.Load(c.flags.configPath); err != nil {
			return nil, err
		}
	}

	cfg := config.Merge(defaults, file, c.flagOverrides(cmd))
	if c.flags.noHistory {
		cfg.History.Disabled = true
	}

	if err := cfg.Resolve(c.platform); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *cli) flagOverrides(cmd *cobra.Command) *config.Config {
	changed := cmd.Flags().Changed
	pick := func(name, value string) string {
		if changed(name) {
			return value
		}
		return ""
	}

	overrides := &config.Config{
		OutputDir: pick("output", c.flags.output),
		Rules: config.RulesConfig{
			IPURL:     pick("ip-url", c.flags.ipURL),
			DomainURL: pick("domain-url", c.flags.domainURL),
		},
		Proxy: config.ProxyConfig{
			Variant:    pick("proxy", c.flags.variant),
			ReleaseURL: pick("release-url", c.flags.releaseURL),
			AssetName:  pick("asset", c.flags.asset),
		},
		HTTP: config.HTTPConfig{
			UserAgent: pick("user-agent", c.flags.userAgent),
		},
		History: config.HistoryConfig{
			Path: pick("history", c.flags.historyPath),
		},
		Log: config.LogConfig{
			Level:  pick("log-level", c.flags.logLevel),
			Format: pick("log-format", c.flags.logFormat),
		},
	}
	if changed("timeout") {
		overrides.HTTP.SetTimeout(c.flags.timeout)
	}
	return overrides
}

func newLogger(cfg config.LogConfig) (logger.Logger, error) {
	level, err := logger.ParseLevel(cfg.Level)
	if err != nil {
		return nil, apperrors.ConfigError(apperrors.CodeConfigInvalid, "invalid log level", err).
			WithModule("cli").
			WithField("key", "log.level")
	}

	switch strings.ToLower(cfg.Format) {
	case "", "text":
		return logger.NewColoredLogger(logger.WithLevel(level)), nil
	case "json":
		return logger.NewStandardLogger(
			logger.WithLevel(level),
			logger.WithFormatter(&logger.JSONFormatter{}),
			logger.WithOutput(os.Stderr),
		), nil
	default:
		return nil, apperrors.ConfigError(apperrors.CodeConfigInvalid, "invalid log format", nil).
			WithModule("cli").
			WithField("key", "log.format").
			WithField("value", cfg.Format)
	}
}

func (c *cli) reportError(ctx context.Context, err error) {
	logging.Error(ctx, c.logger(), err.Error(), err)
}
