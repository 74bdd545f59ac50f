//go:build linux

// copilot-ibus is the Linux IBus input method engine.
//
// It connects to the IBus daemon over D-Bus, exports an engine factory and
// runs every key through the auto-spacer and the configured candidate
// filter chain.
//
// Installation:
//  1. Copy the binary to /usr/local/bin/copilot-ibus
//  2. Run: copilot-ibus --install
//  3. Enable via: ibus-setup or GNOME Settings > Keyboard > Input Sources
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"

	"github.com/godbus/dbus/v5"

	"copilot/internal/autospace"
	"copilot/internal/config"
	"copilot/internal/filter"
	_ "copilot/internal/filter/luastage"
	_ "copilot/internal/filter/stages"
	"copilot/internal/ime"
	"copilot/internal/logging"
	"copilot/internal/metrics"
)

func main() {
	ibusFlag := flag.Bool("ibus", false, "Run as the engine launched by ibus-daemon")
	installFlag := flag.Bool("install", false, "Install IBus component")
	uninstallFlag := flag.Bool("uninstall", false, "Uninstall IBus component")
	configPath := flag.String("config", "", "Config file path (default: search standard locations)")
	flag.Parse()

	if *installFlag || *uninstallFlag {
		if err := manageComponent(*configPath, *installFlag); err != nil {
			fmt.Fprintf(os.Stderr, "copilot-ibus: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(*configPath, *ibusFlag); err != nil {
		fmt.Fprintf(os.Stderr, "copilot-ibus: %v\n", err)
		os.Exit(1)
	}
}

func manageComponent(configPath string, install bool) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	dir, err := ime.ComponentDir()
	if err != nil {
		return fmt.Errorf("component dir: %w", err)
	}

	if !install {
		if err := ime.UninstallComponent(dir, cfg.IBus.EngineName); err != nil {
			return err
		}
		fmt.Println("Uninstalled successfully.")
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate executable: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	path, err := ime.InstallComponent(dir, componentFor(cfg, exe))
	if err != nil {
		return err
	}
	fmt.Printf("Installed %s\n", path)
	return nil
}

// componentFor describes the component under the names run claims.
func componentFor(cfg *config.Config, exe string) ime.Component {
	return ime.Component{
		BusName:    cfg.IBus.BusName,
		EngineName: cfg.IBus.EngineName,
		Exec:       exe,
	}
}

func loadConfig(configPath string) (*config.Config, error) {
	if configPath == "" {
		configPath = config.FindConfigFile()
	}
	cfg, err := config.NewLoader(configPath).Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func run(configPath string, launchedByIBus bool) error {
	if configPath == "" {
		configPath = config.FindConfigFile()
	}
	loader := config.NewLoader(configPath)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer logger.Close()
	logging.SetDefault(logger)

	var current atomic.Pointer[config.Config]
	current.Store(cfg)

	if err := loader.Watch(); err != nil {
		logger.Warn("config hot reload disabled", "path", loader.Path(), "error", err)
	} else {
		defer loader.Close()
		loader.OnChange(func(c *config.Config) {
			current.Store(c)
			logger.Info("config reloaded", "path", loader.Path(), "stages", c.Filters.Stages)
		})
		go func() {
			for err := range loader.Errors() {
				logger.Warn("config reload failed", "error", err)
			}
		}()
	}

	conn, err := dbus.SessionBus()
	if err != nil {
		return fmt.Errorf("connect to session bus: %w", err)
	}
	defer conn.Close()

	hostLogger := logger.WithComponent("host").Logger
	factory := ime.NewIBusFactory(conn, cfg.IBus.EngineName,
		newHostFactory(current.Load, hostLogger, metrics.NewHost(metrics.Default)),
		logger.WithComponent("ibus").Logger)
	if err := factory.Export(); err != nil {
		return err
	}
	defer factory.Close()

	reply, err := conn.RequestName(cfg.IBus.BusName, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("bus name %s already taken", cfg.IBus.BusName)
	}

	logger.Info("copilot IBus engine started",
		"bus", cfg.IBus.BusName, "engine", cfg.IBus.EngineName, "ibus", launchedByIBus)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	for sig := range sigChan {
		if sig == syscall.SIGUSR1 {
			if err := metrics.Default.WritePrometheus(os.Stderr); err != nil {
				logger.Warn("metrics dump failed", "error", err)
			}
			continue
		}
		logger.Info("shutting down", "signal", sig.String(), "engines", factory.Engines())
		break
	}
	return nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	logCfg, err := logging.FromConfig(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logging config: %w", err)
	}
	logCfg.Component = "copilot-ibus"
	logger, err := logging.New(logCfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

// newHostFactory builds each engine's Host from the configuration current
// at creation time: table translator, auto-spacer processor and the
// configured filter chain.
func newHostFactory(current func() *config.Config, logger *slog.Logger, m *metrics.Host) ime.HostFactory {
	return func(sink ime.Sink) *ime.Host {
		cfg := current()
		asciiOption := cfg.AutoSpace.ASCIIModeOption

		h := ime.NewHost(
			ime.WithSink(sink),
			ime.WithLogger(logger),
			ime.WithMetrics(m),
			ime.WithTranslator(ime.NewTableTranslator(cfg.Dictionary)),
			ime.WithPageSize(cfg.Filters.PageSize),
			ime.WithASCIIModeOption(asciiOption),
			ime.WithDefaultOptions(map[string]bool{asciiOption: cfg.IBus.StartASCII}),
		)

		h.AddProcessor(autospace.New(h,
			autospace.WithLogger(logger.With("processor", "autospace")),
			autospace.WithASCIIModeOption(asciiOption),
			autospace.WithEnabled(cfg.AutoSpace.Enabled),
		))

		chain, err := filter.NewChainFromConfig(filter.Ticket{Engine: h, Logger: logger}, cfg.Filters)
		if err != nil {
			logger.Error("build filter chain failed; candidates are unfiltered", "error", err)
			return h
		}
		h.SetFilter(chain)
		return h
	}
}
