package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/KilimcininKorOglu/sonda/internal/command"
	"github.com/KilimcininKorOglu/sonda/internal/config"
	"github.com/KilimcininKorOglu/sonda/internal/engine"
)

var (
	// Flags
	logLevel    string
	report      bool
	noColor     bool
	defaultTTL  int
	defaultWait time.Duration

	// Config file
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sonda [flags]",
	Short: "Network probe engine",
	Long: `sonda - a per-hop latency and reachability probe engine

sonda reads probe commands from its standard input, transmits crafted
ICMP, UDP, TCP or SCTP probes with caller-chosen TTLs, correlates the
ICMP responses and stream connect outcomes, and reports each result as
one line on standard output keyed by the command token.

It is the measurement half of a traceroute-style diagnostic: a
controlling process drives it over a pipe and renders the results.

Commands:
  <token> send-probe <protocol> <address> [ttl N] [timeout N] [port N]
          [size N] [local-ip A] [ip-version 4|6]
  <token> check-support feature <icmp|udp|tcp|sctp|ip-6>

Examples:
  echo "1 send-probe icmp 8.8.8.8 ttl 3 timeout 5" | sudo sonda
  sudo sonda --report < commands.txt
  sonda config --init`,
	Args:              cobra.NoArgs,
	PersistentPreRunE: loadConfig,
	RunE:              runEngine,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ~/.config/sonda/config.yaml)")

	rootCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warning, error")
	rootCmd.Flags().BoolVar(&report, "report", false, "Print a session summary table on exit")
	rootCmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored summary output")
	rootCmd.Flags().IntVar(&defaultTTL, "ttl", 0, "Default TTL for probes that omit one")
	rootCmd.Flags().DurationVarP(&defaultWait, "timeout", "w", 0, "Default probe timeout")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig loads the configuration file and applies its defaults to
// flags that were not explicitly set.
func loadConfig(cmd *cobra.Command, args []string) error {
	var err error

	if cfgFile != "" {
		cfg, err = config.LoadFrom(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	}

	defaults := cfg.Defaults

	if !cmd.Flags().Changed("log-level") && logLevel == "" {
		logLevel = defaults.LogLevel
	}
	if !cmd.Flags().Changed("report") && defaults.Report {
		report = true
	}
	if !cmd.Flags().Changed("no-color") && defaults.NoColor {
		noColor = true
	}
	if !cmd.Flags().Changed("ttl") && defaultTTL == 0 {
		defaultTTL = defaults.TTL
	}
	if !cmd.Flags().Changed("timeout") && defaultWait == 0 {
		defaultWait = defaults.Timeout
	}

	return nil
}

func runEngine(cmd *cobra.Command, args []string) error {
	if err := setupLogging(); err != nil {
		return err
	}

	reporter := command.NewReporter(os.Stdout)

	// Privileged phase: raw sockets. Everything after this point runs
	// fine without elevated privileges.
	net, err := engine.NewNetState(reporter)
	if err != nil {
		return fmt.Errorf("opening raw sockets (root required): %w", err)
	}

	if err := net.Init(); err != nil {
		return fmt.Errorf("engine startup: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"ip_length_host_order": net.IPLengthHostOrder(),
	}).Debug("engine initialized")

	loop := command.NewLoop(net, reporter, os.Stdin, command.Defaults{
		TTL:     defaultTTL,
		Timeout: defaultWait,
		UDPPort: cfg.Defaults.UDPPort,
		TCPPort: cfg.Defaults.TCPPort,
		Size:    cfg.Defaults.PacketSize,
	})

	if err := loop.Run(); err != nil {
		return err
	}

	if report {
		colored := !noColor && isatty.IsTerminal(os.Stderr.Fd())
		reporter.WriteSummary(os.Stderr, colored)
	}

	return nil
}

// setupLogging points logrus at stderr; stdout carries the command
// stream and must stay clean.
func setupLogging() error {
	logrus.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", logLevel, err)
	}
	logrus.SetLevel(level)

	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sonda %s\n", version)
		fmt.Printf("  Commit: %s\n", commit)
		fmt.Printf("  Built:  %s\n", date)
		fmt.Printf("  Config: %s\n", config.GetConfigPath())
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `Manage the sonda configuration file.

Commands:
  sonda config --init     Create default config file
  sonda config --show     Show example configuration
  sonda config --path     Show config file path`,
	RunE: runConfig,
}

var (
	configInit bool
	configShow bool
	configPath bool
)

func init() {
	configCmd.Flags().BoolVar(&configInit, "init", false, "Create default config file")
	configCmd.Flags().BoolVar(&configShow, "show", false, "Show example configuration")
	configCmd.Flags().BoolVar(&configPath, "path", false, "Show config file path")
}

func runConfig(cmd *cobra.Command, args []string) error {
	if configPath {
		fmt.Println(config.GetConfigPath())
		return nil
	}

	if configInit {
		path := config.GetConfigPath()

		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}

		cfg := config.DefaultConfig()
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("failed to create config: %w", err)
		}

		fmt.Printf("Created config file: %s\n", path)
		return nil
	}

	if configShow {
		fmt.Println(config.GenerateExample())
		return nil
	}

	return cmd.Help()
}

// SetVersion stores build metadata for the version subcommand.
func SetVersion(v, c, d string) {
	version, commit, date = v, c, d
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
