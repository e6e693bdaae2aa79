package cmd

import (
	"audioinput/internal/build"
	"audioinput/internal/config"

	"github.com/spf13/cobra"
)

// Commands selectable on the command line.
const (
	CommandServe      = "serve"
	CommandList       = "list"
	CommandPick       = "pick"
	CommandRecordings = "recordings"
)

// Options is the parsed command line: the loaded configuration with flag
// overrides applied, plus flags of individual commands.
type Options struct {
	Config *config.Config

	// IncludeDeleted lists deleted recordings too.
	IncludeDeleted bool
}

// flagValues holds raw flag values until the config file is loaded.
type flagValues struct {
	configPath string
	logLevel   string
	debug      bool
	backend    string
	device     int
	lowLatency bool
	permission string
	listen     string
	stdio      bool
	storePath  string
	udp        bool
	udpTarget  string
	allDeleted bool
}

// ParseArgs parses args (without the program name). It returns nil options
// when cobra handled the invocation itself, e.g. for --help or --version.
func ParseArgs(args []string) (*Options, error) {
	buildInfo := build.GetBuildFlags()
	var (
		flags   flagValues
		options *Options
	)

	selectCommand := func(name string) func(*cobra.Command, []string) error {
		return func(c *cobra.Command, _ []string) error {
			cfg, err := loadConfig(c, &flags)
			if err != nil {
				return err
			}
			cfg.Command = name
			options = &Options{Config: cfg, IncludeDeleted: flags.allDeleted}
			return nil
		}
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name,
		Short:         "Microphone capture bridge for scripted clients",
		Version:       buildInfo.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Args:          cobra.NoArgs,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: selectCommand(CommandServe),
	}
	rootCmd.SetVersionTemplate(buildInfo.String() + "\n")
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   CommandServe,
			Short: "Serve the bridge over WebSocket or stdio (default)",
			Args:  cobra.NoArgs,
			RunE:  selectCommand(CommandServe),
		},
		&cobra.Command{
			Use:   CommandList,
			Short: "List available audio devices",
			Args:  cobra.NoArgs,
			RunE:  selectCommand(CommandList),
		},
		&cobra.Command{
			Use:   CommandPick,
			Short: "Pick an input device interactively and print its config",
			Args:  cobra.NoArgs,
			RunE:  selectCommand(CommandPick),
		},
	)

	recordingsCmd := &cobra.Command{
		Use:   CommandRecordings,
		Short: "List recordings in the catalog",
		Args:  cobra.NoArgs,
		RunE:  selectCommand(CommandRecordings),
	}
	recordingsCmd.Flags().BoolVarP(&flags.allDeleted, "all", "a", false,
		"Include deleted recordings")
	rootCmd.AddCommand(recordingsCmd)

	// Configuration
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "f", "",
		"Path to a YAML config file (default: ./audioinput.yaml or ./config.yaml)")
	pf.StringVar(&flags.logLevel, "log-level", config.DefaultLogLevel,
		"Log level (debug, info, warn, error)")
	pf.BoolVarP(&flags.debug, "verbose", "v", false,
		"Show verbose output (same as --log-level debug)")

	// Audio Device Configuration
	pf.StringVarP(&flags.backend, "backend", "b", config.DefaultBackend,
		"Capture backend (portaudio, malgo, tone)")
	pf.IntVarP(&flags.device, "device", "d", config.DefaultDeviceID,
		"Input device ID for audio source 0. Use 'list' command to see available devices.")
	pf.BoolVarP(&flags.lowLatency, "low-latency", "l", false,
		"Use low latency device settings")
	pf.StringVarP(&flags.permission, "permission", "p", config.DefaultPermissionMode,
		"How microphone permission requests are answered (probe, grant, deny)")

	// Bridge Configuration
	pf.StringVar(&flags.listen, "listen", config.DefaultListenAddress,
		"WebSocket listen address")
	pf.BoolVar(&flags.stdio, "stdio", false,
		"Serve newline-delimited JSON on stdin/stdout instead of WebSocket")
	pf.StringVar(&flags.storePath, "store", "",
		"SQLite recordings catalog path (empty disables the catalog)")
	pf.BoolVar(&flags.udp, "udp", false,
		"Mirror streamed PCM chunks over UDP")
	pf.StringVar(&flags.udpTarget, "udp-target", config.DefaultUDPTarget,
		"UDP mirror target address")

	// cobra falls back to os.Args when given nil.
	if args == nil {
		args = []string{}
	}
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}
	return options, nil
}

// loadConfig reads the config file and applies the flags the user set
// explicitly, so unset flags do not clobber file values.
func loadConfig(c *cobra.Command, flags *flagValues) (*config.Config, error) {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return nil, err
	}

	changed := c.Flags().Changed
	if changed("log-level") {
		cfg.LogLevel = flags.logLevel
	}
	if changed("verbose") {
		cfg.Debug = flags.debug
	}
	if changed("backend") {
		cfg.Audio.Backend = flags.backend
	}
	if changed("device") {
		cfg.Audio.InputDevice = flags.device
	}
	if changed("low-latency") {
		cfg.Audio.LowLatency = flags.lowLatency
	}
	if changed("permission") {
		cfg.Permission.Mode = flags.permission
	}
	if changed("listen") {
		cfg.Server.Listen = flags.listen
	}
	if changed("stdio") {
		cfg.Server.Stdio = flags.stdio
	}
	if changed("store") {
		cfg.Store.Path = flags.storePath
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = flags.udp
	}
	if changed("udp-target") {
		cfg.Transport.UDPTargetAddress = flags.udpTarget
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
