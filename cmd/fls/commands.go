// Package fls implements the fls command line.
package fls

import (
	"context"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/arthur-debert/fls/internal/version"
	"github.com/arthur-debert/fls/pkg/actions"
	"github.com/arthur-debert/fls/pkg/config"
	"github.com/arthur-debert/fls/pkg/daemon"
	"github.com/arthur-debert/fls/pkg/engine"
	"github.com/arthur-debert/fls/pkg/errors"
	"github.com/arthur-debert/fls/pkg/executor"
	"github.com/arthur-debert/fls/pkg/logging"
	"github.com/arthur-debert/fls/pkg/paths"
	"github.com/arthur-debert/fls/pkg/ui"
	"github.com/arthur-debert/fls/pkg/ui/confirmations"
)

// globalOptions holds the values of the persistent flags.
type globalOptions struct {
	verbosity  int
	dryRun     bool
	yes        bool
	output     string
	socketDir  string
	configFile string
}

// loadConfig builds the configuration, applying flag overrides last.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	overrides := map[string]interface{}{}
	if o.socketDir != "" {
		overrides["socket_dir"] = o.socketDir
	}
	return config.Load(config.LoadOptions{
		ConfigFile: o.configFile,
		Overrides:  overrides,
	})
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	initTemplateFormatting()

	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:     "fls [files...]",
		Short:   MsgRootShort,
		Long:    MsgRootLong,
		Example: MsgRootExample,
		Version: version.Version,
		Args:    cobra.ArbitraryArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupLogger(opts.verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return runAction(cmd, opts, engine.Request{Kind: actions.Print})
			}
			return runAction(cmd, opts, engine.Request{Kind: actions.Push, Files: args})
		},
		SilenceUsage:      true,
		SilenceErrors:     true,
		DisableAutoGenTag: true,
	}

	// Global flags
	flags := rootCmd.PersistentFlags()
	flags.CountVarP(&opts.verbosity, "verbose", "v", MsgFlagVerbose)
	flags.BoolVar(&opts.dryRun, "dry-run", false, MsgFlagDryRun)
	flags.BoolVarP(&opts.yes, "yes", "y", false, MsgFlagYes)
	flags.StringVarP(&opts.output, "output", "o", "auto", MsgFlagOutput)
	flags.StringVar(&opts.socketDir, "socket-dir", "", MsgFlagSocketDir)
	flags.StringVar(&opts.configFile, "config", "", MsgFlagConfig)

	rootCmd.AddGroup(&cobra.Group{ID: "stack", Title: "STACK:"})
	rootCmd.AddGroup(&cobra.Group{ID: "actions", Title: "ACTIONS:"})
	rootCmd.AddGroup(&cobra.Group{ID: "misc", Title: "MISC:"})
	rootCmd.SetHelpCommandGroupID("misc")
	rootCmd.SetCompletionCommandGroupID("misc")

	rootCmd.SetUsageTemplate(MsgUsageTemplate)

	rootCmd.AddCommand(newPushCmd(opts))
	rootCmd.AddCommand(newPrintCmd(opts))
	rootCmd.AddCommand(newDropCmd(opts))
	rootCmd.AddCommand(newPopActCmd(opts, actions.Copy, []string{"c", "cp"}, MsgCopyShort))
	rootCmd.AddCommand(newPopActCmd(opts, actions.Move, []string{"m", "mv"}, MsgMoveShort))
	rootCmd.AddCommand(newPopActCmd(opts, actions.Symlink, []string{"s", "ln"}, MsgSymlinkShort))
	rootCmd.AddCommand(newInteractiveCmd(opts))
	rootCmd.AddCommand(newStopCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))
	rootCmd.AddCommand(newDaemonCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

// daemonContext is canceled when the daemon receives SIGINT or SIGTERM.
// Client commands keep the default signal handling, so an interrupt at a
// prompt ends the process at once.
func daemonContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func newPushCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "push <file>...",
		Short:   MsgPushShort,
		GroupID: "stack",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, opts, engine.Request{Kind: actions.Push, Files: args})
		},
	}
}

func newPrintCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "print",
		Aliases: []string{"p", "ls"},
		Short:   MsgPrintShort,
		GroupID: "stack",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, opts, engine.Request{Kind: actions.Print})
		},
	}
}

func newDropCmd(opts *globalOptions) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:     "drop",
		Aliases: []string{"d"},
		Short:   MsgDropShort,
		GroupID: "stack",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return errors.Newf(errors.ErrInvalidInput, MsgErrBadCount, count)
			}
			return runAction(cmd, opts, engine.Request{Kind: actions.Drop, Count: count})
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, MsgFlagCount)
	return cmd
}

func newPopActCmd(opts *globalOptions, kind actions.Kind, aliases []string, short string) *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:     string(kind) + " [dest]",
		Aliases: aliases,
		Short:   short,
		Long:    MsgPopActLong,
		GroupID: "actions",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return errors.Newf(errors.ErrInvalidInput, MsgErrBadCount, count)
			}
			req := engine.Request{Kind: kind, Count: count}
			if len(args) == 1 {
				req.Dest = args[0]
			}
			return runAction(cmd, opts, req)
		},
	}
	cmd.Flags().IntVarP(&count, "count", "n", 1, MsgFlagCount)
	return cmd
}

func newInteractiveCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"i"},
		Short:   MsgInteractiveShort,
		Long:    MsgInteractiveLong,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, opts, engine.Request{Kind: actions.Interactive})
		},
	}
}

func newStopCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "stop",
		Aliases: []string{"q", "quit"},
		Short:   MsgStopShort,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAction(cmd, opts, engine.Request{Kind: actions.Stop})
		},
	}
}

// runAction connects to (or starts) the daemon and runs req.
func runAction(cmd *cobra.Command, opts *globalOptions, req engine.Request) error {
	logger := logging.GetLogger("cmd." + string(req.Kind))

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	table, err := cfg.ActionTable()
	if err != nil {
		return err
	}
	format, err := ui.ParseFormat(opts.output)
	if err != nil {
		return err
	}

	socketPath := cfg.SocketPath()
	logger.Debug().Str("socket", socketPath).Msg("connecting to daemon")
	client, err := daemon.Bootstrap(cmd.Context(), daemon.BootstrapOptions{
		SocketPath:     socketPath,
		Limits:         cfg.Limits(),
		StartupTimeout: cfg.StartupTimeout,
		DaemonCommand:  daemonCommand(opts, socketPath),
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	e := engine.New(engine.Options{
		Client:        client,
		Actions:       table,
		Runner:        executor.New(executor.Options{Stdout: cmd.OutOrStdout(), Stderr: cmd.ErrOrStderr()}),
		Prompter:      confirmations.NewConsoleDialog(cmd.InOrStdin(), cmd.OutOrStdout()),
		Printer:       ui.NewPrinter(cmd.OutOrStdout(), format),
		Input:         cmd.InOrStdin(),
		Yes:           opts.yes,
		DryRun:        opts.dryRun,
		ProbeInterval: cfg.ProbeInterval,
	})
	return e.Execute(cmd.Context(), req)
}

// daemonCommand is the argv a client re-executes to start the daemon.
func daemonCommand(opts *globalOptions, socketPath string) []string {
	exe, err := os.Executable()
	if err != nil {
		return nil
	}
	argv := []string{exe, "daemon", "--inherit-fd", "--socket", socketPath}
	if opts.configFile != "" {
		argv = append(argv, "--config", opts.configFile)
	}
	return argv
}

func newDaemonCmd(opts *globalOptions) *cobra.Command {
	var (
		inheritFD  bool
		socketPath string
	)
	cmd := &cobra.Command{
		Use:    "daemon",
		Short:  MsgDaemonShort,
		Long:   MsgDaemonLong,
		Hidden: true,
		Args:   cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetupDaemonLogger(os.Stderr, opts.verbosity)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.GetLogger("cmd.daemon")

			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if socketPath == "" {
				socketPath = cfg.SocketPath()
			}

			var l net.Listener
			if inheritFD {
				l, err = daemon.InheritedListener()
			} else {
				l, err = daemon.Listen(socketPath)
			}
			if err != nil {
				return err
			}

			d := daemon.New(l, socketPath, cfg.Capacity, cfg.Limits())
			if inheritFD {
				daemon.NotifyReady()
			}
			logger.Info().
				Str("socket", socketPath).
				Int("capacity", cfg.Capacity).
				Str("version", version.Version).
				Msg("daemon started")
			ctx, stop := daemonContext(cmd.Context())
			defer stop()
			return d.Serve(ctx)
		},
	}
	cmd.Flags().BoolVar(&inheritFD, "inherit-fd", false, MsgFlagInheritFD)
	cmd.Flags().StringVar(&socketPath, "socket", "", MsgFlagSocket)
	return cmd
}

func newConfigCmd(opts *globalOptions) *cobra.Command {
	var template, write bool
	cmd := &cobra.Command{
		Use:     "config",
		Short:   MsgConfigShort,
		Long:    MsgConfigLong,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if template {
				return writeTemplate(cmd, opts, write)
			}
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			out, err := cfg.TOML()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
	cmd.Flags().BoolVar(&template, "template", false, MsgFlagTemplate)
	cmd.Flags().BoolVarP(&write, "write", "w", false, MsgFlagWrite)
	return cmd
}

// writeTemplate prints the starter config, or saves it when write is set
// and no config file exists yet.
func writeTemplate(cmd *cobra.Command, opts *globalOptions, write bool) error {
	content := config.GenerateConfigContent()
	if !write {
		_, err := cmd.OutOrStdout().Write([]byte(content))
		return err
	}

	path := opts.configFile
	if path == "" {
		path = paths.ConfigFilePath()
	}
	if _, err := os.Stat(path); err == nil {
		return errors.Newf(errors.ErrConfigLoad, MsgErrConfigExists, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot create %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return errors.Wrapf(err, errors.ErrFileAccess, "cannot write %s", path)
	}
	cmd.Printf(MsgConfigWritten, path)
	return nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "version",
		Short:   MsgVersionShort,
		GroupID: "misc",
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf(MsgVersionFormat, version.Version, version.Commit, version.Date)
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:                   "completion [bash|zsh|fish|powershell]",
		Short:                 MsgCompletionShort,
		Long:                  MsgCompletionLong,
		GroupID:               "misc",
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletionV2(out, true)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			default:
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
		},
	}
}
