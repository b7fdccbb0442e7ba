// Package cli provides the command-line interface for listscope.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yotto3s/listscope/internal/config"
	"github.com/yotto3s/listscope/pkg/listscope"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// configKey is used to store config in context.
type configKey struct{}

// loggerKey is used to store the session logger in context.
type loggerKey struct{}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var (
		cfgFile     string
		exprs       []string
		interactive bool
	)

	rootCmd := &cobra.Command{
		Use:   "listscope [file...]",
		Short: "listscope - interactive numeric expression compiler",
		Long: `listscope reads definitions, extern declarations and expressions,
compiles each entry into a unit, links it into a live session and prints
the value of every bare expression.

Files are evaluated in order, then every --eval expression. With neither,
standard input is read: interactively when it is a terminal.`,
		Version: Version,
		Args:    cobra.ArbitraryArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}

			logger := cfg.NewLogger(cmd.ErrOrStderr()).With("session", uuid.New().String())
			if cfg.File != "" {
				logger.Info("using config file", "path", cfg.File)
			}

			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			ctx = context.WithValue(ctx, loggerKey{}, logger)
			cmd.SetContext(ctx)
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, exprs, interactive)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./"+config.DefaultConfigFile+")")
	pf.String("prompt", "", "REPL prompt")
	pf.String("history-file", "", "REPL history file")
	pf.Bool("fail-fast", false, "Stop at the first error")
	pf.String("registry", "", "Blueprint registry backend (memory|sqlite)")
	pf.String("registry-dsn", "", "SQLite registry path")
	pf.Int("compile-workers", 0, "Functions compiled in parallel per unit")
	pf.Int("max-call-depth", 0, "Maximum nested calls (0 for no limit)")
	pf.Bool("echo-ast", true, "Echo the rendering of every entry")
	pf.Bool("dump-unit", false, "Print the open unit when the session ends")
	pf.Bool("no-stdlib", false, "Do not load the prelude")
	pf.String("log-level", "", "Log level (debug|info|warn|error)")
	pf.String("log-format", "", "Log format (text|json)")

	rootCmd.Flags().StringArrayVarP(&exprs, "eval", "e", nil, "Evaluate source text (repeatable)")
	rootCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Start the REPL after files and expressions")

	_ = rootCmd.RegisterFlagCompletionFunc("registry", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.RegistryMemory, config.RegistrySQLite}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"text", "json"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newRegistryCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// GetConfig retrieves the config from the command context.
func GetConfig(ctx context.Context) *config.Config {
	if c, ok := ctx.Value(configKey{}).(*config.Config); ok {
		return c
	}
	if cfg, err := config.Load("", nil); err == nil {
		return cfg
	}
	return &config.Config{Registry: config.RegistryMemory, EchoAST: true, LogLevel: "warn", LogFormat: "text"}
}

// GetLogger retrieves the session logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// NewRuntime creates a runtime from cfg writing to out and errOut.
func NewRuntime(cfg *config.Config, logger *slog.Logger, out, errOut io.Writer) (*listscope.Runtime, error) {
	opts := []listscope.Option{
		listscope.WithLogger(logger),
		listscope.WithOutput(out),
		listscope.WithErrorOutput(errOut),
		listscope.WithFailFast(cfg.FailFast),
		listscope.WithEchoAST(cfg.EchoAST),
		listscope.WithDumpUnit(cfg.DumpUnit),
		listscope.WithCompileWorkers(cfg.CompileWorkers),
		listscope.WithMaxCallDepth(cfg.MaxCallDepth),
	}
	switch cfg.Registry {
	case config.RegistrySQLite:
		opts = append(opts, listscope.WithSQLiteStore(cfg.RegistryDSN))
	default:
		opts = append(opts, listscope.WithMemoryStore())
	}
	if cfg.NoStdlib {
		opts = append(opts, listscope.WithNoStdlib())
	}
	return listscope.New(opts...)
}

func run(cmd *cobra.Command, files, exprs []string, interactive bool) error {
	ctx := cmd.Context()
	cfg := GetConfig(ctx)
	logger := GetLogger(ctx)

	in := cmd.InOrStdin()
	tty := isTerminal(in)

	errOut := cmd.ErrOrStderr()
	if tty {
		errOut = newErrorWriter(errOut)
	}
	rt, err := NewRuntime(cfg, logger, cmd.OutOrStdout(), errOut)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()

	for _, path := range files {
		if _, err := rt.EvalFile(ctx, path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	for _, src := range exprs {
		if _, err := rt.Eval(ctx, src); err != nil {
			return err
		}
	}

	switch {
	case interactive || (len(files) == 0 && len(exprs) == 0 && tty):
		return runREPL(cmd, rt, cfg, tty)
	case len(files) == 0 && len(exprs) == 0:
		_, err := rt.EvalReader(ctx, in)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return nil
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "listscope %s (commit %s)\n", Version, GitCommit)
		},
	}
}
