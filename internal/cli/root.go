package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/roach88/planir/internal/ir"
)

// RootOptions holds global flags for all commands.
// Values are resolved by viper: flag, then PLANIR_* environment, then the
// config file, then the default.
type RootOptions struct {
	ConfigFile string
	Verbose    bool
	Format     string // "json" | "text"
	LogLevel   string // "debug" | "info" | "warn" | "error"

	// Async and Database are read by the commands that declare the
	// matching --async and --db flags.
	Async    bool
	Database string

	// Logger is built from LogLevel and Verbose before any command runs.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// ValidLogLevels defines the allowed log levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Config keys. Environment variables are PLANIR_ plus the upper-cased key.
const (
	keyFormat   = "format"
	keyVerbose  = "verbose"
	keyLogLevel = "log_level"
	keyAsync    = "async"
	keyDatabase = "db"
)

// defaultConfigName is looked up in the working directory when --config
// is not given.
const defaultConfigName = "planir"

// NewRootCommand creates the root command for the planir CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "planir",
		Short:   "planir - graph planning IR toolkit",
		Long:    "Inspect, rewrite, snapshot and execute dataflow graphs built from named nodes and tensor edges.",
		Version: ir.ToolVersion,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, opts); err != nil {
				return NewExitError(ExitCommandError, err.Error())
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "config file (default: ./planir.yaml)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "warn", "log level (debug|info|warn|error)")

	// Add subcommands
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewMutateCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))

	return cmd
}

// loadConfig resolves opts from flags, environment and the config file,
// then builds the logger.
func loadConfig(cmd *cobra.Command, opts *RootOptions) error {
	v := viper.New()
	v.SetEnvPrefix("PLANIR")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault(keyFormat, "text")
	v.SetDefault(keyVerbose, false)
	v.SetDefault(keyLogLevel, "warn")
	v.SetDefault(keyAsync, false)
	v.SetDefault(keyDatabase, "")

	flags := []struct {
		key  string
		name string
	}{
		{keyFormat, "format"},
		{keyVerbose, "verbose"},
		{keyLogLevel, "log-level"},
		{keyAsync, "async"},
		{keyDatabase, "db"},
	}
	for _, f := range flags {
		if err := bindFlag(v, f.key, cmd.Flags().Lookup(f.name)); err != nil {
			return err
		}
	}

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName(defaultConfigName)
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	opts.Format = v.GetString(keyFormat)
	opts.Verbose = v.GetBool(keyVerbose)
	opts.LogLevel = strings.ToLower(v.GetString(keyLogLevel))
	opts.Async = v.GetBool(keyAsync)
	opts.Database = v.GetString(keyDatabase)

	if !isValidFormat(opts.Format) {
		return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
	}
	if !slices.Contains(ValidLogLevels, opts.LogLevel) {
		return fmt.Errorf("invalid log level %q: must be one of %v", opts.LogLevel, ValidLogLevels)
	}

	opts.Logger = newLogger(cmd.ErrOrStderr(), opts)
	return nil
}

// bindFlag binds key to flag when the running command declares it.
func bindFlag(v *viper.Viper, key string, flag *pflag.Flag) error {
	if flag == nil {
		return nil
	}
	if err := v.BindPFlag(key, flag); err != nil {
		return fmt.Errorf("binding flag %s: %w", flag.Name, err)
	}
	return nil
}

// newLogger builds a slog logger writing to w. JSON output gets a JSON
// handler so diagnostics stay machine readable. Verbose forces debug.
func newLogger(w io.Writer, opts *RootOptions) *slog.Logger {
	level := slog.LevelWarn
	switch opts.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	if opts.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// logger returns opts.Logger, or a discarding logger when a command runs
// without the root command.
func (o *RootOptions) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
