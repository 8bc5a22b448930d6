package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/markermap/markermap/internal/config"
	"github.com/markermap/markermap/internal/influx"
	"github.com/markermap/markermap/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const usageText = `Usage: markermap <command> [flags]

Commands:
  render   build the marker view into the host page once
  watch    render, then apply "filter <sel>" / "toggle <category> on|off" lines from stdin
  serve    serve a directory over HTTP so pages can load their dataset
  version  print the version

Run "markermap <command> --help" for the flags of a command.
`

// exit codes
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usageText)
		return exitUsage
	}

	switch strings.ToLower(args[0]) {
	case "render":
		return runRender(ctx, args[1:], nil, stdout, stderr)
	case "watch":
		return runRender(ctx, args[1:], stdin, stdout, stderr)
	case "serve":
		return runServe(ctx, args[1:], stderr)
	case "version", "--version":
		fmt.Fprintf(stdout, "%s %s (%s)\n", AppName, CurrentVersion, BuildDate)
		return exitOK
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usageText)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", args[0], usageText)
		return exitUsage
	}
}

// env is the ambient setup shared by all commands.
type env struct {
	Logger   zerolog.Logger
	Reporter *influx.Reporter

	closers []io.Closer
}

func (e *env) Close() {
	if e.Reporter != nil {
		e.Reporter.Close()
	}
	for _, c := range e.closers {
		_ = c.Close()
	}
}

// commonFlags registers the flags every command accepts and binds them to
// their config keys.
func commonFlags(fs *pflag.FlagSet) {
	fs.String("config-dir", ".", "directory containing "+config.FileName)
	fs.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	fs.String("logs-dir", "./markermaplogs", "directory for log files, empty disables file logging")
	fs.Bool("quiet", false, "do not log to the console")

	_ = viper.BindPFlag("logLevel", fs.Lookup("log-level"))
	_ = viper.BindPFlag("logsDir", fs.Lookup("logs-dir"))
}

// parseFlags parses args, then loads the config and sets up logging.
// A nil env with exitOK means help was printed.
func parseFlags(fs *pflag.FlagSet, args []string, stderr io.Writer) (*env, int) {
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil, exitOK
		}
		return nil, exitUsage
	}

	configDir, _ := fs.GetString("config-dir")
	configErr := config.Load(configDir)

	e, err := setupEnv(fs, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "markermap: %v\n", err)
		return nil, exitError
	}

	if configErr != nil {
		e.Logger.Warn().Err(configErr).Msg("Failed to load config, using defaults!")
	} else {
		e.Logger.Info().Str("file", viper.ConfigFileUsed()).Msg("Loaded config")
	}
	return e, exitOK
}

func setupEnv(fs *pflag.FlagSet, stderr io.Writer) (*env, error) {
	e := &env{}
	cfg := logging.Config{Level: config.GetString("logLevel")}
	if quiet, _ := fs.GetBool("quiet"); !quiet {
		cfg.Console = stderr
	}

	if logsDir := config.GetString("logsDir"); logsDir != "" {
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create logs dir: %w", err)
		}
		path := logging.LogFilePath(logsDir, AppName, time.Now())
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		cfg.File = f
		e.closers = append(e.closers, f)
	}

	if gl := config.GetGraylogConfig(); gl.Enabled {
		cfg.GraylogAddress = gl.Address
	}

	logger, closer, err := logging.New(cfg)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.Logger = logger
	e.closers = append([]io.Closer{closer}, e.closers...)

	if ic := config.GetInfluxConfig(); ic.Enabled {
		e.Reporter = influx.NewReporter(ic, logger)
		logger.Info().Str("url", ic.URL).Str("bucket", ic.Bucket).Msg("Reporting filter stats to InfluxDB")
	}
	return e, nil
}
