package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/specialistvlad/burststate/internal/config"
	"github.com/specialistvlad/burststate/internal/hcl_adapter"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Invocation is everything a parsed command line asks for.
type Invocation struct {
	Config  *config.Model
	Actions []string
	Serve   bool
}

// configPaths collects repeated -config flags.
type configPaths []string

func (p *configPaths) String() string { return strings.Join(*p, ",") }

func (p *configPaths) Set(v string) error {
	*p = append(*p, v)
	return nil
}

// Parse processes command-line arguments. Configuration is layered: HCL
// files, then BURSTSTATE_* environment variables, then explicitly set
// flags. It returns the invocation, a boolean indicating if the program
// should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*Invocation, bool, error) {
	return parse(context.Background(), args, output, config.ApplyEnv)
}

func parse(ctx context.Context, args []string, output io.Writer, applyEnv func(*config.Model) error) (*Invocation, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("burststate", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
burststate - A modular, reactive state container.

Usage:
  burststate [options] [ACTION...]

Arguments:
  ACTION
    A tagged action document, for example '{"@type":"counter.Increment","value":{}}'.
    Actions are dispatched in order; the final state is printed as a snapshot.

Options:
`)
		flagSet.PrintDefaults()
	}

	var paths configPaths
	flagSet.Var(&paths, "config", "Path to an .hcl file or a directory of them. May be repeated.")
	flagSet.Var(&paths, "c", "Path to an .hcl file or a directory (shorthand).")
	storeName := flagSet.String("store-name", "", "Name of the store; keys the snapshot in shared backends.")
	workers := flagSet.Int("workers", 0, "Number of dispatch workers.")
	logFormat := flagSet.String("log-format", "", "Log output format. Options: 'text' or 'json'.")
	logLevel := flagSet.String("log-level", "", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	healthPort := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health and state server. 0 is disabled.")
	backend := flagSet.String("backend", "", "Persistence backend. Options: 'none', 'memory', 'file', 'sqlite'.")
	statePath := flagSet.String("state", "", "Snapshot path for the file and sqlite backends.")
	restore := flagSet.Bool("restore", false, "Restore the snapshot on start.")
	save := flagSet.Bool("save", false, "Save a snapshot on shutdown.")
	devtoolsURL := flagSet.String("devtools-url", "", "socket.io URL of a devtools inspector.")
	serve := flagSet.Bool("serve", false, "Keep running after the actions until interrupted.")

	if err := flagSet.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	cfg, err := hcl_adapter.NewLoader().Load(ctx, paths...)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	set := make(map[string]bool)
	flagSet.Visit(func(f *flag.Flag) { set[f.Name] = true })
	override := func(name string, apply func()) {
		if set[name] {
			apply()
		}
	}
	override("store-name", func() { cfg.Store.Name = *storeName })
	override("workers", func() { cfg.Store.Workers = *workers })
	override("log-format", func() { cfg.Logging.Format = strings.ToLower(*logFormat) })
	override("log-level", func() { cfg.Logging.Level = strings.ToLower(*logLevel) })
	override("healthcheck-port", func() { cfg.Healthcheck.Port = *healthPort })
	override("backend", func() { cfg.Persistence.Backend = strings.ToLower(*backend) })
	override("state", func() { cfg.Persistence.Path = *statePath })
	override("restore", func() { cfg.Persistence.RestoreOnStart = *restore })
	override("save", func() { cfg.Persistence.SaveOnShutdown = *save })
	override("devtools-url", func() { cfg.Devtools.URL = *devtoolsURL })

	if err := cfg.Validate(); err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	actions := flagSet.Args()
	if len(actions) == 0 && !*serve && len(paths) == 0 {
		slog.Debug("Nothing to do, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}
	slog.Debug("CLI parser finished successfully.", "actions", len(actions), "serve", *serve)
	return &Invocation{Config: cfg, Actions: actions, Serve: *serve}, false, nil
}
