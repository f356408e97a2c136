package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"
	kongcompletion "github.com/jotaen/kong-completion"
	"gopkg.in/natefinch/lumberjack.v2"

	_ "github.com/autoforge-project/autoforge/internal/builder/cmakebuilder"
	_ "github.com/autoforge-project/autoforge/internal/builder/makebuilder"
	"github.com/autoforge-project/autoforge/internal/env"
	"github.com/autoforge-project/autoforge/internal/history"
	"github.com/autoforge-project/autoforge/internal/loader"
	"github.com/autoforge-project/autoforge/internal/registry"
	"github.com/autoforge-project/autoforge/internal/telemetry"
	"github.com/autoforge-project/autoforge/internal/variables"
	"github.com/autoforge-project/autoforge/internal/watchdog"

	"golang.org/x/term"
)

// Context is the shared set of process-wide collaborators every subcommand
// receives, mirroring cmd/sand's Context-as-dependency-carrier pattern.
type Context struct {
	Env       *env.Env
	Registry  *registry.Registry
	Loader    *loader.Loader
	Vars      *variables.Store
	Telemetry *telemetry.Telemetry
	Watchdog  *watchdog.Watchdog
	History   *history.Ledger
}

// CLI is the top-level flag/subcommand surface. Flags default the way
// cmd/sand/main.go's CLI struct does: a placeholder-documented default that
// resolves relative to the application home directory when left empty.
type CLI struct {
	LogFile  string `default:"" placeholder:"<log-file-path>" help:"location of the log file (leave empty for ~/.autoforge/autoforge.log)"`
	LogLevel string `default:"info" placeholder:"<debug|info|warn|error>" help:"the logging level (debug, info, warn, error)"`
	HomeDir  string `default:"" placeholder:"<home-dir>" help:"AutoForge home directory for logs and history (leave unset to use ~/.autoforge)"`

	Build      BuildCmd      `cmd:"" help:"build a solution/project/configuration"`
	Vars       VarsCmd       `cmd:"" help:"list, get, or set variables in the Variable Store"`
	Solution   SolutionCmd   `cmd:"" help:"inspect a loaded solution"`
	History    HistoryCmd    `cmd:"" help:"inspect the local build-run history ledger"`
	Version    VersionCmd    `cmd:"" help:"print version information"`
}

const description = `AutoForge builds declarative solution trees against pluggable toolchains.`

func appHomeDir(override string) (string, error) {
	if override != "" {
		if err := os.MkdirAll(override, 0o755); err != nil {
			return "", fmt.Errorf("creating home directory %q: %w", override, err)
		}
		return override, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	dir := filepath.Join(homeDir, ".autoforge")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating application home directory: %w", err)
	}
	return dir, nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newLogger builds the process logger: rotated JSON to file always, plus a
// human-readable handler to stderr when stderr is a terminal.
func newLogger(logFile string, level slog.Level) *slog.Logger {
	fileHandler := slog.NewJSONHandler(&lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    20, // megabytes
		MaxBackups: 5,
		MaxAge:     30, // days
		Compress:   true,
	}, &slog.HandlerOptions{Level: level})

	if term.IsTerminal(int(os.Stderr.Fd())) {
		textHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
		return slog.New(teeHandler{fileHandler, textHandler})
	}
	return slog.New(fileHandler)
}

// teeHandler fans every record out to both an always-on file handler and a
// human-readable terminal handler, since log/slog has no built-in fan-out.
type teeHandler struct {
	file slog.Handler
	term slog.Handler
}

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return t.file.Enabled(ctx, level) || t.term.Enabled(ctx, level)
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := t.file.Handle(ctx, r.Clone()); err != nil {
		return err
	}
	return t.term.Handle(ctx, r.Clone())
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return teeHandler{t.file.WithAttrs(attrs), t.term.WithAttrs(attrs)}
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	return teeHandler{t.file.WithGroup(name), t.term.WithGroup(name)}
}

func main() {
	var cli CLI

	parser, err := kong.New(&cli,
		kong.Configuration(kongyaml.Loader, "~/.autoforge.yaml"),
		kong.Description(description))
	if err != nil {
		fmt.Fprintf(os.Stderr, "building CLI parser: %v\n", err)
		os.Exit(1)
	}
	kongcompletion.Register(parser)

	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	homeDir, err := appHomeDir(cli.HomeDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logFile := cli.LogFile
	if logFile == "" {
		logFile = filepath.Join(homeDir, "autoforge.log")
	}
	logger := newLogger(logFile, parseLevel(cli.LogLevel))
	slog.SetDefault(logger)

	e := env.New(logger, homeDir)

	tel := telemetry.New(e, "autoforge")
	wd := watchdog.New(e)
	reg := registry.New()
	ld := loader.New(e, reg)
	tel.MarkModuleBoot("Registry")

	if err := ld.LoadManifest(); err != nil {
		fmt.Fprintf(os.Stderr, "loading plugin manifest: %v\n", err)
		os.Exit(1)
	}
	tel.MarkModuleBoot("Loader")

	vars := variables.New(e)
	tel.MarkModuleBoot("VariableStore")

	hist, err := history.Open(filepath.Join(homeDir, "history.db"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening history ledger: %v\n", err)
		os.Exit(1)
	}
	defer hist.Close()
	tel.MarkModuleBoot("History")

	wd.Start(10 * time.Minute)

	appCtx := &Context{
		Env:       e,
		Registry:  reg,
		Loader:    ld,
		Vars:      vars,
		Telemetry: tel,
		Watchdog:  wd,
		History:   hist,
	}

	err = kctx.Run(appCtx)
	wd.Stop()
	kctx.FatalIfErrorf(err)
}
