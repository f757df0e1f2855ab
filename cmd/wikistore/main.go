// Package main is the command line front end of the wiki store.
//
// wikistore reads and writes pages, attachments and share ids of a wiki
// directory. Configuration is read from a YAML file (see -config) and
// overridden by flags.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	"github.com/maruel/wikistore/internal/storage"
	"github.com/maruel/wikistore/internal/storage/content"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	flag "github.com/spf13/pflag"
)

func main() {
	if err := mainImpl(); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintf(os.Stderr, "wikistore: %v\n", err)
		os.Exit(1)
	}
}

func mainImpl() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()
	ll := &slog.LevelVar{}
	ll.Set(slog.LevelInfo)
	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000", // Like time.TimeOnly plus milliseconds.
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			val := a.Value.Any()
			skip := false
			switch t := val.(type) {
			case string:
				skip = t == ""
			case int64:
				skip = t == 0
			case time.Time:
				skip = t.IsZero()
			case nil:
				skip = true
			}
			if skip {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	a := &app{stdin: os.Stdin, stdout: os.Stdout, level: ll}
	return a.run(ctx, os.Args[1:])
}

// app holds the process wide state of one invocation.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	level  *slog.LevelVar
}

func (a *app) run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("wikistore", flag.ContinueOnError)
	fs.SetInterspersed(false)
	configPath := fs.String("config", "wikistore.yaml", "Configuration file; defaults are used when it is missing")
	storeDir := fs.String("store", "", "Wiki directory (overrides store_dir)")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error (overrides log_level)")
	watch := fs.Bool("watch", false, "Watch the store for outside changes (overrides watch)")
	workers := fs.Int("workers", 0, "Pages read concurrently (overrides search.workers)")
	asJSON := fs.Bool("json", false, "Print results as JSON")
	version := fs.Bool("version", false, "Print version and exit")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: wikistore [options] <command> [args]\n\nCommands:\n")
		for _, c := range commands {
			fmt.Fprintf(os.Stderr, "  %-34s %s\n", c.name+" "+c.args, c.help)
		}
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *version {
		printVersion(a.stdout)
		return nil
	}

	cfg, err := storage.LoadConfig(*configPath)
	if err != nil {
		return err
	}
	if fs.Changed("store") {
		cfg.StoreDir = *storeDir
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}
	if fs.Changed("watch") {
		cfg.Watch = *watch
	}
	if fs.Changed("workers") {
		cfg.Search.Workers = *workers
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return err
	}
	a.level.Set(lvl)

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("missing command")
	}
	cmd := findCommand(rest[0])
	if cmd == nil {
		return fmt.Errorf("unknown command %q", rest[0])
	}
	if len(rest)-1 < cmd.minArgs || (cmd.maxArgs >= 0 && len(rest)-1 > cmd.maxArgs) {
		return fmt.Errorf("usage: wikistore %s %s", cmd.name, cmd.args)
	}
	if cmd.name == "config" {
		return cmdConfig(cfg, *configPath, rest[1:], a.stdout)
	}

	w, err := content.Open(ctx, cfg.StoreDir, content.Options{
		Watch:         cfg.Watch,
		SearchWorkers: cfg.Search.Workers,
		SearchRate:    cfg.Search.RatePerSec,
		SearchBurst:   cfg.Search.Burst,
	})
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	slog.DebugContext(ctx, "store opened", "dir", cfg.StoreDir)
	out := &output{w: a.stdout, json: *asJSON}
	return cmd.run(ctx, w, &env{args: rest[1:], stdin: a.stdin, out: out})
}

func printVersion(w io.Writer) {
	version, goVersion, revision, dirty := getBuildInfo()
	_, _ = fmt.Fprintf(w, "wikistore %s\n", version)
	_, _ = fmt.Fprintf(w, "  Go version: %s\n", goVersion)
	_, _ = fmt.Fprintf(w, "  Revision:   %s\n", revision)
	if dirty {
		_, _ = fmt.Fprintf(w, "  Modified:   true\n")
	}
}

func getBuildInfo() (version, goVersion, revision string, dirty bool) {
	version = "unknown"
	goVersion = "unknown"
	revision = "unknown"
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	version = info.Main.Version
	if version == "" || version == "(devel)" {
		version = "dev"
	}
	goVersion = info.GoVersion
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			revision = setting.Value
		case "vcs.modified":
			dirty = setting.Value == "true"
		}
	}
	return
}
