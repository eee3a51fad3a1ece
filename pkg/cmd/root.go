package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/pseudomuto/strata/pkg/config"
	"github.com/pseudomuto/strata/pkg/consts"
	"github.com/urfave/cli/v3"
	"go.uber.org/fx"
)

type (
	Params struct {
		fx.In

		Args       []string
		Commands   []*cli.Command `group:"commands"`
		Ctx        context.Context
		Lifecycle  fx.Lifecycle
		Session    *Session
		Shutdowner fx.Shutdowner
		Version    *Version
	}

	Version struct {
		Version   string
		Commit    string
		Timestamp string
	}

	// Session is the state shared by all commands. It is filled in from the
	// global flags before a subcommand runs.
	Session struct {
		// Dir is the project directory.
		Dir string

		// Config is nil when no config file was found and no database flags
		// were given.
		Config *config.Config

		// Logger writes to the error writer of the root command.
		Logger *slog.Logger
	}
)

// NewSession creates a Session around the config found at startup, which may
// be nil.
func NewSession(cfg *config.Config) *Session {
	return &Session{
		Dir:    ".",
		Config: cfg,
		Logger: slog.Default(),
	}
}

// Run registers the strata CLI application with the fx lifecycle. The
// application runs once fx has started and shuts the app down with a non-zero
// exit code when the command fails.
func Run(p Params) {
	cli.VersionPrinter = func(cmd *cli.Command) {
		fmt.Fprintln(cmd.Writer, "Version:", p.Version.Version)
		fmt.Fprintln(cmd.Writer, "Commit:", p.Version.Commit)
		fmt.Fprintln(cmd.Writer, "Date:", p.Version.Timestamp)
	}

	app := NewApp(p.Session, p.Version, p.Commands)

	p.Lifecycle.Append(fx.StartHook(func() {
		if err := app.Run(p.Ctx, p.Args); err != nil {
			slog.Error("Error running command", "err", err)
			_ = p.Shutdowner.Shutdown(fx.ExitCode(1))
			return
		}

		_ = p.Shutdowner.Shutdown(fx.ExitCode(0))
	}))
}

// NewApp creates the root strata command.
//
// Global Flags:
//   - --dir, -d: Project directory (defaults to current directory)
//   - --config, -c: Config file (defaults to strata.yaml in the project directory)
//   - --dialect: Overrides database.dialect
//   - --url, -u: Overrides database.url
//   - --location, -l: Overrides locations (repeatable)
//   - --out-of-order: Allows applying versions below the highest applied one
//   - --verbose: Enables debug logging
//
// Example usage:
//
//	strata init --dialect postgres --url '${DATABASE_URL}'
//	strata new "create users"
//	strata --url postgres://localhost/app migrate
//	strata info
func NewApp(s *Session, v *Version, commands []*cli.Command) *cli.Command {
	return &cli.Command{
		Name:  "strata",
		Usage: "Versioned schema migrations for SQL databases",
		Description: `strata applies ordered, versioned SQL scripts to a database exactly once and
keeps a history table recording what was applied, when and with which checksum.

Scripts are named V<version>__<description>.sql (versioned),
R__<description>.sql (repeatable) or U<version>__<description>.sql (undo).`,
		Version: v.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "dir",
				Aliases:     []string{"d"},
				Usage:       "the project directory",
				Value:       ".",
				DefaultText: "Current directory",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "the strata config file",
				Sources: cli.EnvVars(consts.ConfigEnvVar),
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			&cli.StringFlag{
				Name:  "dialect",
				Usage: "database dialect (sqlite, postgres, mysql, duckdb or clickhouse)",
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			&cli.StringFlag{
				Name:    "url",
				Aliases: []string{"u"},
				Usage:   "database connection string",
				Sources: cli.EnvVars("STRATA_DATABASE_URL"),
				Config: cli.StringConfig{
					TrimSpace: true,
				},
			},
			&cli.StringSliceFlag{
				Name:    "location",
				Aliases: []string{"l"},
				Usage:   "directory scanned for scripts (may be repeated)",
			},
			&cli.BoolFlag{
				Name:  "out-of-order",
				Usage: "allow applying versions lower than the highest applied version",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug logging",
			},
		},
		Commands: commands,
	}
}

// prepare resolves the global flags into the session. It is the Before hook
// of every subcommand, so global flags given after the command name count.
func (s *Session) prepare(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	level := slog.LevelInfo
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}

	errWriter := cmd.Root().ErrWriter
	if errWriter == nil {
		errWriter = os.Stderr
	}
	s.Logger = slog.New(slog.NewTextHandler(errWriter, &slog.HandlerOptions{Level: level}))

	s.Dir = cmd.String("dir")

	if cmd.IsSet("dir") || cmd.IsSet("config") {
		cfg, err := loadConfig(s.Dir, cmd.String("config"))
		if err != nil {
			return ctx, err
		}
		s.Config = cfg
	}

	if err := s.applyOverrides(cmd); err != nil {
		return ctx, err
	}

	if s.Config != nil {
		s.Logger.Debug("Using configuration",
			"dialect", s.Config.Database.Dialect,
			"locations", s.Config.Locations,
			"history_table", s.Config.HistoryTable,
		)
	}

	return ctx, nil
}

// loadConfig loads an explicit config file, or strata.yaml from dir when it
// exists.
func loadConfig(dir, path string) (*config.Config, error) {
	if path != "" {
		return config.LoadConfigFile(path)
	}

	path = filepath.Join(dir, consts.ConfigFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, nil
	}

	return config.LoadConfigFile(path)
}

func (s *Session) applyOverrides(cmd *cli.Command) error {
	overrides := []string{"dialect", "url", "location", "out-of-order"}

	var changed bool
	for _, name := range overrides {
		changed = changed || cmd.IsSet(name)
	}

	if !changed {
		return nil
	}

	if s.Config == nil {
		s.Config = config.Default()
		s.Config.Dir = s.Dir
	}

	if cmd.IsSet("dialect") {
		s.Config.Database.Dialect = cmd.String("dialect")
	}

	if cmd.IsSet("url") {
		s.Config.Database.URL = cmd.String("url")
	}

	if cmd.IsSet("location") {
		s.Config.Locations = cmd.StringSlice("location")
	}

	if cmd.IsSet("out-of-order") {
		s.Config.OutOfOrder = cmd.Bool("out-of-order")
	}

	return errors.Wrap(s.Config.Validate(), "invalid flags")
}

// requireConfig prepares the session and fails commands that need a database
// when neither a config file nor database flags were provided.
func (s *Session) requireConfig(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	ctx, err := s.prepare(ctx, cmd)
	if err != nil {
		return ctx, err
	}

	if s.Config == nil {
		return ctx, errors.Errorf("%s not found (run strata init or pass --dialect and --url)", consts.ConfigFile)
	}

	return ctx, nil
}
