package config

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/pseudomuto/strata/pkg/consts"
	"github.com/pseudomuto/strata/pkg/database"
	"github.com/pseudomuto/strata/pkg/history"
	"github.com/pseudomuto/strata/pkg/migrator"
	"github.com/pseudomuto/strata/pkg/validator"
	"gopkg.in/yaml.v3"
)

type (
	// Database describes the target database.
	Database struct {
		// Dialect is one of sqlite, postgres, mysql, duckdb or clickhouse.
		Dialect string `yaml:"dialect"`

		// URL is the driver specific connection string. Environment variables
		// ($VAR or ${VAR}) are expanded when the config is loaded.
		URL string `yaml:"url"`

		// TLS configures mutual TLS for postgres, mysql and clickhouse.
		TLS *database.TLSSettings `yaml:"tls,omitempty"`
	}

	// Lock configures the advisory lock.
	Lock struct {
		// Table is the lock table name.
		Table string `yaml:"table"`

		// Timeout bounds how long a run waits for the lock, e.g. "30s".
		Timeout time.Duration `yaml:"timeout"`

		// PollInterval is the delay between lock attempts.
		PollInterval time.Duration `yaml:"poll_interval"`

		// StaleAfter is the age after which an abandoned lock is removed.
		StaleAfter time.Duration `yaml:"stale_after"`
	}

	// Config represents the strata project configuration.
	Config struct {
		// Database contains the connection settings
		Database Database `yaml:"database"`

		// Locations lists the directories scanned for migration scripts
		Locations []string `yaml:"locations"`

		// HistoryTable is the name of the history table
		HistoryTable string `yaml:"history_table"`

		// Lock contains the advisory lock settings
		Lock Lock `yaml:"lock"`

		// OutOfOrder allows applying versions lower than the highest applied one
		OutOfOrder bool `yaml:"out_of_order"`

		// Target is the highest version migrate applies (empty for no limit)
		Target string `yaml:"target,omitempty"`

		// MissingSeverity is ignore, warn or error
		MissingSeverity string `yaml:"missing_severity"`

		// InstalledBy is recorded with every applied script
		InstalledBy string `yaml:"installed_by,omitempty"`

		// Dir is the directory relative locations are resolved against.
		// LoadConfigFile sets it to the directory of the file.
		Dir string `yaml:"-"`
	}
)

// Default returns a configuration populated with the defaults from pkg/consts.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig parses a strata configuration from the provided io.Reader.
//
// Missing values fall back to the defaults in pkg/consts and environment
// variables in database.url are expanded. The result is validated.
//
// Example:
//
//	yamlData := `
//	database:
//	  dialect: postgres
//	  url: ${DATABASE_URL}
//	locations:
//	  - db/migrations
//	`
//
//	cfg, err := config.LoadConfig(strings.NewReader(yamlData))
//	if err != nil {
//		panic(err)
//	}
//
//	fmt.Printf("Dialect: %s\n", cfg.Database.Dialect)
func LoadConfig(r io.Reader) (*Config, error) {
	var cfg Config
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal strata config")
	}

	cfg.Database.URL = os.ExpandEnv(cfg.Database.URL)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadConfigFile loads a project configuration from the specified file path.
// This is a convenience function that opens the file and calls LoadConfig.
//
// Example:
//
//	cfg, err := config.LoadConfigFile("strata.yaml")
//	if err != nil {
//		log.Fatal("Failed to load config:", err)
//	}
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open file: %s", path)
	}
	defer func() { _ = f.Close() }()

	cfg, err := LoadConfig(f)
	if err != nil {
		return nil, err
	}

	cfg.Dir = filepath.Dir(path)
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Database.Dialect == "" {
		c.Database.Dialect = consts.DefaultDialect
	}
	if len(c.Locations) == 0 {
		c.Locations = []string{consts.DefaultLocation}
	}
	if c.HistoryTable == "" {
		c.HistoryTable = consts.DefaultHistoryTable
	}
	if c.Lock.Table == "" {
		c.Lock.Table = consts.DefaultLockTable
	}
	if c.Lock.Timeout == 0 {
		c.Lock.Timeout = consts.DefaultLockTimeout
	}
	if c.Lock.PollInterval == 0 {
		c.Lock.PollInterval = consts.DefaultLockPollInterval
	}
	if c.Lock.StaleAfter == 0 {
		c.Lock.StaleAfter = consts.DefaultLockStaleAfter
	}
	if c.MissingSeverity == "" {
		c.MissingSeverity = consts.DefaultMissingSeverity
	}
}

// Validate checks the values that can be checked without connecting.
func (c *Config) Validate() error {
	if _, err := database.LookupDialect(c.Database.Dialect); err != nil {
		return err
	}

	if _, err := c.TargetVersion(); err != nil {
		return err
	}

	if _, err := validator.ParseSeverity(c.MissingSeverity); err != nil {
		return err
	}

	if c.Lock.Timeout < 0 || c.Lock.PollInterval < 0 {
		return errors.New("lock timeout and poll interval must not be negative")
	}

	return nil
}

// DatabaseOptions returns the options for database.Open.
func (c *Config) DatabaseOptions() database.Options {
	return database.Options{
		Dialect: c.Database.Dialect,
		URL:     c.Database.URL,
		TLS:     c.Database.TLS,
	}
}

// HistoryOptions returns the history store options.
func (c *Config) HistoryOptions() history.Options {
	return history.Options{
		Table:        c.HistoryTable,
		LockTable:    c.Lock.Table,
		LockTimeout:  c.Lock.Timeout,
		PollInterval: c.Lock.PollInterval,
		StaleAfter:   c.Lock.StaleAfter,
	}
}

// Sources returns a directory source for each location.
func (c *Config) Sources() []migrator.Source {
	sources := make([]migrator.Source, len(c.Locations))
	for i, loc := range c.Locations {
		sources[i] = migrator.NewDirSource(c.LocationPath(loc))
	}

	return sources
}

// LocationPath resolves loc against Dir.
func (c *Config) LocationPath(loc string) string {
	if c.Dir == "" || filepath.IsAbs(loc) {
		return loc
	}

	return filepath.Join(c.Dir, loc)
}

// TargetVersion parses Target. It returns nil when no target is set.
func (c *Config) TargetVersion() (*migrator.Version, error) {
	if c.Target == "" {
		return nil, nil
	}

	v, err := migrator.ParseVersion(c.Target)
	if err != nil {
		return nil, errors.Wrap(err, "invalid target")
	}

	return v, nil
}

// Severity parses MissingSeverity.
func (c *Config) Severity() (validator.Severity, error) {
	return validator.ParseSeverity(c.MissingSeverity)
}
