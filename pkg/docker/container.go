package docker

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/go-connections/nat"
	"github.com/pkg/errors"
	"github.com/pseudomuto/strata/pkg/database"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultClickHouseVersion is the ClickHouse image tag used when none is set
	DefaultClickHouseVersion = "latest"

	// DefaultPostgresVersion is the Postgres image tag used when none is set
	DefaultPostgresVersion = "16-alpine"

	// PostgresDatabase is the database created in Postgres containers
	PostgresDatabase = "strata"
)

type (
	// Options represents options for running a database in Docker
	Options struct {
		// Version is the image tag to run
		Version string

		// ConfigDir is an optional ClickHouse config directory mounted into
		// /etc/clickhouse-server/config.d (relative paths are made absolute).
		// Ignored for Postgres.
		ConfigDir string
	}

	// Container manages a database Docker container for integration tests
	Container struct {
		dialect   *database.Dialect
		options   Options
		container testcontainers.Container
		dsn       func(context.Context) (string, error)
	}
)

// NewClickHouse creates a ClickHouse container. Nothing is started until
// Start is called.
//
// Example:
//
//	container := docker.NewClickHouse(docker.Options{Version: "25.7"})
//	if err := container.Start(ctx); err != nil {
//		log.Fatal(err)
//	}
//	defer container.Stop(ctx)
//
//	opts, err := container.DatabaseOptions(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	db, err := database.Open(ctx, opts)
func NewClickHouse(opts Options) *Container {
	return &Container{dialect: database.ClickHouse, options: opts}
}

// NewPostgres creates a Postgres container. Nothing is started until Start is
// called.
func NewPostgres(opts Options) *Container {
	return &Container{dialect: database.Postgres, options: opts}
}

// Dialect returns the dialect of the database in the container.
func (c *Container) Dialect() *database.Dialect { return c.dialect }

// Start starts the container and waits until the database accepts
// connections.
func (c *Container) Start(ctx context.Context) error {
	if c.container != nil {
		return errors.New("container is already running")
	}

	switch c.dialect {
	case database.ClickHouse:
		return c.startClickHouse(ctx)
	case database.Postgres:
		return c.startPostgres(ctx)
	default:
		return errors.Wrapf(database.ErrUnknownDialect, "no container for %s", c.dialect)
	}
}

func (c *Container) startClickHouse(ctx context.Context) error {
	version := c.options.Version
	if version == "" {
		version = DefaultClickHouseVersion
	}

	customizers := []testcontainers.ContainerCustomizer{
		clickhouse.WithUsername("default"),
		clickhouse.WithPassword(""),
		testcontainers.WithEnv(map[string]string{"CLICKHOUSE_DEFAULT_ACCESS_MANAGEMENT": "1"}),
		testcontainers.WithWaitStrategyAndDeadline(
			5*time.Minute,
			wait.
				NewHTTPStrategy("/").
				WithPort(nat.Port("8123/tcp")).
				WithStatusCodeMatcher(func(status int) bool {
					return status == 200
				}),
		),
	}

	if c.options.ConfigDir != "" {
		absConfigDir, err := filepath.Abs(c.options.ConfigDir)
		if err != nil {
			return errors.Wrapf(err, "failed to get absolute path for ConfigDir: %s", c.options.ConfigDir)
		}

		customizers = append(
			customizers,
			testcontainers.WithHostConfigModifier(func(hostConfig *container.HostConfig) {
				hostConfig.Mounts = []mount.Mount{
					{
						Type:   mount.TypeBind,
						Source: absConfigDir,
						Target: "/etc/clickhouse-server/config.d",
					},
				}
			}),
		)
	}

	ch, err := clickhouse.Run(ctx,
		fmt.Sprintf("clickhouse/clickhouse-server:%s-alpine", version),
		customizers...,
	)
	if err != nil {
		return errors.Wrap(err, "failed to start ClickHouse container")
	}

	c.container = ch
	c.dsn = func(ctx context.Context) (string, error) {
		return ch.ConnectionString(ctx)
	}

	return nil
}

func (c *Container) startPostgres(ctx context.Context) error {
	version := c.options.Version
	if version == "" {
		version = DefaultPostgresVersion
	}

	pg, err := postgres.Run(ctx,
		"postgres:"+version,
		postgres.WithDatabase(PostgresDatabase),
		postgres.WithUsername("strata"),
		postgres.WithPassword("strata"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to start Postgres container")
	}

	c.container = pg
	c.dsn = func(ctx context.Context) (string, error) {
		return pg.ConnectionString(ctx, "sslmode=disable")
	}

	return nil
}

// Stop stops and removes the container
func (c *Container) Stop(ctx context.Context) error {
	if c.container == nil {
		return nil
	}

	err := c.container.Terminate(ctx)
	c.container = nil
	c.dsn = nil

	if err != nil {
		return errors.Wrapf(err, "failed to stop %s container", c.dialect)
	}

	return nil
}

// GetDSN returns the connection string of the database in the container
func (c *Container) GetDSN(ctx context.Context) (string, error) {
	if c.container == nil {
		return "", errors.New("container is not running")
	}

	dsn, err := c.dsn(ctx)
	if err != nil {
		return "", errors.Wrap(err, "failed to get connection string")
	}

	return dsn, nil
}

// DatabaseOptions returns the options for database.Open.
func (c *Container) DatabaseOptions(ctx context.Context) (database.Options, error) {
	dsn, err := c.GetDSN(ctx)
	if err != nil {
		return database.Options{}, err
	}

	return database.Options{Dialect: c.dialect.Name, URL: dsn}, nil
}

// IsRunning returns true if the container is currently running
func (c *Container) IsRunning() bool {
	return c.container != nil
}
