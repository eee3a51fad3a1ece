// Package docker runs throwaway databases in Docker for integration tests.
//
// Containers are managed with testcontainers-go. ClickHouse and Postgres are
// supported, which covers one backend without transactional DDL and one
// with it. A container reports its connection string in the form
// database.Open expects, so tests can drive the migration engine against a
// real server.
//
// # Usage Example
//
//	container := docker.NewPostgres(docker.Options{Version: "16-alpine"})
//	if err := container.Start(ctx); err != nil {
//		return err
//	}
//	defer container.Stop(ctx)
//
//	opts, err := container.DatabaseOptions(ctx)
//	if err != nil {
//		return err
//	}
//
//	db, err := database.Open(ctx, opts)
//	if err != nil {
//		return err
//	}
//	defer db.Close()
//
// ClickHouse containers accept an optional config directory that is mounted
// into /etc/clickhouse-server/config.d:
//
//	container := docker.NewClickHouse(docker.Options{
//		Version:   "25.7",
//		ConfigDir: "testdata/config.d",
//	})
//
// Integration tests using this package are skipped when Docker is not
// available or when running with -short.
package docker
