package postgres

import (
	"errors"
	"fmt"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/strikesense/analysis-backend/internal/config"
)

// RunMigrations applies any pending schema migrations at startup.
func RunMigrations(c *config.Config) error {
	dir := c.Postgres.MigrationsDir
	if dir == "" {
		dir = "migrations"
	}
	sslMode := c.Postgres.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	dbURL := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Postgres.User,
		url.QueryEscape(c.Postgres.Password),
		c.Postgres.Host,
		c.Postgres.Port,
		c.Postgres.Name,
		sslMode,
	)

	m, err := migrate.New("file://"+dir, dbURL)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}
