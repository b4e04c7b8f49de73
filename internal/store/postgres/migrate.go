package postgres

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"wallet_shop/internal/utils"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate applique les migrations embarquées qui manquent
func Migrate(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("source migrations: %w", err)
	}
	driver, err := migratepg.WithInstance(db, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("driver migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			utils.Log.Info("✅ Schéma PostgreSQL à jour")
			return nil
		}
		return fmt.Errorf("migrations: %w", err)
	}

	version, _, _ := m.Version()
	utils.Log.Infof("✅ Migrations PostgreSQL appliquées (version %d)", version)
	return nil
}
