package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lib/pq"
	"github.com/linemk/jersey-shop/internal/config"
)

const migrationTableName = "migrations"

// таблицы, без которых сервер заказов не поднимется
var requiredTables = []string{"users", "products", "product_variants", "orders", "order_items", "outbox"}

// buildMigrateDSN собирает строку подключения (DSN) из отдельных параметров
func buildMigrateDSN(dbCfg config.DatabaseConfig, migrationTable string, dbPassword string) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable&x-migrations-table=%s",
		dbCfg.User, dbPassword, dbCfg.Host, dbCfg.Port, dbCfg.Name, migrationTable,
	)
}

// buildQueryDSN собирает DSN для обычных SQL запросов
func buildQueryDSN(dbCfg config.DatabaseConfig, dbPassword string) string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=disable",
		dbCfg.User, dbPassword, dbCfg.Host, dbCfg.Port, dbCfg.Name,
	)
}

func main() {
	var (
		migrationsPathFlag string
		down               bool
	)
	flag.StringVar(&migrationsPathFlag, "migrations-path", "", "path to migration files")
	flag.BoolVar(&down, "down", false, "roll back all migrations")
	// config.MustLoad прочитает значение через flag.Lookup
	flag.String("config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad()

	migrationsPath := cfg.Migrations.Path
	if migrationsPathFlag != "" {
		migrationsPath = migrationsPathFlag
	}

	dbPassword := cfg.Database.Password
	if dbPassword == "" {
		dbPassword = GetEnv("DB_PASSWORD", "")
	}
	if dbPassword == "" {
		log.Fatal("DB_PASSWORD environment variable is required")
	}

	log.Printf("applying migrations from %s to %s:%d/%s", migrationsPath, cfg.Database.Host, cfg.Database.Port, cfg.Database.Name)

	m, err := migrate.New("file://"+migrationsPath, buildMigrateDSN(cfg.Database, migrationTableName, dbPassword))
	if err != nil {
		log.Fatalf("failed to create migrate instance: %v", err)
	}

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		log.Println("no migrations to apply")
	case err != nil:
		log.Fatalf("migration failed: %v", err)
	default:
		log.Println("migrations applied successfully")
	}

	if version, dirty, err := m.Version(); err == nil {
		log.Printf("schema version %d (dirty=%t)", version, dirty)
	}

	if down {
		return
	}

	db, err := sql.Open("postgres", buildQueryDSN(cfg.Database, dbPassword))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	missing, err := missingTables(db, requiredTables)
	if err != nil {
		log.Fatalf("failed to check schema: %v", err)
	}
	if len(missing) > 0 {
		log.Fatalf("schema is incomplete, missing tables: %v", missing)
	}
	log.Printf("schema ok: %v", requiredTables)
}

// missingTables возвращает таблицы из списка, которых нет в схеме public
func missingTables(db *sql.DB, tables []string) ([]string, error) {
	rows, err := db.Query(`
		SELECT t
		FROM unnest($1::text[]) AS t
		WHERE NOT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = t
		)
		ORDER BY t
	`, pq.Array(tables))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var missing []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		missing = append(missing, name)
	}
	return missing, rows.Err()
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
