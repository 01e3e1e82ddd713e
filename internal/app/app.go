package app

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"

	_ "github.com/lib/pq"
	"github.com/linemk/jersey-shop/internal/config"
	"github.com/linemk/jersey-shop/internal/pricing"
	"github.com/shopspring/decimal"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	DB     *sql.DB
}

// NewApp создаёт новый экземпляр App
func NewApp(log *slog.Logger, cfg *config.Config) (*App, error) {
	dsn, err := BuildDSN(cfg.Database)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	app := &App{
		Config: cfg,
		Logger: log,
		DB:     db,
	}

	return app, nil
}

// BuildDSN собирает DSN. lock_timeout уходит в postgres как параметр сессии,
// поэтому ожидание чужой блокировки строки ограничено на каждом соединении.
func BuildDSN(dbCfg config.DatabaseConfig) (string, error) {
	password := dbCfg.Password
	if password == "" {
		password = os.Getenv("DB_PASSWORD")
	}
	if password == "" {
		return "", fmt.Errorf("DB_PASSWORD environment variable is not set")
	}

	q := url.Values{}
	q.Set("sslmode", "disable")
	if dbCfg.LockTimeout > 0 {
		q.Set("lock_timeout", fmt.Sprintf("%d", dbCfg.LockTimeout.Milliseconds()))
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(dbCfg.User, password),
		Host:     fmt.Sprintf("%s:%d", dbCfg.Host, dbCfg.Port),
		Path:     "/" + dbCfg.Name,
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}

// NewCalculator собирает калькулятор из строковых ставок конфига
func NewCalculator(cfg config.PricingConfig) (*pricing.Calculator, error) {
	taxRate, err := decimal.NewFromString(cfg.TaxRate)
	if err != nil {
		return nil, fmt.Errorf("invalid tax_rate %q: %w", cfg.TaxRate, err)
	}
	flat, err := decimal.NewFromString(cfg.FlatShipping)
	if err != nil {
		return nil, fmt.Errorf("invalid flat_shipping %q: %w", cfg.FlatShipping, err)
	}
	threshold, err := decimal.NewFromString(cfg.FreeShippingThreshold)
	if err != nil {
		return nil, fmt.Errorf("invalid free_shipping_threshold %q: %w", cfg.FreeShippingThreshold, err)
	}
	if taxRate.IsNegative() || flat.IsNegative() || threshold.IsNegative() {
		return nil, fmt.Errorf("pricing values must not be negative")
	}
	return pricing.NewCalculator(taxRate, flat, threshold), nil
}
