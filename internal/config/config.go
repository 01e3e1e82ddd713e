package config

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string           `yaml:"env" env-default:"development"` // environment
	HTTPServer HTTPServerConfig `yaml:"http_server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Migrations MigrationsConfig `yaml:"migrations"`
	Orders     OrdersConfig     `yaml:"orders"`
	Pricing    PricingConfig    `yaml:"pricing"`
	RabbitMQ   RabbitMQConfig   `yaml:"rabbitmq"`
	Outbox     OutboxConfig     `yaml:"outbox"`
}

// HTTPServerConfig структура http сервера
type HTTPServerConfig struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	CORS        CORSConfig    `yaml:"cors"`
}

// CORSConfig - доступ фронтенда к API
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"http://localhost:3000"`
	AllowCredentials bool     `yaml:"allow_credentials" env-default:"true"`
	MaxAge           int      `yaml:"max_age" env-default:"300"`
}

// DatabaseConfig структура по работе с БД
type DatabaseConfig struct {
	Host     string `yaml:"host" env-default:"localhost"`
	Port     int    `yaml:"port" env-default:"5432"`
	User     string `yaml:"user" env-required:"true"`
	Password string `yaml:"-" env:"DB_PASSWORD" env-required:"true"`
	Name     string `yaml:"name" env-required:"true"`
	// LockTimeout - сколько запрос ждёт чужую блокировку строки, потом ошибка 55P03
	LockTimeout time.Duration `yaml:"lock_timeout" env-default:"3s"`
}

// JWTConfig настройка jwt
type JWTConfig struct {
	Secret   string `yaml:"-" env:"JWT_SECRET" env-required:"true"`
	TokenTTL int    `yaml:"token_ttl" env-default:"60"`
}

type MigrationsConfig struct {
	Path string `yaml:"path" env-default:"./migrations"`
}

// OrdersConfig настройки оформления заказов
type OrdersConfig struct {
	CreateTimeout   time.Duration `yaml:"create_timeout" env-default:"10s"`
	NumberAttempts  int           `yaml:"number_attempts" env-default:"5"`
	DefaultPageSize int           `yaml:"default_page_size" env-default:"20"`
	AdminPageSize   int           `yaml:"admin_page_size" env-default:"50"`
	MaxPageSize     int           `yaml:"max_page_size" env-default:"100"`
}

// PricingConfig - ставки задаются строками, чтобы не терять точность
type PricingConfig struct {
	TaxRate               string `yaml:"tax_rate" env-default:"0.08"`
	FlatShipping          string `yaml:"flat_shipping" env-default:"9.99"`
	FreeShippingThreshold string `yaml:"free_shipping_threshold" env-default:"100.00"`
}

// RabbitMQConfig - пустой URL отключает публикацию событий
type RabbitMQConfig struct {
	URL      string `yaml:"-" env:"RABBITMQ_URL"`
	Exchange string `yaml:"exchange" env-default:"orders"`
}

type OutboxConfig struct {
	PollInterval       time.Duration `yaml:"poll_interval" env-default:"5s"`
	BatchSize          int           `yaml:"batch_size" env-default:"100"`
	MaxRetries         int           `yaml:"max_retries" env-default:"10"`
	RetryBackoff       time.Duration `yaml:"retry_backoff" env-default:"30s"`
	PublishConcurrency int           `yaml:"publish_concurrency" env-default:"4"`
	// ClaimLease - на сколько захваченное сообщение скрыто от других экземпляров
	ClaimLease time.Duration `yaml:"claim_lease" env-default:"1m"`
}

// MustLoad - если не загружаем - паникуем
func MustLoad() *Config {
	configPath := fetchConfigPath()
	if configPath == "" {
		log.Fatal("CONFIG_PATH not exists")
	}
	return MustLoadByPath(configPath)
}

func fetchConfigPath() string {
	var path string

	if f := flag.Lookup("config"); f != nil {
		path = f.Value.String()
	} else {
		flag.StringVar(&path, "config", "", "path to config file")
		flag.Parse()
	}

	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	return path
}

func MustLoadByPath(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("config file not found: " + configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("can't read config file %s: %v", configPath, err)
	}

	return &cfg
}
