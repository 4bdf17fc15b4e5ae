package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Gateway  GatewayConfig
	API      APIConfig
	Alerts   AlertsConfig
	Cron     CronConfig
}

type ServerConfig struct {
	Port      int
	Env       string // "development", "production"
	PublicURL string
}

type DatabaseConfig struct {
	Driver  string // "mysql" or "postgres"
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
	SSLMode string

	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	LogSQL          bool
}

type RedisConfig struct {
	Addr     string
	Pass     string
	DB       int
	DedupTTL time.Duration
}

type GatewayConfig struct {
	Timeout        time.Duration
	RetryCount     int
	ClassifierMode string
	MatchNDC       bool
	TestURL        string
	LiveURL        string
}

type APIConfig struct {
	Key      string
	HashFile string
}

type AlertsConfig struct {
	BotToken string
	ChatID   string
}

type CronConfig struct {
	ReconcileSpec string
	ExpireSpec    string
	CheckoutTTL   time.Duration
}

func setDefaults() {
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("PUBLIC_URL", "http://localhost:8080")
	viper.SetDefault("DB_DRIVER", "mysql")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_MAX_OPEN_CONNS", 20)
	viper.SetDefault("DB_CONN_MAX_LIFETIME", "30m")
	viper.SetDefault("DB_LOG_SQL", false)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("DEDUP_TTL", "24h")
	viper.SetDefault("OPPWA_TIMEOUT", "30s")
	viper.SetDefault("OPPWA_RETRY_COUNT", 0)
	viper.SetDefault("OPPWA_CLASSIFIER_MODE", "corrected")
	viper.SetDefault("OPPWA_MATCH_NDC", false)
	viper.SetDefault("API_HASH_FILE", "hash.txt")
	viper.SetDefault("CRON_RECONCILE_SPEC", "0 */10 * * * *")
	viper.SetDefault("CRON_EXPIRE_SPEC", "0 0 * * * *")
	viper.SetDefault("CHECKOUT_TTL", "24h")
}

func duration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(viper.GetString(key))
	if err != nil || d <= 0 {
		return def
	}
	return d
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()
	setDefaults()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetInt("APP_PORT"),
			Env:       viper.GetString("APP_ENV"),
			PublicURL: strings.TrimRight(viper.GetString("PUBLIC_URL"), "/"),
		},
		Database: loadDatabase(),
		Redis: RedisConfig{
			Addr:     viper.GetString("REDIS_ADDR"),
			Pass:     viper.GetString("REDIS_PASS"),
			DB:       viper.GetInt("REDIS_DB"),
			DedupTTL: duration("DEDUP_TTL", 24*time.Hour),
		},
		Gateway: GatewayConfig{
			Timeout:        duration("OPPWA_TIMEOUT", 30*time.Second),
			RetryCount:     viper.GetInt("OPPWA_RETRY_COUNT"),
			ClassifierMode: viper.GetString("OPPWA_CLASSIFIER_MODE"),
			MatchNDC:       viper.GetBool("OPPWA_MATCH_NDC"),
			TestURL:        viper.GetString("OPPWA_TEST_URL"),
			LiveURL:        viper.GetString("OPPWA_LIVE_URL"),
		},
		API: APIConfig{
			Key:      viper.GetString("API_KEY"),
			HashFile: viper.GetString("API_HASH_FILE"),
		},
		Alerts: AlertsConfig{
			BotToken: viper.GetString("ALERT_BOT_TOKEN"),
			ChatID:   viper.GetString("ALERT_CHAT_ID"),
		},
		Cron: CronConfig{
			ReconcileSpec: viper.GetString("CRON_RECONCILE_SPEC"),
			ExpireSpec:    viper.GetString("CRON_EXPIRE_SPEC"),
			CheckoutTTL:   duration("CHECKOUT_TTL", 24*time.Hour),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.API.Key == "" {
		log.Println("WARNING: API_KEY is not set, operator API only accepts the hash file")
	}

	return cfg, nil
}

// LoadDatabaseOnly reads just the database section, for the bootstrap command.
func LoadDatabaseOnly() (*DatabaseConfig, error) {
	_ = godotenv.Load()
	viper.AutomaticEnv()
	setDefaults()

	db := loadDatabase()
	if db.Driver != "mysql" && db.Driver != "postgres" {
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", db.Driver)
	}
	return &db, nil
}

func loadDatabase() DatabaseConfig {
	driver := strings.ToLower(viper.GetString("DB_DRIVER"))
	port := viper.GetString("DB_PORT")
	if port == "" {
		port = "3306"
		if driver == "postgres" {
			port = "5432"
		}
	}
	return DatabaseConfig{
		Driver:  driver,
		Host:    viper.GetString("DB_HOST"),
		Port:    port,
		Name:    viper.GetString("DB_NAME"),
		User:    viper.GetString("DB_USER"),
		Pass:    viper.GetString("DB_PASS"),
		Charset: viper.GetString("DB_CHARSET"),
		SSLMode: viper.GetString("DB_SSLMODE"),

		MaxIdleConns:    viper.GetInt("DB_MAX_IDLE_CONNS"),
		MaxOpenConns:    viper.GetInt("DB_MAX_OPEN_CONNS"),
		ConnMaxLifetime: duration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
		LogSQL:          viper.GetBool("DB_LOG_SQL"),
	}
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver)
	}
	switch strings.ToLower(c.Gateway.ClassifierMode) {
	case "", "faithful", "corrected":
	default:
		return fmt.Errorf("unsupported OPPWA_CLASSIFIER_MODE %q", c.Gateway.ClassifierMode)
	}
	if c.Gateway.RetryCount < 0 {
		return fmt.Errorf("OPPWA_RETRY_COUNT must not be negative")
	}
	if c.Database.MaxOpenConns > 0 && c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("DB_MAX_IDLE_CONNS (%d) exceeds DB_MAX_OPEN_CONNS (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	return nil
}

// DSN returns the driver-specific DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Pass, d.Name, d.SSLMode)
	}
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
