package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultJWTSecret = "your-super-secret-jwt-key"

// Storage drivers
const (
	StoragePostgres = "postgres"
	StorageMongoDB  = "mongodb"
	StorageMemory   = "memory"
)

// Cache drivers
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config holds all configuration for the application
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Database   DatabaseConfig   `mapstructure:"database"`
	MongoDB    MongoDBConfig    `mapstructure:"mongodb"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Logger     LoggerConfig     `mapstructure:"logger"`
	Security   SecurityConfig   `mapstructure:"security"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Migrations MigrationsConfig `mapstructure:"migrations"`
}

// AppConfig holds application-specific configuration
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Debug       bool   `mapstructure:"debug"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int           `mapstructure:"port"`
	Host           string        `mapstructure:"host"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	BodyLimit      string        `mapstructure:"body_limit"`
	// StaticDir, when set, is served as a single-page app under /
	StaticDir string `mapstructure:"static_dir"`
}

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Name            string        `mapstructure:"name"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// MongoDBConfig holds MongoDB configuration
type MongoDBConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// Transactions runs the project cascade in a session transaction.
	// Requires a replica set or sharded cluster.
	Transactions bool `mapstructure:"transactions"`
}

// CacheConfig selects the backend for security state
type CacheConfig struct {
	Driver string `mapstructure:"driver"`
	// SweepInterval bounds how often the memory cache scans for expired keys
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// BreakerTimeout is how long the circuit stays open after repeated failures
	BreakerTimeout time.Duration `mapstructure:"breaker_timeout"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret    string        `mapstructure:"secret"`
	ExpiresIn time.Duration `mapstructure:"expires_in"`
	Issuer    string        `mapstructure:"issuer"`
	Audience  string        `mapstructure:"audience"`
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORSAllowedOrigins    string        `mapstructure:"cors_allowed_origins"`
	RateLimitRequests     int           `mapstructure:"rate_limit_requests"`
	RateLimitWindow       time.Duration `mapstructure:"rate_limit_window"`
	AuthRateLimitRequests int           `mapstructure:"auth_rate_limit_requests"`
	AuthRateLimitWindow   time.Duration `mapstructure:"auth_rate_limit_window"`
	FailedLoginThreshold  int           `mapstructure:"failed_login_threshold"`
	FailedLoginWindow     time.Duration `mapstructure:"failed_login_window"`
	BcryptCost            int           `mapstructure:"bcrypt_cost"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// MigrationsConfig holds schema migration configuration
type MigrationsConfig struct {
	Path string `mapstructure:"path"`
}

// Load loads configuration from various sources
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors)
	_ = godotenv.Load()

	// Configure viper
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults
	setDefaults()

	// Bind environment variables
	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	// App defaults
	viper.SetDefault("app.name", "TaskBoard")
	viper.SetDefault("app.version", "1.0.0")
	viper.SetDefault("app.environment", "development")
	viper.SetDefault("app.debug", false)

	// Server defaults
	viper.SetDefault("server.port", 5000)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.request_timeout", "30s")
	viper.SetDefault("server.body_limit", "1M")
	viper.SetDefault("server.static_dir", "")

	// Storage defaults
	viper.SetDefault("storage.driver", StoragePostgres)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "taskboard")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.conn_max_idle_time", "30s")

	// MongoDB defaults
	viper.SetDefault("mongodb.uri", "mongodb://localhost:27017")
	viper.SetDefault("mongodb.database", "taskboard")
	viper.SetDefault("mongodb.connect_timeout", "10s")
	viper.SetDefault("mongodb.transactions", false)

	// Cache defaults
	viper.SetDefault("cache.driver", CacheMemory)
	viper.SetDefault("cache.sweep_interval", "1m")

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.breaker_timeout", "30s")

	// JWT defaults
	viper.SetDefault("jwt.secret", defaultJWTSecret)
	viper.SetDefault("jwt.expires_in", "168h") // 7 days
	viper.SetDefault("jwt.issuer", "taskboard-api")
	viper.SetDefault("jwt.audience", "taskboard-client")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "json")
	viper.SetDefault("logger.output", "stdout")
	viper.SetDefault("logger.filename", "logs/taskboard.log")
	viper.SetDefault("logger.max_size_mb", 100)
	viper.SetDefault("logger.max_backups", 5)
	viper.SetDefault("logger.max_age_days", 30)
	viper.SetDefault("logger.compress", true)

	// Security defaults
	viper.SetDefault("security.cors_allowed_origins", "http://localhost:3000")
	viper.SetDefault("security.rate_limit_requests", 100)
	viper.SetDefault("security.rate_limit_window", "15m")
	viper.SetDefault("security.auth_rate_limit_requests", 5)
	viper.SetDefault("security.auth_rate_limit_window", "15m")
	viper.SetDefault("security.failed_login_threshold", 3)
	viper.SetDefault("security.failed_login_window", "15m")
	viper.SetDefault("security.bcrypt_cost", 10)

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)

	// Migrations defaults
	viper.SetDefault("migrations.path", "migrations")
}

func bindEnvVars() {
	// App
	viper.BindEnv("app.name", "APP_NAME")
	viper.BindEnv("app.version", "APP_VERSION")
	viper.BindEnv("app.environment", "APP_ENVIRONMENT", "NODE_ENV")
	viper.BindEnv("app.debug", "APP_DEBUG")

	// Server
	viper.BindEnv("server.port", "SERVER_PORT", "PORT")
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("server.read_timeout", "SERVER_READ_TIMEOUT")
	viper.BindEnv("server.write_timeout", "SERVER_WRITE_TIMEOUT")
	viper.BindEnv("server.idle_timeout", "SERVER_IDLE_TIMEOUT")
	viper.BindEnv("server.request_timeout", "SERVER_REQUEST_TIMEOUT")
	viper.BindEnv("server.body_limit", "SERVER_BODY_LIMIT")
	viper.BindEnv("server.static_dir", "SERVER_STATIC_DIR")

	// Storage
	viper.BindEnv("storage.driver", "STORAGE_DRIVER")

	// Database
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.name", "DB_NAME")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.ssl_mode", "DB_SSL_MODE")
	viper.BindEnv("database.max_open_conns", "DB_MAX_OPEN_CONNS")
	viper.BindEnv("database.max_idle_conns", "DB_MAX_IDLE_CONNS")
	viper.BindEnv("database.conn_max_lifetime", "DB_CONN_MAX_LIFETIME")
	viper.BindEnv("database.conn_max_idle_time", "DB_CONN_MAX_IDLE_TIME")

	// MongoDB
	viper.BindEnv("mongodb.uri", "MONGODB_URI")
	viper.BindEnv("mongodb.database", "MONGODB_DATABASE")
	viper.BindEnv("mongodb.connect_timeout", "MONGODB_CONNECT_TIMEOUT")
	viper.BindEnv("mongodb.transactions", "MONGODB_TRANSACTIONS")

	// Cache
	viper.BindEnv("cache.driver", "CACHE_DRIVER")
	viper.BindEnv("cache.sweep_interval", "CACHE_SWEEP_INTERVAL")

	// Redis
	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("redis.breaker_timeout", "REDIS_BREAKER_TIMEOUT")

	// JWT
	viper.BindEnv("jwt.secret", "JWT_SECRET")
	viper.BindEnv("jwt.expires_in", "JWT_EXPIRES_IN")
	viper.BindEnv("jwt.issuer", "JWT_ISSUER")
	viper.BindEnv("jwt.audience", "JWT_AUDIENCE")

	// Logger
	viper.BindEnv("logger.level", "LOG_LEVEL")
	viper.BindEnv("logger.format", "LOG_FORMAT")
	viper.BindEnv("logger.output", "LOG_OUTPUT")
	viper.BindEnv("logger.filename", "LOG_FILENAME")
	viper.BindEnv("logger.max_size_mb", "LOG_MAX_SIZE_MB")
	viper.BindEnv("logger.max_backups", "LOG_MAX_BACKUPS")
	viper.BindEnv("logger.max_age_days", "LOG_MAX_AGE_DAYS")
	viper.BindEnv("logger.compress", "LOG_COMPRESS")

	// Security
	viper.BindEnv("security.cors_allowed_origins", "CORS_ALLOWED_ORIGINS", "FRONTEND_URL")
	viper.BindEnv("security.rate_limit_requests", "RATE_LIMIT_REQUESTS")
	viper.BindEnv("security.rate_limit_window", "RATE_LIMIT_WINDOW")
	viper.BindEnv("security.auth_rate_limit_requests", "AUTH_RATE_LIMIT_REQUESTS")
	viper.BindEnv("security.auth_rate_limit_window", "AUTH_RATE_LIMIT_WINDOW")
	viper.BindEnv("security.failed_login_threshold", "FAILED_LOGIN_THRESHOLD")
	viper.BindEnv("security.failed_login_window", "FAILED_LOGIN_WINDOW")
	viper.BindEnv("security.bcrypt_cost", "BCRYPT_COST")

	// Metrics
	viper.BindEnv("metrics.enabled", "ENABLE_METRICS")

	// Migrations
	viper.BindEnv("migrations.path", "MIGRATIONS_PATH")
}

func validateConfig(cfg *Config) error {
	switch cfg.Storage.Driver {
	case StoragePostgres:
		if cfg.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if cfg.Database.Name == "" {
			return fmt.Errorf("database name is required")
		}
	case StorageMongoDB:
		if cfg.MongoDB.URI == "" {
			return fmt.Errorf("mongodb uri is required")
		}
		if cfg.MongoDB.Database == "" {
			return fmt.Errorf("mongodb database is required")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}

	switch cfg.Cache.Driver {
	case CacheMemory, CacheRedis:
	default:
		return fmt.Errorf("unknown cache driver %q", cfg.Cache.Driver)
	}

	if cfg.JWT.Secret == "" || cfg.JWT.Secret == defaultJWTSecret {
		return fmt.Errorf("JWT secret must be set and should not use default value")
	}

	if cfg.JWT.ExpiresIn <= 0 {
		return fmt.Errorf("JWT lifetime must be positive")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}

	if cfg.Security.RateLimitRequests <= 0 || cfg.Security.AuthRateLimitRequests <= 0 {
		return fmt.Errorf("rate limits must be positive")
	}

	return nil
}

// GetDSN returns the database connection string
func (cfg *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
}

// GetURL returns the database connection string in URL form, as
// golang-migrate expects it
func (cfg *DatabaseConfig) GetURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Name,
		cfg.SSLMode,
	)
}

// GetAddr returns the Redis address
func (cfg *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// GetAddress returns the listen address
func (cfg *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
}

// IsDevelopment returns true if the environment is development
func (cfg *AppConfig) IsDevelopment() bool {
	return cfg.Environment == "development"
}

// IsProduction returns true if the environment is production
func (cfg *AppConfig) IsProduction() bool {
	return cfg.Environment == "production"
}

// Validate checks a programmatically built configuration
func (cfg *Config) Validate() error {
	return validateConfig(cfg)
}
