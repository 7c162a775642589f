package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Env         string
	LogLevel    string
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Typesense   TypesenseConfig
	Geolocation GeolocationConfig
	Overpass    OverpassConfig
	Search      SearchConfig
	OTEL        OTELConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// TypesenseConfig holds Typesense configuration
type TypesenseConfig struct {
	Enabled        bool
	URL            string
	APIKey         string
	ResyncInterval time.Duration
}

// GeolocationConfig holds geocoder configuration.
// CacheTTL of zero disables geocode caching.
type GeolocationConfig struct {
	Provider      string
	NominatimURL  string
	UserAgent     string
	Timeout       time.Duration
	RetryAttempts int
	CacheTTL      time.Duration
	CacheSize     int
}

// OverpassConfig holds map data provider configuration
type OverpassConfig struct {
	URL           string
	Timeout       time.Duration
	RetryAttempts int
}

// SearchConfig holds search defaults. Radii are kilometers everywhere.
type SearchConfig struct {
	DefaultRadiusKm float64
	MaxRadiusKm     float64
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Env:      getEnv("ENV", "production"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvAsInt("SERVER_PORT", 8080),
			AllowedOrigins: getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "carefinder"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Typesense: TypesenseConfig{
			Enabled:        getEnvAsBool("TYPESENSE_ENABLED", false),
			URL:            getEnv("TYPESENSE_URL", "http://localhost:8108"),
			APIKey:         getEnv("TYPESENSE_API_KEY", "xyz"),
			ResyncInterval: getEnvAsDuration("TYPESENSE_RESYNC_INTERVAL", 5*time.Minute),
		},
		Geolocation: GeolocationConfig{
			Provider:      getEnv("GEOLOCATION_PROVIDER", "nominatim"),
			NominatimURL:  getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org/search"),
			UserAgent:     getEnv("NOMINATIM_USER_AGENT", "carefinder/1.0"),
			Timeout:       getEnvAsDuration("GEOCODE_TIMEOUT", 8*time.Second),
			RetryAttempts: getEnvAsInt("GEOCODE_RETRY_ATTEMPTS", 2),
			CacheTTL:      getEnvAsDuration("GEOCODE_CACHE_TTL", 24*time.Hour),
			CacheSize:     getEnvAsInt("GEOCODE_CACHE_SIZE", 1000),
		},
		Overpass: OverpassConfig{
			URL:           getEnv("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),
			Timeout:       getEnvAsDuration("OVERPASS_TIMEOUT", 30*time.Second),
			RetryAttempts: getEnvAsInt("OVERPASS_RETRY_ATTEMPTS", 2),
		},
		Search: SearchConfig{
			DefaultRadiusKm: getEnvAsFloat("SEARCH_DEFAULT_RADIUS_KM", 16),
			MaxRadiusKm:     getEnvAsFloat("SEARCH_MAX_RADIUS_KM", 100),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "carefinder"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if cfg.Typesense.ResyncInterval <= 0 {
		return nil, fmt.Errorf("TYPESENSE_RESYNC_INTERVAL must be positive")
	}

	if cfg.Search.DefaultRadiusKm <= 0 || cfg.Search.DefaultRadiusKm > cfg.Search.MaxRadiusKm {
		return nil, fmt.Errorf("SEARCH_DEFAULT_RADIUS_KM must be in (0, %g]", cfg.Search.MaxRadiusKm)
	}

	return cfg, nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
