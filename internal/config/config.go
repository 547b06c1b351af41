package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"ridebroker/internal/geo"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	NewRelic  NewRelicConfig
	Kafka     KafkaConfig
	Push      PushConfig
	Discovery DiscoveryConfig
	Offers    OfferConfig
	Token     TokenConfig
	Zones     []geo.Zone
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// LogConfig holds logger configuration.
type LogConfig struct {
	Level  string
	Format string
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// KafkaConfig holds the audit stream configuration. An empty broker
// list disables the mirror.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// PushConfig holds the push delivery endpoint. An empty endpoint
// disables push.
type PushConfig struct {
	Endpoint string
	Key      string
}

// DiscoveryConfig holds the wave engine knobs.
type DiscoveryConfig struct {
	RadiiKm       []float64
	WaveInterval  time.Duration
	Window        time.Duration
	HoldTimeout   time.Duration
	SweepInterval time.Duration
}

// OfferConfig holds offer ledger knobs.
type OfferConfig struct {
	TTL time.Duration
}

// TokenConfig holds QR credential knobs.
type TokenConfig struct {
	TTL time.Duration
}

// Load loads configuration from the environment. A .env file in the
// working directory is merged in first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "ridebroker"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    getEnv("NEW_RELIC_APP_NAME", "ridebroker"),
			LicenseKey: getEnv("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    getBoolEnv("NEW_RELIC_ENABLED", false),
		},
		Kafka: KafkaConfig{
			Brokers: getSliceEnv("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_AUDIT_TOPIC", "ride-events"),
		},
		Push: PushConfig{
			Endpoint: getEnv("PUSH_ENDPOINT", ""),
			Key:      getEnv("PUSH_KEY", ""),
		},
		Discovery: DiscoveryConfig{
			RadiiKm:       getFloatSliceEnv("DISCOVERY_RADII_KM", []float64{5, 10, 20}),
			WaveInterval:  getDurationEnv("DISCOVERY_WAVE_INTERVAL", time.Minute),
			Window:        getDurationEnv("DISCOVERY_WINDOW", 10*time.Minute),
			HoldTimeout:   getDurationEnv("HOLD_TIMEOUT", 5*time.Minute),
			SweepInterval: getDurationEnv("SWEEP_INTERVAL", 15*time.Second),
		},
		Offers: OfferConfig{
			TTL: getDurationEnv("OFFER_TTL", 3*time.Minute),
		},
		Token: TokenConfig{
			TTL: getDurationEnv("QR_TOKEN_TTL", 10*time.Minute),
		},
		Zones: loadZones(),
	}
}

// loadZones parses ZONES, a semicolon-separated list of
// tag,lat,lng,radius_km entries. Malformed entries are skipped.
func loadZones() []geo.Zone {
	raw := os.Getenv("ZONES")
	if raw == "" {
		return nil
	}

	var zones []geo.Zone
	for _, entry := range strings.Split(raw, ";") {
		parts := strings.Split(strings.TrimSpace(entry), ",")
		if len(parts) != 4 {
			continue
		}
		lat, err1 := strconv.ParseFloat(parts[1], 64)
		lng, err2 := strconv.ParseFloat(parts[2], 64)
		radius, err3 := strconv.ParseFloat(parts[3], 64)
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		zones = append(zones, geo.Zone{Tag: parts[0], Lat: lat, Lng: lng, RadiusKm: radius})
	}
	return zones
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getSliceEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getFloatSliceEnv(key string, defaultValue []float64) []float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []float64
	for _, p := range strings.Split(value, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return defaultValue
		}
		out = append(out, f)
	}
	return out
}
