package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// CostModel holds the illustrative per-unit costs used in savings estimates.
type CostModel struct {
	FuelCostPerKm     float64
	DriverCostPerHour float64
}

type Config struct {
	Port        string
	DBDriver    string
	DatabaseURL string
	SQLitePath  string
	SeedPath    string

	ORSAPIKey  string
	ORSBaseURL string
	ORSProfile string
	ORSTimeout time.Duration
	ORSCountry string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	GeocodeTTL    time.Duration
	DistanceTTL   time.Duration

	Costs              CostModel
	GeocodeConcurrency int
}

// LoadDotEnv loads a .env file when present; a missing file is not an error.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}
}

// Load reads the service configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        Get("PORT", "8080"),
		DBDriver:    Get("DB_DRIVER", "sqlite"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		SQLitePath:  Get("DB_PATH", "data/app.db"),
		SeedPath:    os.Getenv("SEED_PATH"),

		ORSAPIKey:  os.Getenv("ORS_API_KEY"),
		ORSBaseURL: Get("ORS_BASE_URL", "https://api.openrouteservice.org"),
		ORSProfile: Get("ORS_PROFILE", "driving-car"),
		ORSCountry: os.Getenv("ORS_BOUNDARY_COUNTRY"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
	}

	var err error
	if cfg.ORSTimeout, err = GetDuration("ORS_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.RedisDB, err = GetInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.GeocodeTTL, err = GetDuration("GEOCODE_CACHE_TTL", 30*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.DistanceTTL, err = GetDuration("DISTANCE_CACHE_TTL", 7*24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.Costs.FuelCostPerKm, err = GetFloat("FUEL_COST_PER_KM", 0.15); err != nil {
		return nil, err
	}
	if cfg.Costs.DriverCostPerHour, err = GetFloat("DRIVER_COST_PER_HOUR", 15); err != nil {
		return nil, err
	}
	if cfg.GeocodeConcurrency, err = GetInt("GEOCODE_CONCURRENCY", 4); err != nil {
		return nil, err
	}

	if cfg.GeocodeConcurrency < 1 {
		return nil, fmt.Errorf("load config: GEOCODE_CONCURRENCY must be positive, got %d", cfg.GeocodeConcurrency)
	}
	if strings.TrimSpace(cfg.ORSAPIKey) == "" {
		return nil, fmt.Errorf("load config: ORS_API_KEY is required")
	}

	return cfg, nil
}

// Get returns the environment value for key, or fallback when unset or empty.
func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func GetInt(key string, fallback int) (int, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config %s: parse int %q: %w", key, v, err)
	}
	return n, nil
}

func GetFloat(key string, fallback float64) (float64, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config %s: parse float %q: %w", key, v, err)
	}
	return f, nil
}

func GetDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := Get(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config %s: parse duration %q: %w", key, v, err)
	}
	return d, nil
}
