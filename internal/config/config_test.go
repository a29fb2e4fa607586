package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ORS_API_KEY", "key")
	t.Setenv("PORT", "")
	t.Setenv("FUEL_COST_PER_KM", "")
	t.Setenv("DRIVER_COST_PER_HOUR", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 10*time.Second, cfg.ORSTimeout)
	assert.Equal(t, CostModel{FuelCostPerKm: 0.15, DriverCostPerHour: 15}, cfg.Costs)
	assert.Equal(t, 4, cfg.GeocodeConcurrency)
	assert.Equal(t, 7*24*time.Hour, cfg.DistanceTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ORS_API_KEY", "key")
	t.Setenv("FUEL_COST_PER_KM", "0.4")
	t.Setenv("DRIVER_COST_PER_HOUR", "22.5")
	t.Setenv("ORS_TIMEOUT", "3s")
	t.Setenv("ORS_BOUNDARY_COUNTRY", "US")
	t.Setenv("DISTANCE_CACHE_TTL", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.InDelta(t, 0.4, cfg.Costs.FuelCostPerKm, 1e-9)
	assert.InDelta(t, 22.5, cfg.Costs.DriverCostPerHour, 1e-9)
	assert.Equal(t, 3*time.Second, cfg.ORSTimeout)
	assert.Equal(t, "US", cfg.ORSCountry)
	assert.Equal(t, time.Hour, cfg.DistanceTTL)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing api key", func(t *testing.T) {
		t.Setenv("ORS_API_KEY", "")
		_, err := Load()
		require.Error(t, err)
	})

	t.Run("bad float", func(t *testing.T) {
		t.Setenv("ORS_API_KEY", "key")
		t.Setenv("FUEL_COST_PER_KM", "cheap")
		_, err := Load()
		require.ErrorContains(t, err, "FUEL_COST_PER_KM")
	})

	t.Run("non-positive concurrency", func(t *testing.T) {
		t.Setenv("ORS_API_KEY", "key")
		t.Setenv("GEOCODE_CONCURRENCY", "0")
		_, err := Load()
		require.Error(t, err)
	})
}
