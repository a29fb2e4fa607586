package main

import (
	"context"
	"database/sql"
	"errors"
	"fleet-sequencing-service/internal/adapters/cache"
	"fleet-sequencing-service/internal/adapters/distance"
	"fleet-sequencing-service/internal/adapters/repositories"
	"fleet-sequencing-service/internal/api"
	"fleet-sequencing-service/internal/api/handlers"
	"fleet-sequencing-service/internal/config"
	"fleet-sequencing-service/internal/platform/db"
	"fleet-sequencing-service/internal/ports"
	"fleet-sequencing-service/internal/services"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
)

// main is the application composition root.
// It wires concrete adapters (SQL, Redis, ORS) behind ports and starts the HTTP server.
func main() {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	conn, dialect, err := db.Connect(cfg.DBDriver, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		log.Fatal(err)
	}
	defer conn.Close()
	log.Printf("database open driver=%s", dialect)

	ctx := context.Background()

	// Initialize schema and seed demo data on startup for local runs.
	if err := initAndSeed(ctx, conn, dialect, cfg.SeedPath); err != nil {
		log.Fatal(err)
	}

	geocodeCache, distanceCache, closeCaches := openCaches(ctx, cfg, conn, dialect)
	defer closeCaches()

	provider, err := distance.NewORSProvider(distance.ORSConfig{
		APIKey:          cfg.ORSAPIKey,
		BaseURL:         cfg.ORSBaseURL,
		Profile:         cfg.ORSProfile,
		Timeout:         cfg.ORSTimeout,
		BoundaryCountry: cfg.ORSCountry,
	}, geocodeCache, distanceCache)
	if err != nil {
		log.Fatal(err)
	}

	gateway := repositories.NewSQLGateway(conn, dialect)
	store := services.NewRouteStore()
	if err := store.Load(ctx, gateway); err != nil {
		log.Fatal(err)
	}

	sequences := services.NewSequenceManager(gateway, store)
	routes := &handlers.RouteHandler{
		Drivers:   gateway,
		Store:     store,
		Sequences: sequences,
		Optimizer: services.NewOptimizer(store, provider, provider, sequences, cfg.Costs, cfg.GeocodeConcurrency),
		Drag:      services.NewDragReassigner(store, sequences),
	}
	router := api.NewRouter(routes, &handlers.HealthHandler{DB: conn})

	// Timeouts are tuned for cold-cache optimization passes (external API latency).
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Server listening addr=:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("http server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func initAndSeed(ctx context.Context, conn *sql.DB, dialect db.Dialect, seedPath string) error {
	if err := repositories.InitSchema(ctx, conn, dialect); err != nil {
		return fmt.Errorf("init and seed: %w", err)
	}
	if seedPath == "" {
		return nil
	}
	if err := repositories.SeedFromJSON(ctx, conn, dialect, seedPath); err != nil {
		return fmt.Errorf("init and seed: %w", err)
	}
	return nil
}

// openCaches prefers Redis when REDIS_ADDR is set and reachable; otherwise the
// caches live in the service database.
func openCaches(ctx context.Context, cfg *config.Config, conn *sql.DB, dialect db.Dialect) (ports.GeocodeCache, ports.DistanceCache, func()) {
	sqlCaches := func() (ports.GeocodeCache, ports.DistanceCache, func()) {
		return cache.NewSQLGeocodeCache(conn, dialect), cache.NewSQLDistanceCache(conn, dialect), func() {}
	}
	if cfg.RedisAddr == "" {
		return sqlCaches()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("redis not available addr=%s err=%v (using SQL caches)", cfg.RedisAddr, err)
		_ = client.Close()
		return sqlCaches()
	}

	log.Printf("redis connected addr=%s", cfg.RedisAddr)
	closeFn := func() { _ = client.Close() }
	return cache.NewRedisGeocodeCache(client, cfg.GeocodeTTL), cache.NewRedisDistanceCache(client, cfg.DistanceTTL), closeFn
}
