package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/income-clarity/hubcache/pkg/cache"
	"github.com/income-clarity/hubcache/pkg/logging"
	"github.com/income-clarity/hubcache/pkg/policy"
)

func main() {
	// Configuration from environment
	redisURL := getEnv("REDIS_URL", "localhost:6379")
	port := getEnv("PORT", "8080")
	logLevel := getEnv("LOG_LEVEL", "info")

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(logLevel),
		Pretty: getEnv("LOG_PRETTY", "") == "true",
	})

	// Setup Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})

	// The gateway tolerates an unreachable backend; log the initial state
	// so operators see it, but start either way.
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Str("addr", redisURL).
			Msg("Redis unreachable at startup, serving from tier 1 until it recovers")
	} else {
		logger.Info().Str("addr", redisURL).Msg("Connected to Redis")
	}

	cfg := cache.DefaultConfig(redisClient)
	cfg.Registry = policy.NewDefaultRegistry()
	cfg.Logger = logging.NewLogger("cache-proxy")
	gateway := cache.New(cfg)
	defer gateway.Shutdown()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler(gateway))
	mux.HandleFunc("/stats", statsHandler(gateway))
	mux.HandleFunc("/cache/", cacheHandler(gateway))
	mux.HandleFunc("/invalidate", invalidateHandler(gateway))
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":" + port
	logger.Info().Str("addr", addr).Msg("Starting cache proxy server")

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// healthHandler reports aggregate tier health.
func healthHandler(gateway *cache.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := gateway.HealthCheck(r.Context())
		writeJSON(w, http.StatusOK, report)
	}
}

// statsHandler reports the statistics snapshot; DELETE resets counters.
func statsHandler(gateway *cache.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			gateway.ResetStats()
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusOK, gateway.Stats())
	}
}

// cacheHandler serves GET (lookup) and PUT (store) for one key.
// Path: /cache/{class}/{principal}?range=1Y&fields=a,b,c
func cacheHandler(gateway *cache.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, ok := parseKey(r)
		if !ok {
			http.Error(w, "expected /cache/{class}/{principal}", http.StatusBadRequest)
			return
		}

		switch r.Method {
		case http.MethodGet:
			res := gateway.Get(r.Context(), key)
			if !res.Hit {
				w.Header().Set("X-Cache-Source", "miss")
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("X-Cache-Source", string(res.Source))
			w.Header().Set("X-Cache-Elapsed", res.Elapsed.String())
			_, _ = w.Write(res.Value)

		case http.MethodPut:
			body, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
				return
			}
			if err := gateway.Set(r.Context(), key, body); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusNoContent)

		case http.MethodDelete:
			gateway.Invalidate(r.Context(), key)
			w.WriteHeader(http.StatusNoContent)

		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// invalidateHandler removes all keys matching a substring pattern.
// POST /invalidate?pattern=user-42
func invalidateHandler(gateway *cache.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		pattern := r.URL.Query().Get("pattern")
		if pattern == "" {
			http.Error(w, "pattern query parameter required", http.StatusBadRequest)
			return
		}
		gateway.InvalidatePattern(r.Context(), pattern)
		w.WriteHeader(http.StatusNoContent)
	}
}

// parseKey builds a cache key from the request path and query.
func parseKey(r *http.Request) (cache.Key, bool) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/cache/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return cache.Key{}, false
	}

	key := cache.Key{
		Class:       parts[0],
		PrincipalID: parts[1],
		Range:       r.URL.Query().Get("range"),
	}
	if fields := r.URL.Query().Get("fields"); fields != "" {
		key.Fields = strings.Split(fields, ",")
	}
	return key, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
