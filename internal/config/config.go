package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"market-delivery/internal/geo"
	"market-delivery/internal/logger"
)

const (
	TariffSourcePostgres = "postgres"
	TariffSourceRemote   = "remote"
)

type Config struct {
	DatabaseURL    string
	MigrateOnStart bool
	JWTSecret      string
	JWTTTL         time.Duration
	HTTPAddr       string
	GRPCAddr       string
	ThriftAddr     string
	LogLevel       logger.Level

	TariffSource    string
	UpstreamBaseURL string
	UpstreamToken   string
	UpstreamTimeout time.Duration
	TariffCacheTTL  time.Duration
	RedisAddr       string
	Coverage        geo.Area
	PrepTimeMin     float64
	FallbackFee     float64
	CommissionRate  float64
	RegretWindow    time.Duration

	NATSURL        string
	NATSSubject    string
	OutboxEnabled  bool
	OutboxInterval time.Duration
	OutboxBatch    int
}

func Load() (Config, error) {
	return load(true)
}

func LoadWorker() (Config, error) {
	return load(false)
}

func load(server bool) (Config, error) {
	var cfg Config
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if server && cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("JWT_SECRET is required")
	}
	cfg.MigrateOnStart = getBool("MIGRATE_ON_START", true)
	cfg.JWTTTL = getDuration("JWT_TTL", time.Hour)
	cfg.HTTPAddr = getString("HTTP_ADDR", ":8080")
	cfg.GRPCAddr = getString("GRPC_ADDR", ":9090")
	cfg.ThriftAddr = getString("THRIFT_ADDR", ":9091")
	cfg.LogLevel = logger.ParseLevel(getString("LOG_LEVEL", "normal"))

	cfg.TariffSource = strings.ToLower(getString("TARIFF_SOURCE", TariffSourcePostgres))
	cfg.UpstreamBaseURL = os.Getenv("UPSTREAM_API_BASE")
	cfg.UpstreamToken = os.Getenv("UPSTREAM_API_TOKEN")
	switch cfg.TariffSource {
	case TariffSourcePostgres:
	case TariffSourceRemote:
		if server && cfg.UpstreamBaseURL == "" {
			return cfg, fmt.Errorf("UPSTREAM_API_BASE is required when TARIFF_SOURCE=remote")
		}
	default:
		return cfg, fmt.Errorf("TARIFF_SOURCE must be %q or %q", TariffSourcePostgres, TariffSourceRemote)
	}
	cfg.UpstreamTimeout = getDuration("UPSTREAM_TIMEOUT", 5*time.Second)
	cfg.TariffCacheTTL = getDuration("TARIFF_CACHE_TTL", time.Minute)
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")

	bounds := geo.Bounds{
		MinLat: getFloat("COVERAGE_MIN_LAT", geo.DefaultBounds.MinLat),
		MaxLat: getFloat("COVERAGE_MAX_LAT", geo.DefaultBounds.MaxLat),
		MinLng: getFloat("COVERAGE_MIN_LNG", geo.DefaultBounds.MinLng),
		MaxLng: getFloat("COVERAGE_MAX_LNG", geo.DefaultBounds.MaxLng),
	}
	if bounds.MinLat > bounds.MaxLat || bounds.MinLng > bounds.MaxLng {
		return cfg, fmt.Errorf("coverage bounds are inverted")
	}
	polygon, err := ParsePolygon(os.Getenv("COVERAGE_POLYGON"))
	if err != nil {
		return cfg, fmt.Errorf("COVERAGE_POLYGON: %w", err)
	}
	cfg.Coverage = geo.NewArea(bounds, polygon)

	cfg.PrepTimeMin = getFloat("PREP_TIME_MIN", geo.DefaultPrepTimeMin)
	cfg.FallbackFee = getFloat("FALLBACK_DELIVERY_FEE", 25)
	cfg.CommissionRate = getFloat("COMMISSION_RATE", 0.15)
	cfg.RegretWindow = getDuration("REGRET_WINDOW", time.Minute)

	cfg.NATSURL = getString("NATS_URL", "nats://127.0.0.1:4222")
	cfg.NATSSubject = getString("NATS_SUBJECT", "delivery.events")
	cfg.OutboxEnabled = getBool("OUTBOX_ENABLED", true)
	cfg.OutboxInterval = getDuration("OUTBOX_POLL_INTERVAL", time.Second)
	cfg.OutboxBatch = getInt("OUTBOX_BATCH_SIZE", 50)
	return cfg, nil
}

// ParsePolygon reads "lat,lng;lat,lng;..." into a polygon. Empty input
// means no polygon.
func ParsePolygon(s string) (geo.Polygon, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var poly geo.Polygon
	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.Split(pair, ",")
		if len(parts) != 2 {
			return nil, fmt.Errorf("vertex %q is not lat,lng", pair)
		}
		lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			return nil, fmt.Errorf("vertex %q: %w", pair, err)
		}
		lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("vertex %q: %w", pair, err)
		}
		poly = append(poly, geo.Vertex{Lat: lat, Lng: lng})
	}
	if len(poly) < 3 {
		return nil, fmt.Errorf("need at least 3 vertices, got %d", len(poly))
	}
	return poly, nil
}

func getString(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}
