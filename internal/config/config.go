package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"

	"healthmap/core-go/internal/access"
	"healthmap/core-go/internal/geo"
)

type Config struct {
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	Env         string `mapstructure:"ENV"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32  `mapstructure:"DB_MAX_CONNS"`
	DatasetPath string `mapstructure:"DATASET_PATH"`
	RedisURL    string `mapstructure:"REDIS_URL"`

	InsightURL      string        `mapstructure:"INSIGHT_URL"`
	InsightAPIKey   string        `mapstructure:"INSIGHT_API_KEY"`
	InsightModel    string        `mapstructure:"INSIGHT_MODEL"`
	InsightTimeout  time.Duration `mapstructure:"INSIGHT_TIMEOUT"`
	InsightCacheTTL time.Duration `mapstructure:"INSIGHT_CACHE_TTL"`

	TileURL         string  `mapstructure:"TILE_URL"`
	TileAttribution string  `mapstructure:"TILE_ATTRIBUTION"`
	MapCenterLat    float64 `mapstructure:"MAP_CENTER_LAT"`
	MapCenterLng    float64 `mapstructure:"MAP_CENTER_LNG"`
	MapZoom         int     `mapstructure:"MAP_ZOOM"`
	MapScrollZoom   bool    `mapstructure:"MAP_SCROLL_ZOOM"`

	TelemetryInterval time.Duration `mapstructure:"TELEMETRY_INTERVAL"`
	AccessDefaultRole string        `mapstructure:"ACCESS_DEFAULT_ROLE"`

	// AllowedOriginsRaw is a comma-separated list of extra websocket origins.
	AllowedOriginsRaw string `mapstructure:"ALLOWED_ORIGINS"`
}

var keys = []string{
	"HTTP_ADDR",
	"LOG_LEVEL",
	"ENV",
	"DATABASE_URL",
	"DB_MAX_CONNS",
	"DATASET_PATH",
	"REDIS_URL",
	"INSIGHT_URL",
	"INSIGHT_API_KEY",
	"INSIGHT_MODEL",
	"INSIGHT_TIMEOUT",
	"INSIGHT_CACHE_TTL",
	"TILE_URL",
	"TILE_ATTRIBUTION",
	"MAP_CENTER_LAT",
	"MAP_CENTER_LNG",
	"MAP_ZOOM",
	"MAP_SCROLL_ZOOM",
	"TELEMETRY_INTERVAL",
	"ACCESS_DEFAULT_ROLE",
	"ALLOWED_ORIGINS",
}

// Load reads configuration from the environment, with an optional .env file
// in the working directory underneath it.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8081")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 10)
	v.SetDefault("INSIGHT_MODEL", "gemini-2.5-flash")
	v.SetDefault("INSIGHT_TIMEOUT", "20s")
	v.SetDefault("INSIGHT_CACHE_TTL", "1h")
	v.SetDefault("TILE_URL", "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png")
	v.SetDefault("TILE_ATTRIBUTION", "&copy; OpenStreetMap contributors &copy; CARTO")
	v.SetDefault("MAP_CENTER_LAT", 6.5244)
	v.SetDefault("MAP_CENTER_LNG", 3.3792)
	v.SetDefault("MAP_ZOOM", 12)
	v.SetDefault("MAP_SCROLL_ZOOM", true)
	v.SetDefault("TELEMETRY_INTERVAL", "5s")
	v.SetDefault("ACCESS_DEFAULT_ROLE", string(access.RoleAdmin))

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// A missing .env is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) MapCenter() geo.Point {
	return geo.Point{Lat: c.MapCenterLat, Lng: c.MapCenterLng}
}

// DefaultRole is the role assumed for requests without an X-User-Role header.
func (c *Config) DefaultRole() access.Role {
	r, ok := access.ParseRole(c.AccessDefaultRole)
	if !ok {
		return access.RoleAdmin
	}
	return r
}

// AllowedOrigins splits ALLOWED_ORIGINS, dropping blanks.
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOriginsRaw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.HTTPAddr) == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if !c.MapCenter().Valid() {
		return fmt.Errorf("MAP_CENTER_LAT/MAP_CENTER_LNG %s is not a valid coordinate", c.MapCenter())
	}
	if c.MapZoom < 2 || c.MapZoom > 19 {
		return fmt.Errorf("MAP_ZOOM must be between 2 and 19, got %d", c.MapZoom)
	}
	if c.InsightTimeout < 0 {
		return fmt.Errorf("INSIGHT_TIMEOUT must not be negative")
	}
	if c.InsightCacheTTL < 0 {
		return fmt.Errorf("INSIGHT_CACHE_TTL must not be negative")
	}
	if c.TelemetryInterval < 0 {
		return fmt.Errorf("TELEMETRY_INTERVAL must not be negative")
	}
	if c.DatabaseURL != "" && c.DatasetPath != "" {
		return fmt.Errorf("set at most one of DATABASE_URL and DATASET_PATH")
	}
	if _, ok := access.ParseRole(c.AccessDefaultRole); !ok {
		return fmt.Errorf("ACCESS_DEFAULT_ROLE %q is not a known role", c.AccessDefaultRole)
	}
	for _, o := range c.AllowedOrigins() {
		u, err := url.Parse(o)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" || (u.Path != "" && u.Path != "/") {
			return fmt.Errorf("ALLOWED_ORIGINS entry %q must look like https://host[:port]", o)
		}
	}
	if c.RedisURL != "" && !strings.HasPrefix(c.RedisURL, "redis://") && !strings.HasPrefix(c.RedisURL, "rediss://") {
		return fmt.Errorf("REDIS_URL must use the redis:// or rediss:// scheme")
	}
	return nil
}
