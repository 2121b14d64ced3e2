package config

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const rawBase = "https://raw.githubusercontent.com/UMBC-CMSC636-Team6/UMBC-CMSC636-Team6/refs/heads/main/"

// Config holds the full application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Data      DataConfig      `yaml:"data" mapstructure:"data"`
	Fetch     FetchConfig     `yaml:"fetch" mapstructure:"fetch"`
	Dashboard DashboardConfig `yaml:"dashboard" mapstructure:"dashboard"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the dashboard HTTP server.
type ServerConfig struct {
	Host           string        `yaml:"host" mapstructure:"host"`
	Port           int           `yaml:"port" mapstructure:"port"`
	SessionTTL     time.Duration `yaml:"session_ttl" mapstructure:"session_ttl"`
	CacheSize      int           `yaml:"cache_size" mapstructure:"cache_size"`
	CacheTTL       time.Duration `yaml:"cache_ttl" mapstructure:"cache_ttl"`
	AllowedOrigins []string      `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// DataConfig names the datasets loaded at startup. Each source is a URL
// (http, https, ftp, file) or a local path.
type DataConfig struct {
	CountiesURL          string `yaml:"counties_url" mapstructure:"counties_url"`
	StatesURL            string `yaml:"states_url" mapstructure:"states_url"`
	AdjacencyURL         string `yaml:"adjacency_url" mapstructure:"adjacency_url"`
	CountyGeoURL         string `yaml:"county_geo_url" mapstructure:"county_geo_url"`
	StateGeoURL          string `yaml:"state_geo_url" mapstructure:"state_geo_url"`
	DictionaryURL        string `yaml:"dictionary_url" mapstructure:"dictionary_url"`
	ExcludeSelfAdjacency bool   `yaml:"exclude_self_adjacency" mapstructure:"exclude_self_adjacency"`
}

// FetchConfig configures remote dataset downloads.
type FetchConfig struct {
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int    `yaml:"max_retries" mapstructure:"max_retries"`
	UserAgent   string `yaml:"user_agent" mapstructure:"user_agent"`
}

// DashboardConfig configures the page and its initial view.
type DashboardConfig struct {
	Title         string      `yaml:"title" mapstructure:"title"`
	DefaultStates []string    `yaml:"default_states" mapstructure:"default_states"`
	Metric        string      `yaml:"metric" mapstructure:"metric"`
	StateOutlines string      `yaml:"state_outlines" mapstructure:"state_outlines"`
	PlotlyJSURL   string      `yaml:"plotly_js_url" mapstructure:"plotly_js_url"`
	Style         StyleConfig `yaml:"style" mapstructure:"style"`
}

// StyleConfig holds the map colors. Colors must be hex.
type StyleConfig struct {
	Background  string `yaml:"background" mapstructure:"background"`
	Text        string `yaml:"text" mapstructure:"text"`
	Colorscale  string `yaml:"colorscale" mapstructure:"colorscale"`
	Scope       string `yaml:"scope" mapstructure:"scope"`
	BorderColor string `yaml:"border_color" mapstructure:"border_color"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("RENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Hosting platforms set a bare PORT.
	if err := v.BindEnv("server.port", "RENT_SERVER_PORT", "PORT"); err != nil {
		return nil, eris.Wrap(err, "config: bind port env")
	}

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8050)
	v.SetDefault("server.session_ttl", 30*time.Minute)
	v.SetDefault("server.cache_size", 128)
	v.SetDefault("server.cache_ttl", 10*time.Minute)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("data.counties_url", rawBase+"ACS_5YR_Housing_Estimate_Data_by_County_2352642343660635057.csv")
	v.SetDefault("data.states_url", rawBase+"ACS_5YR_Housing_Estimate_Data_by_State_-5633158829445399210.csv")
	v.SetDefault("data.adjacency_url", rawBase+"county_adjacency2024.txt")
	v.SetDefault("data.county_geo_url", rawBase+"geojson-counties-fips.json")
	v.SetDefault("data.state_geo_url", rawBase+"us-states.json")
	v.SetDefault("data.dictionary_url", rawBase+"DD_ACS_5-Year_Housing_Estimate_Data_by_County.csv")
	v.SetDefault("data.exclude_self_adjacency", false)
	v.SetDefault("fetch.timeout_secs", 60)
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.user_agent", "rent-analytics/1.0")
	v.SetDefault("dashboard.title", "Rent Across U.S. Counties")
	v.SetDefault("dashboard.default_states", []string{"Maryland"})
	v.SetDefault("dashboard.metric", "median_rent")
	v.SetDefault("dashboard.state_outlines", "unselected")
	v.SetDefault("dashboard.style.background", "#000000")
	v.SetDefault("dashboard.style.text", "#FFFFFF")
	v.SetDefault("dashboard.style.colorscale", "BuPu")
	v.SetDefault("dashboard.style.scope", "usa")
	v.SetDefault("dashboard.style.border_color", "#444444")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command needs. mode is "serve" or "export".
func (c *Config) Validate(mode string) error {
	var problems []string
	sources := []struct{ key, value string }{
		{"data.counties_url", c.Data.CountiesURL},
		{"data.states_url", c.Data.StatesURL},
		{"data.adjacency_url", c.Data.AdjacencyURL},
		{"data.county_geo_url", c.Data.CountyGeoURL},
		{"data.state_geo_url", c.Data.StateGeoURL},
	}
	for _, src := range sources {
		if strings.TrimSpace(src.value) == "" {
			problems = append(problems, src.key+" is required")
		}
	}
	if c.Fetch.MaxRetries < 0 {
		problems = append(problems, "fetch.max_retries must be >= 0")
	}

	switch mode {
	case "serve":
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			problems = append(problems, "server.port must be > 0 and <= 65535")
		}
		if c.Server.SessionTTL <= 0 {
			problems = append(problems, "server.session_ttl must be > 0")
		}
		if c.Dashboard.Metric == "" {
			problems = append(problems, "dashboard.metric is required")
		}
	case "export":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
