package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	XTB    XTBConfig    `yaml:"xtb" mapstructure:"xtb"`
	Yahoo  YahooConfig  `yaml:"yahoo" mapstructure:"yahoo"`
	ETL    ETLConfig    `yaml:"etl" mapstructure:"etl"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver" validate:"oneof=postgres sqlite"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns" validate:"gte=0"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns" validate:"gte=0"`
}

// XTBConfig holds instrument catalog credentials and filters.
type XTBConfig struct {
	URL         string `yaml:"url" mapstructure:"url" validate:"url"`
	UserID      string `yaml:"user_id" mapstructure:"user_id"`
	Password    string `yaml:"password" mapstructure:"password"`
	Category    string `yaml:"category" mapstructure:"category" validate:"required"`
	IncludeCFD  bool   `yaml:"include_cfd" mapstructure:"include_cfd"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"gt=0"`
}

// YahooConfig configures the statement provider client.
type YahooConfig struct {
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url" validate:"url"`
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs" validate:"gt=0"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gt=0"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// ETLConfig configures chunked extraction.
type ETLConfig struct {
	ChunkSize        int               `yaml:"chunk_size" mapstructure:"chunk_size" validate:"gte=1"`
	ChunkDelay       time.Duration     `yaml:"chunk_delay" mapstructure:"chunk_delay" validate:"gte=0"`
	Frequency        string            `yaml:"frequency" mapstructure:"frequency" validate:"oneof=annual quarterly"`
	UniverseFile     string            `yaml:"universe_file" mapstructure:"universe_file"`
	ExchangeSuffixes map[string]string `yaml:"exchange_suffixes" mapstructure:"exchange_suffixes"`
}

// ServerConfig configures the HTTP server and scheduler.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	Schedule    string   `yaml:"schedule" mapstructure:"schedule"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format" validate:"oneof=json console"`
}

// DefaultExchangeSuffixes maps country codes to the provider's exchange
// suffix. Countries not listed use the country code itself; US tickers
// carry no suffix.
var DefaultExchangeSuffixes = map[string]string{
	"US": "",
	"UK": "L",
	"DE": "DE",
	"FR": "PA",
	"ES": "MC",
	"IT": "MI",
	"PL": "WA",
	"NL": "AS",
	"BE": "BR",
	"PT": "LS",
	"CH": "SW",
	"DK": "CO",
	"FI": "HE",
	"NO": "OL",
	"SE": "ST",
	"CZ": "PR",
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FSCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("xtb.url", "wss://ws.xtb.com/real")
	v.SetDefault("xtb.user_id", "")
	v.SetDefault("xtb.password", "")
	v.SetDefault("xtb.category", "STC")
	v.SetDefault("xtb.include_cfd", false)
	v.SetDefault("xtb.timeout_secs", 30)
	v.SetDefault("yahoo.base_url", "https://query2.finance.yahoo.com")
	v.SetDefault("yahoo.timeout_secs", 30)
	v.SetDefault("yahoo.requests_per_second", 2.0)
	v.SetDefault("yahoo.user_agent", "Mozilla/5.0 (X11; Linux x86_64) fscore-cli")
	v.SetDefault("etl.chunk_size", 5)
	v.SetDefault("etl.chunk_delay", "7s")
	v.SetDefault("etl.frequency", "annual")
	v.SetDefault("etl.universe_file", "")
	v.SetDefault("etl.exchange_suffixes", DefaultExchangeSuffixes)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.schedule", "")
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

	// viper lower-cases map keys; country codes are upper-case everywhere else.
	suffixes := make(map[string]string, len(cfg.ETL.ExchangeSuffixes))
	for country, suffix := range cfg.ETL.ExchangeSuffixes {
		suffixes[strings.ToUpper(country)] = suffix
	}
	cfg.ETL.ExchangeSuffixes = suffixes

	return &cfg, nil
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks the configuration for the given command mode. Struct tag
// rules always apply; modes add the credentials their providers need.
// Known modes: catalog, extract, score, pipeline, migrate, serve.
func (c *Config) Validate(mode string) error {
	var problems []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return eris.Wrap(err, "config: validate")
		}
		for _, fe := range verrs {
			field := strings.TrimPrefix(fe.Namespace(), "Config.")
			if fe.Param() != "" {
				problems = append(problems, fmt.Sprintf("%s must satisfy %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value()))
			} else {
				problems = append(problems, fmt.Sprintf("%s must satisfy %s (got %v)", field, fe.Tag(), fe.Value()))
			}
		}
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		problems = append(problems, fmt.Sprintf("log.level %q is not a valid level", c.Log.Level))
	}

	requireStore := func() {
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required")
		}
	}
	requireXTB := func() {
		if c.XTB.UserID == "" {
			problems = append(problems, "xtb.user_id is required")
		}
		if c.XTB.Password == "" {
			problems = append(problems, "xtb.password is required")
		}
	}

	switch mode {
	case "catalog", "pipeline":
		requireStore()
		requireXTB()
	case "extract", "score", "migrate", "quarantine", "runs":
		requireStore()
	case "serve":
		requireStore()
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			problems = append(problems, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
		}
		if c.Server.Schedule != "" {
			requireXTB()
		}
	default:
		return eris.Errorf("config: unknown validation mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid configuration:\n  - %s", strings.Join(problems, "\n  - "))
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
