package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

type Config struct {
	App struct {
		Env       string
		LogFormat string `mapstructure:"log_format"`
		Timezone  string
		Store     string
	} `mapstructure:"app"`

	Telegram struct {
		Token       string
		AdminChatID int64 `mapstructure:"admin_chat_id"`
	} `mapstructure:"telegram"`

	HTTP struct {
		Addr string
	} `mapstructure:"http"`

	Postgres struct {
		DSN      string
		MaxConns int32 `mapstructure:"max_conns"`
	} `mapstructure:"postgres"`

	Metrics struct {
		Enabled bool
	} `mapstructure:"metrics"`

	Pricing struct {
		DefaultDensity    float64 `mapstructure:"default_density"`
		SeriesParallelism int     `mapstructure:"series_parallelism"`
		MaxQuantities     int     `mapstructure:"max_quantities"`
	} `mapstructure:"pricing"`
}

// Load reads the YAML file at path. A .env next to the working directory is
// loaded first; variables already set in the environment win over it, and
// APP_* variables win over the file (APP_POSTGRES_DSN overrides postgres.dsn).
func Load(path string) (Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("app.env", "prod")
	v.SetDefault("app.log_format", "json")
	v.SetDefault("app.timezone", "UTC")
	v.SetDefault("app.store", StorePostgres)
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("pricing.default_density", 7.85)
	v.SetDefault("pricing.series_parallelism", 4)
	v.SetDefault("pricing.max_quantities", 20)

	var c Config
	if err := v.ReadInConfig(); err != nil {
		return c, err
	}
	if err := v.Unmarshal(&c); err != nil {
		return c, err
	}
	return c, c.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.HTTP.Addr == "" {
		errs = append(errs, errors.New("http.addr is empty"))
	}
	switch c.App.Store {
	case StoreMemory:
	case StorePostgres:
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is empty"))
		}
	default:
		errs = append(errs, fmt.Errorf("app.store %q: want %s or %s", c.App.Store, StoreMemory, StorePostgres))
	}
	if c.Pricing.DefaultDensity <= 0 {
		errs = append(errs, errors.New("pricing.default_density must be positive"))
	}
	if c.Pricing.SeriesParallelism < 1 {
		errs = append(errs, errors.New("pricing.series_parallelism must be at least 1"))
	}
	if c.Pricing.MaxQuantities < 1 {
		errs = append(errs, errors.New("pricing.max_quantities must be at least 1"))
	}
	if c.Telegram.Token != "" && c.Telegram.AdminChatID == 0 {
		errs = append(errs, errors.New("telegram.admin_chat_id is required with a token"))
	}
	return errors.Join(errs...)
}
