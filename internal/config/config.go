package config

import (
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/reserve-cli/internal/milp"
	"github.com/sells-group/reserve-cli/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
	Solver SolverConfig `yaml:"solver" mapstructure:"solver"`
	Output OutputConfig `yaml:"output" mapstructure:"output"`
}

// StoreConfig selects where runs are recorded.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// LogConfig configures the global zap logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// SolverConfig holds solver defaults. Command flags override them.
type SolverConfig struct {
	TimeLimitSecs float64 `yaml:"time_limit_secs" mapstructure:"time_limit_secs"`
	MIPGap        float64 `yaml:"mip_gap" mapstructure:"mip_gap"`
	Threads       int     `yaml:"threads" mapstructure:"threads"`
	MemoryLimitGB float64 `yaml:"memory_limit_gb" mapstructure:"memory_limit_gb"`
	LogPath       string  `yaml:"log_path" mapstructure:"log_path"`
}

// OutputConfig controls the files written after a solve.
type OutputConfig struct {
	Dir     string `yaml:"dir" mapstructure:"dir"`
	GeoJSON bool   `yaml:"geojson" mapstructure:"geojson"`
}

// Params converts the solver section to solver parameters.
func (c SolverConfig) Params() milp.Params {
	return milp.Params{
		TimeLimit:     time.Duration(c.TimeLimitSecs * float64(time.Second)),
		MIPGap:        c.MIPGap,
		Threads:       c.Threads,
		MemoryLimitGB: c.MemoryLimitGB,
		LogPath:       c.LogPath,
	}
}

// Load reads configuration from config.yaml in the working directory, then
// RESERVE_* environment variables, over built-in defaults.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("RESERVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "reserve.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("solver.time_limit_secs", 0)
	v.SetDefault("solver.mip_gap", 0)
	v.SetDefault("solver.threads", 0)
	v.SetDefault("solver.memory_limit_gb", 0)
	v.SetDefault("solver.log_path", "")
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.geojson", true)

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

// Validate checks value ranges that viper cannot express.
func (c *Config) Validate() error {
	if !slices.Contains([]string{"sqlite", "postgres"}, c.Store.Driver) {
		return model.NewConfigError("config: store.driver must be sqlite or postgres, got %q", c.Store.Driver)
	}
	if c.Store.DatabaseURL == "" {
		return model.NewConfigError("config: store.database_url is required")
	}
	if !slices.Contains([]string{"json", "console"}, c.Log.Format) {
		return model.NewConfigError("config: log.format must be json or console, got %q", c.Log.Format)
	}
	if c.Solver.MIPGap < 0 || c.Solver.MIPGap >= 1 {
		return model.NewConfigError("config: solver.mip_gap must be in [0, 1), got %g", c.Solver.MIPGap)
	}
	if c.Solver.TimeLimitSecs < 0 || c.Solver.Threads < 0 || c.Solver.MemoryLimitGB < 0 {
		return model.NewConfigError("config: solver limits must not be negative")
	}
	return nil
}

// InitLogger initializes the global zap logger based on config.
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
