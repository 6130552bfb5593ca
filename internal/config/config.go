package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
	Logger   Logger   `mapstructure:"logger"`
	Market   Market   `mapstructure:"market"`
	Ledger   Ledger   `mapstructure:"ledger"`
}

// Server holds the configuration for the HTTP API server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the database.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SeedInstrument describes one instrument created at startup if absent.
type SeedInstrument struct {
	Symbol     string  `mapstructure:"symbol"`
	Name       string  `mapstructure:"name"`
	Price      float64 `mapstructure:"price"`
	Drift      float64 `mapstructure:"drift"`
	Volatility float64 `mapstructure:"volatility"`
}

// Market holds the configuration for the price simulation engine.
// TickInterval is in seconds; 0 disables the automatic advance loop,
// leaving only the manual simulate endpoint.
type Market struct {
	TickInterval int              `mapstructure:"tick_interval"`
	Instruments  []SeedInstrument `mapstructure:"instruments"`
}

// Ledger holds the configuration for the trading ledger.
type Ledger struct {
	SeedUser       string  `mapstructure:"seed_user"`
	InitialBalance float64 `mapstructure:"initial_balance"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("server.port", 8000)
	viper.SetDefault("database.dsn", "market.db")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")
	viper.SetDefault("market.tick_interval", 0)
	viper.SetDefault("ledger.initial_balance", 10000.0)

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
