package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// Config is the process-wide configuration value object. It is loaded once at
// startup and passed by reference into component constructors; nothing re-reads
// it from disk mid-run.
type Config struct {
	ServerConfig   ServerConfig   `json:"server"`
	AuthConfig     AuthConfig     `json:"auth"`
	DatabaseConfig DatabaseConfig `json:"database"`
	RedisConfig    RedisConfig    `json:"redis"`
	LoggingConfig  LoggingConfig  `json:"logging"`
	RiskConfig     RiskConfig     `json:"risk"`
	SimConfig      SimConfig      `json:"simulation"`
}

// ServerConfig holds HTTP API server configuration
type ServerConfig struct {
	Port           int      `json:"port"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// AuthConfig holds API authentication configuration
type AuthConfig struct {
	Enabled      bool   `json:"enabled"`
	JWTSecret    string `json:"jwt_secret"`
	Username     string `json:"username"`
	PasswordHash string `json:"password_hash"` // bcrypt hash of the operator password
	TokenTTLMin  int    `json:"token_ttl_minutes"`
}

// DatabaseConfig holds PostgreSQL connection configuration
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds quote cache configuration
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	QuoteTTL int    `json:"quote_ttl_seconds"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `json:"level"`       // debug, info, warn, error
	JSONFormat bool   `json:"json_format"` // JSON output instead of console
}

// RiskConfig holds the risk management knobs shared by both simulation modes.
// All percentage knobs are decimals (0.01 = 1%).
type RiskConfig struct {
	RiskPerTrade          float64 `json:"risk_per_trade"`
	MaxPositionSizePct    float64 `json:"max_position_size_pct"`
	MaxDrawdownPct        float64 `json:"max_drawdown_pct"`
	ReduceRiskAtDrawdown  float64 `json:"reduce_risk_at_drawdown"`
	KillSwitchDrawdown    float64 `json:"kill_switch_drawdown"`
	ReduceRiskMultiplier  float64 `json:"reduce_risk_multiplier"`
	MaxTotalExposurePct   float64 `json:"max_total_exposure_pct"`
	MaxSinglePositionPct  float64 `json:"max_single_position_pct"`
	MaxSectorExposurePct  float64 `json:"max_sector_exposure_pct"`
	MaxCorrelExposurePct  float64 `json:"max_correlation_exposure_pct"`
	DefaultStopLossPct    float64 `json:"default_stop_loss_pct"`
}

// SimConfig holds execution simulation parameters
type SimConfig struct {
	InitialCapital     float64 `json:"initial_capital"`
	CommissionPerShare float64 `json:"commission_per_share"`
	SlippageBps        float64 `json:"slippage_bps"`
}

// DefaultRiskConfig returns the risk defaults used when no config file or
// environment overrides are present.
func DefaultRiskConfig() RiskConfig {
	return RiskConfig{
		RiskPerTrade:         0.01,
		MaxPositionSizePct:   0.10,
		MaxDrawdownPct:       0.15,
		ReduceRiskAtDrawdown: 0.10,
		KillSwitchDrawdown:   0.20,
		ReduceRiskMultiplier: 0.5,
		MaxTotalExposurePct:  1.0,
		MaxSinglePositionPct: 0.10,
		MaxSectorExposurePct: 0.25,
		MaxCorrelExposurePct: 0.30,
		DefaultStopLossPct:   0.05,
	}
}

// Load reads configuration from config.json (if present) and applies
// environment variable overrides. Environment variables take precedence.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyDefaults(cfg)
	applyEnvOverrides(cfg)

	if err := cfg.RiskConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid risk config: %w", err)
	}
	if err := cfg.SimConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid simulation config: %w", err)
	}

	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
	if cfg.AuthConfig.TokenTTLMin == 0 {
		cfg.AuthConfig.TokenTTLMin = 1440
	}
	if cfg.RedisConfig.Addr == "" {
		cfg.RedisConfig.Addr = "localhost:6379"
	}
	if cfg.RedisConfig.QuoteTTL == 0 {
		cfg.RedisConfig.QuoteTTL = 15
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}

	zero := RiskConfig{}
	if cfg.RiskConfig == zero {
		cfg.RiskConfig = DefaultRiskConfig()
	}

	if cfg.SimConfig.InitialCapital == 0 {
		cfg.SimConfig.InitialCapital = 100000
	}
	if cfg.SimConfig.CommissionPerShare == 0 {
		cfg.SimConfig.CommissionPerShare = 0.005
	}
	if cfg.SimConfig.SlippageBps == 0 {
		cfg.SimConfig.SlippageBps = 5
	}
}

// applyEnvOverrides applies environment variable overrides to the config
func applyEnvOverrides(cfg *Config) {
	cfg.ServerConfig.Port = getEnvInt("SERVER_PORT", cfg.ServerConfig.Port)

	cfg.AuthConfig.Enabled = getEnvBool("AUTH_ENABLED", cfg.AuthConfig.Enabled)
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.Username = getEnvOrDefault("AUTH_USERNAME", cfg.AuthConfig.Username)
	cfg.AuthConfig.PasswordHash = getEnvOrDefault("AUTH_PASSWORD_HASH", cfg.AuthConfig.PasswordHash)

	cfg.DatabaseConfig.Enabled = getEnvBool("DATABASE_ENABLED", cfg.DatabaseConfig.Enabled)
	cfg.DatabaseConfig.Host = getEnvOrDefault("DATABASE_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvInt("DATABASE_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DATABASE_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DATABASE_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DATABASE_NAME", cfg.DatabaseConfig.Database)

	cfg.RedisConfig.Enabled = getEnvBool("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Addr = getEnvOrDefault("REDIS_ADDR", cfg.RedisConfig.Addr)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.JSONFormat = getEnvBool("LOG_JSON", cfg.LoggingConfig.JSONFormat)

	cfg.RiskConfig.RiskPerTrade = getEnvFloat("RISK_PER_TRADE", cfg.RiskConfig.RiskPerTrade)
	cfg.RiskConfig.MaxPositionSizePct = getEnvFloat("MAX_POSITION_SIZE_PCT", cfg.RiskConfig.MaxPositionSizePct)
	cfg.RiskConfig.MaxDrawdownPct = getEnvFloat("MAX_DRAWDOWN_PCT", cfg.RiskConfig.MaxDrawdownPct)
	cfg.RiskConfig.KillSwitchDrawdown = getEnvFloat("KILL_SWITCH_DRAWDOWN", cfg.RiskConfig.KillSwitchDrawdown)

	cfg.SimConfig.InitialCapital = getEnvFloat("INITIAL_CAPITAL", cfg.SimConfig.InitialCapital)
	cfg.SimConfig.CommissionPerShare = getEnvFloat("COMMISSION_PER_SHARE", cfg.SimConfig.CommissionPerShare)
	cfg.SimConfig.SlippageBps = getEnvFloat("SLIPPAGE_BPS", cfg.SimConfig.SlippageBps)
}

// Validate checks the risk knobs at construction time so malformed
// configuration fails fast instead of mid-run.
func (rc RiskConfig) Validate() error {
	if rc.RiskPerTrade <= 0 || rc.RiskPerTrade > 1 {
		return fmt.Errorf("risk_per_trade must be in (0, 1], got %v", rc.RiskPerTrade)
	}
	if rc.MaxPositionSizePct <= 0 || rc.MaxPositionSizePct > 1 {
		return fmt.Errorf("max_position_size_pct must be in (0, 1], got %v", rc.MaxPositionSizePct)
	}
	if rc.DefaultStopLossPct <= 0 {
		return fmt.Errorf("default_stop_loss_pct must be positive, got %v", rc.DefaultStopLossPct)
	}
	if rc.MaxDrawdownPct <= 0 || rc.KillSwitchDrawdown <= 0 {
		return fmt.Errorf("drawdown thresholds must be positive")
	}
	if rc.ReduceRiskAtDrawdown > rc.KillSwitchDrawdown {
		return fmt.Errorf("reduce_risk_at_drawdown (%v) must not exceed kill_switch_drawdown (%v)",
			rc.ReduceRiskAtDrawdown, rc.KillSwitchDrawdown)
	}
	if rc.ReduceRiskMultiplier <= 0 || rc.ReduceRiskMultiplier > 1 {
		return fmt.Errorf("reduce_risk_multiplier must be in (0, 1], got %v", rc.ReduceRiskMultiplier)
	}
	if rc.MaxTotalExposurePct <= 0 || rc.MaxSinglePositionPct <= 0 {
		return fmt.Errorf("exposure limits must be positive")
	}
	return nil
}

// Validate checks the simulation parameters
func (sc SimConfig) Validate() error {
	if sc.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be positive, got %v", sc.InitialCapital)
	}
	if sc.CommissionPerShare < 0 {
		return fmt.Errorf("commission_per_share must not be negative, got %v", sc.CommissionPerShare)
	}
	if sc.SlippageBps < 0 {
		return fmt.Errorf("slippage_bps must not be negative, got %v", sc.SlippageBps)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1"
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return parsed
}
