package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the training service and CLI.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Training TrainingConfig `mapstructure:"training"`
	Quota    QuotaConfig    `mapstructure:"quota"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

// ServerConfig holds REST server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`             // Server host (default: "0.0.0.0")
	Port            int           `mapstructure:"port"`              // Server port (default: 8080)
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`   // Request timeout
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`  // Graceful shutdown timeout
	EnableTLS       bool          `mapstructure:"enable_tls"`        // Enable TLS
	CertFile        string        `mapstructure:"cert_file"`         // TLS certificate file
	KeyFile         string        `mapstructure:"key_file"`          // TLS key file
}

// TrainingConfig holds defaults applied to every training run unless the
// caller overrides them explicitly in the request or CLI flags.
type TrainingConfig struct {
	DefaultMaxIterations int     `mapstructure:"default_max_iterations"`
	DefaultEpsilon       float64 `mapstructure:"default_epsilon"`
	DefaultNReplicates   int     `mapstructure:"default_n_replicates"`
	MiniBatchThreshold   int64   `mapstructure:"mini_batch_threshold"` // instance-count threshold; loaded and defaulted, but nothing reads it to pick TrainMiniBatch
}

// QuotaConfig holds the default per-caller admission limits enforced by
// the quota manager before a job is allowed to start.
type QuotaConfig struct {
	MaxConcurrentJobs int `mapstructure:"max_concurrent_jobs"`
	MaxKValue         int `mapstructure:"max_k_value"`
	MaxReplicates     int `mapstructure:"max_replicates"`
	MaxInstances      int `mapstructure:"max_instances"`
}

// AuthConfig holds JWT authentication and rate-limiting settings for the
// REST surface.
type AuthConfig struct {
	Secret    string        `mapstructure:"secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
	RateLimit float64       `mapstructure:"rate_limit"` // requests/sec, per caller
	RateBurst int           `mapstructure:"rate_burst"`
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			EnableTLS:       false,
		},
		Training: TrainingConfig{
			DefaultMaxIterations: 0,
			DefaultEpsilon:       1e-4,
			DefaultNReplicates:   1,
			MiniBatchThreshold:   1_000_000,
		},
		Quota: QuotaConfig{
			MaxConcurrentJobs: 4,
			MaxKValue:         1000,
			MaxReplicates:     50,
			MaxInstances:      10_000_000,
		},
		Auth: AuthConfig{
			TokenTTL:  1 * time.Hour,
			RateLimit: 10,
			RateBurst: 20,
		},
	}
}

// LoadFromEnv loads configuration from MLCLUSTERS_* environment variables
// on top of Default().
func LoadFromEnv() *Config {
	cfg := Default()

	// Server configuration
	if host := os.Getenv("MLCLUSTERS_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("MLCLUSTERS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if timeout := os.Getenv("MLCLUSTERS_REQUEST_TIMEOUT"); timeout != "" {
		if t, err := time.ParseDuration(timeout); err == nil {
			cfg.Server.RequestTimeout = t
		}
	}
	if enableTLS := os.Getenv("MLCLUSTERS_ENABLE_TLS"); enableTLS == "true" {
		cfg.Server.EnableTLS = true
		cfg.Server.CertFile = os.Getenv("MLCLUSTERS_TLS_CERT")
		cfg.Server.KeyFile = os.Getenv("MLCLUSTERS_TLS_KEY")
	}

	// Training configuration
	if mi := os.Getenv("MLCLUSTERS_DEFAULT_MAX_ITERATIONS"); mi != "" {
		if v, err := strconv.Atoi(mi); err == nil {
			cfg.Training.DefaultMaxIterations = v
		}
	}
	if eps := os.Getenv("MLCLUSTERS_DEFAULT_EPSILON"); eps != "" {
		if v, err := strconv.ParseFloat(eps, 64); err == nil {
			cfg.Training.DefaultEpsilon = v
		}
	}
	if nrep := os.Getenv("MLCLUSTERS_DEFAULT_N_REPLICATES"); nrep != "" {
		if v, err := strconv.Atoi(nrep); err == nil {
			cfg.Training.DefaultNReplicates = v
		}
	}
	if thresh := os.Getenv("MLCLUSTERS_MINI_BATCH_THRESHOLD"); thresh != "" {
		if v, err := strconv.ParseInt(thresh, 10, 64); err == nil {
			cfg.Training.MiniBatchThreshold = v
		}
	}

	// Quota configuration
	if maxJobs := os.Getenv("MLCLUSTERS_MAX_CONCURRENT_JOBS"); maxJobs != "" {
		if v, err := strconv.Atoi(maxJobs); err == nil {
			cfg.Quota.MaxConcurrentJobs = v
		}
	}
	if maxK := os.Getenv("MLCLUSTERS_MAX_K_VALUE"); maxK != "" {
		if v, err := strconv.Atoi(maxK); err == nil {
			cfg.Quota.MaxKValue = v
		}
	}
	if maxRep := os.Getenv("MLCLUSTERS_MAX_REPLICATES"); maxRep != "" {
		if v, err := strconv.Atoi(maxRep); err == nil {
			cfg.Quota.MaxReplicates = v
		}
	}
	if maxInst := os.Getenv("MLCLUSTERS_MAX_INSTANCES"); maxInst != "" {
		if v, err := strconv.Atoi(maxInst); err == nil {
			cfg.Quota.MaxInstances = v
		}
	}

	// Auth configuration
	if secret := os.Getenv("MLCLUSTERS_JWT_SECRET"); secret != "" {
		cfg.Auth.Secret = secret
	}
	if ttl := os.Getenv("MLCLUSTERS_TOKEN_TTL"); ttl != "" {
		if t, err := time.ParseDuration(ttl); err == nil {
			cfg.Auth.TokenTTL = t
		}
	}
	if rl := os.Getenv("MLCLUSTERS_RATE_LIMIT"); rl != "" {
		if v, err := strconv.ParseFloat(rl, 64); err == nil {
			cfg.Auth.RateLimit = v
		}
	}
	if burst := os.Getenv("MLCLUSTERS_RATE_BURST"); burst != "" {
		if v, err := strconv.Atoi(burst); err == nil {
			cfg.Auth.RateBurst = v
		}
	}

	return cfg
}

// LoadFromFile reads a YAML config file through viper, unmarshals it onto
// a Default() base via mapstructure tags, and validates the result.
// Environment overrides come only from viper's AutomaticEnv with the
// MLCLUSTERS prefix: a variable overrides a key present in the file, under
// viper's derived name (prefix, "_", upper-cased dotted key, e.g.
// MLCLUSTERS_SERVER.PORT). The flat names LoadFromEnv reads
// (MLCLUSTERS_PORT, MLCLUSTERS_JWT_SECRET, ...) are not consulted here.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("MLCLUSTERS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.EnableTLS {
		if c.Server.CertFile == "" || c.Server.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert or key file not specified")
		}
	}

	// Training validation
	if c.Training.DefaultNReplicates < 1 {
		return fmt.Errorf("invalid default_n_replicates: %d (must be > 0)", c.Training.DefaultNReplicates)
	}
	if c.Training.DefaultEpsilon < 0 {
		return fmt.Errorf("invalid default_epsilon: %f (must be >= 0)", c.Training.DefaultEpsilon)
	}

	// Quota validation
	if c.Quota.MaxConcurrentJobs < 1 {
		return fmt.Errorf("invalid max_concurrent_jobs: %d (must be > 0)", c.Quota.MaxConcurrentJobs)
	}
	if c.Quota.MaxKValue < 1 {
		return fmt.Errorf("invalid max_k_value: %d (must be > 0)", c.Quota.MaxKValue)
	}
	if c.Quota.MaxReplicates < 1 {
		return fmt.Errorf("invalid max_replicates: %d (must be > 0)", c.Quota.MaxReplicates)
	}

	// Auth validation
	if c.Auth.RateLimit <= 0 {
		return fmt.Errorf("invalid rate_limit: %f (must be > 0)", c.Auth.RateLimit)
	}

	return nil
}

// Address returns the server address (host:port).
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
