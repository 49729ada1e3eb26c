package types

// Config represents the main configuration for the tryon companion.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Store       StoreConfig       `yaml:"store"`
	Crypto      CryptoConfig      `yaml:"crypto"`
	Remote      RemoteConfig      `yaml:"remote"`
	Environment EnvironmentConfig `yaml:"environment"`
	Poller      PollerConfig      `yaml:"poller"`
	Log         LogConfig         `yaml:"log"`
}

// ServerConfig defines the local HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StoreConfig defines the local SQLite store.
type StoreConfig struct {
	Path string `yaml:"path"` // Path to the SQLite file
}

// CryptoConfig defines credential obfuscation settings.
type CryptoConfig struct {
	WorkFactor int `yaml:"work_factor"` // scrypt log2(N) for credential encryption
}

// RemoteConfig defines how the generation service is reached.
type RemoteConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	RetryMax       int    `yaml:"retry_max"`
}

// EnvironmentConfig pins environment signals. Empty or zero fields fall back to the host.
type EnvironmentConfig struct {
	UserAgent     string `yaml:"user_agent"`
	Language      string `yaml:"language"`
	DisplayWidth  int    `yaml:"display_width"`
	DisplayHeight int    `yaml:"display_height"`
}

// PollerConfig defines background status polling.
type PollerConfig struct {
	Enabled         bool `yaml:"enabled"`
	IntervalSeconds int  `yaml:"interval_seconds"`
}

// LogConfig defines logger verbosity.
type LogConfig struct {
	Verbose bool `yaml:"verbose"`
	Debug   bool `yaml:"debug"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 5174,
		},
		Store: StoreConfig{
			Path: "./tryon.db",
		},
		Crypto: CryptoConfig{
			WorkFactor: 12,
		},
		Remote: RemoteConfig{
			BaseURL:        "http://127.0.0.1:8000/api",
			TimeoutSeconds: 300,
			RetryMax:       2,
		},
		Poller: PollerConfig{
			Enabled:         true,
			IntervalSeconds: 3,
		},
	}
}
