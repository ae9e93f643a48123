package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/tabletalk-cli/internal/utils"
)

// Global configuration structure.
type Global struct {
	APIKey          string  `mapstructure:"api_key" yaml:"api_key"`
	GeminiAPIKey    string  `mapstructure:"gemini_api_key" yaml:"gemini_api_key"`
	DefaultModel    string  `mapstructure:"default_model" yaml:"default_model"`
	DefaultProvider string  `mapstructure:"default_provider" yaml:"default_provider"`
	Mode            string  `mapstructure:"mode" yaml:"mode"`
	MaxTokens       int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature"`

	// Pipeline
	SchemaSampleSize int `mapstructure:"schema_sample_size" yaml:"schema_sample_size"`
	ExecTimeoutMs    int `mapstructure:"exec_timeout_ms" yaml:"exec_timeout_ms"`

	// HTTP/Retry configuration
	HTTPTimeoutSec    int     `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec"`
	RetryMaxAttempts  int     `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts"`
	RetryBaseDelayMs  int     `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms"`
	RetryMaxDelayMs   int     `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms"`
	RequestTimeoutSec int     `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`
	RateLimitRPS      float64 `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`

	// Local runtimes (Ollama)
	OllamaHost       string `mapstructure:"ollama_host" yaml:"ollama_host"`
	OllamaTimeoutSec int    `mapstructure:"ollama_timeout_sec" yaml:"ollama_timeout_sec"`

	// Gemini
	GeminiBaseURL string `mapstructure:"gemini_base_url" yaml:"gemini_base_url"`
}

// Keys lists the settable configuration keys in display order.
var Keys = []string{
	"api_key", "gemini_api_key", "default_model", "default_provider", "mode",
	"max_tokens", "temperature", "schema_sample_size", "exec_timeout_ms",
	"http_timeout_sec", "retry_max_attempts", "retry_base_delay_ms", "retry_max_delay_ms",
	"request_timeout_sec", "rate_limit_rps", "ollama_host", "ollama_timeout_sec", "gemini_base_url",
}

// Dir returns ~/.tabletalk.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".tabletalk"), nil
}

// Path resolves the config file location; cfgFile wins when set.
func Path(cfgFile string) (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Save writes the configuration as YAML, atomically.
func Save(c *Global, cfgFile string) error {
	path, err := Path(cfgFile)
	if err != nil {
		return err
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := utils.SafeWriteFile(path, b); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: flags (cfgFile) > env > config file > defaults.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix("TABLETALK")
	v.AutomaticEnv()
	// Provider-native variable names are honored too.
	_ = v.BindEnv("api_key", "TABLETALK_API_KEY", "OPENROUTER_API_KEY")
	_ = v.BindEnv("gemini_api_key", "TABLETALK_GEMINI_API_KEY", "GEMINI_API_KEY")

	v.SetDefault("default_model", "")
	v.SetDefault("default_provider", "openrouter")
	v.SetDefault("mode", "code")
	v.SetDefault("max_tokens", 1024)
	v.SetDefault("temperature", 0.0)
	v.SetDefault("schema_sample_size", 20)
	v.SetDefault("exec_timeout_ms", 5000)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)
	v.SetDefault("request_timeout_sec", 180)
	v.SetDefault("rate_limit_rps", 0.0)
	// Ollama defaults
	v.SetDefault("ollama_host", "http://127.0.0.1:11434")
	v.SetDefault("ollama_timeout_sec", 120)
	v.SetDefault("gemini_base_url", "")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		if !isNotFound(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &c, nil
}

// asNotFound treats both viper's search miss and a missing explicit file as
// "no config yet".
func isNotFound(err error) bool {
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return true
	}
	return os.IsNotExist(err)
}

// Set parses and assigns one key.
func (c *Global) Set(key, val string) error {
	atoi := func(min int) (int, error) {
		i, err := strconv.Atoi(val)
		if err != nil || i < min {
			return 0, fmt.Errorf("invalid int for %s: %v", key, val)
		}
		return i, nil
	}
	atof := func() (float64, error) {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil || f < 0 {
			return 0, fmt.Errorf("invalid float for %s: %v", key, val)
		}
		return f, nil
	}
	var err error
	switch key {
	case "api_key":
		c.APIKey = val
	case "gemini_api_key":
		c.GeminiAPIKey = val
	case "default_model":
		c.DefaultModel = val
	case "default_provider":
		switch strings.ToLower(val) {
		case "openrouter":
			c.DefaultProvider = "openrouter"
		case "gemini", "google":
			c.DefaultProvider = "gemini"
		case "ollama", "local":
			c.DefaultProvider = "ollama"
		default:
			return fmt.Errorf("invalid default_provider: %s (use openrouter, gemini or ollama)", val)
		}
	case "mode":
		switch strings.ToLower(val) {
		case "code", "direct":
			c.Mode = strings.ToLower(val)
		default:
			return fmt.Errorf("invalid mode: %s (use code or direct)", val)
		}
	case "max_tokens":
		c.MaxTokens, err = atoi(0)
	case "temperature":
		c.Temperature, err = atof()
	case "schema_sample_size":
		c.SchemaSampleSize, err = atoi(1)
	case "exec_timeout_ms":
		c.ExecTimeoutMs, err = atoi(1)
	case "http_timeout_sec":
		c.HTTPTimeoutSec, err = atoi(1)
	case "retry_max_attempts":
		c.RetryMaxAttempts, err = atoi(1)
	case "retry_base_delay_ms":
		c.RetryBaseDelayMs, err = atoi(0)
	case "retry_max_delay_ms":
		c.RetryMaxDelayMs, err = atoi(0)
	case "request_timeout_sec":
		c.RequestTimeoutSec, err = atoi(0)
	case "rate_limit_rps":
		c.RateLimitRPS, err = atof()
	case "ollama_host":
		c.OllamaHost = val
	case "ollama_timeout_sec":
		c.OllamaTimeoutSec, err = atoi(1)
	case "gemini_base_url":
		c.GeminiBaseURL = val
	default:
		return fmt.Errorf("unknown key: %s", key)
	}
	return err
}
