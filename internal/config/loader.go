package config

import (
	"fmt"
	"os"

	"iot_query_agent/internal/logger"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration loaded from config.yaml.
type Config struct {
	Logging      logger.Config      `yaml:"logging"`
	LLM          LLMConfig          `yaml:"llm"`
	Agent        AgentConfig        `yaml:"agent"`
	Verification VerificationConfig `yaml:"verification"`
	Redis        RedisConfig        `yaml:"redis"`
}

// LLMConfig configures the response generator backend. Temperature is a
// pointer because zero is a valid setting, distinct from unset.
type LLMConfig struct {
	Provider    string   `yaml:"provider"` // openai or ollama
	Model       string   `yaml:"model"`
	BaseURL     string   `yaml:"base_url"`
	APIKey      string   `yaml:"api_key"` // usually injected from env, not yaml
	MaxTokens   int      `yaml:"max_tokens"`
	Temperature *float64 `yaml:"temperature"`
}

// AgentConfig configures the workflow orchestrator. MaxRetries is a pointer
// for the same reason: zero retries is a valid setting.
type AgentConfig struct {
	MaxRetries            *int `yaml:"max_retries"`
	ProcessTimeoutSeconds int  `yaml:"process_timeout_seconds"`
	ToolTimeoutSeconds    int  `yaml:"tool_timeout_seconds"`
	SessionCap            int  `yaml:"session_cap"`
}

// VerificationConfig configures the valid-entity cache.
type VerificationConfig struct {
	TTLSeconds int `yaml:"ttl_seconds"`
}

// RedisConfig configures the optional Redis session and telemetry backends.
type RedisConfig struct {
	URL               string `yaml:"url"`
	SessionTTLSeconds int    `yaml:"session_ttl_seconds"`
}

// Load reads and parses configuration from a YAML file.
func Load(filepath string) (*Config, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing YAML: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// Default returns a usable configuration without a config file.
func Default() *Config {
	config := &Config{}
	config.applyDefaults()
	return config
}

func (c *Config) applyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1024
	}
	if c.LLM.Temperature == nil {
		temperature := 0.2
		c.LLM.Temperature = &temperature
	}
	if c.Agent.MaxRetries == nil {
		maxRetries := 2
		c.Agent.MaxRetries = &maxRetries
	}
	if c.Agent.ProcessTimeoutSeconds == 0 {
		c.Agent.ProcessTimeoutSeconds = 60
	}
	if c.Agent.ToolTimeoutSeconds == 0 {
		c.Agent.ToolTimeoutSeconds = 10
	}
	if c.Agent.SessionCap == 0 {
		c.Agent.SessionCap = 50
	}
	if c.Verification.TTLSeconds == 0 {
		c.Verification.TTLSeconds = 300
	}
	if c.Redis.SessionTTLSeconds == 0 {
		c.Redis.SessionTTLSeconds = 2400 // 40 minutes
	}
}
