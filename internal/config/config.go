package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/r9s-ai/gin-llmconfig/pkg/llmconfig"
)

type Config struct {
	Server struct {
		Listen         string `yaml:"listen"`
		ReadTimeoutMs  int    `yaml:"read_timeout_ms"`
		WriteTimeoutMs int    `yaml:"write_timeout_ms"`
		PidFile        string `yaml:"pid_file"`
	} `yaml:"server"`

	LLM struct {
		// Provider is one of anthropic, openai, gemini.
		Provider string `yaml:"provider"`
		Model    string `yaml:"model"`
		// APIKeyEnv names the environment variable that holds the provider key.
		APIKeyEnv string `yaml:"api_key_env"`
		BaseURL   string `yaml:"base_url"`
		MaxTokens int64  `yaml:"max_tokens"`
		// PromptTemplateFile optionally replaces the built-in prompt. It is
		// re-read on SIGHUP and when the file changes.
		PromptTemplateFile string `yaml:"prompt_template_file"`
	} `yaml:"llm"`

	Logging struct {
		AccessLog     bool   `yaml:"access_log"`
		AccessLogPath string `yaml:"access_log_path"`
	} `yaml:"logging"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// Load reads path, applies defaults and LLMCFG_* overrides, then validates.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if strings.TrimSpace(path) != "" {
		// #nosec G304 -- path is provided by trusted config/flag.
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, err
		}
	}
	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Server.Listen) == "" {
		cfg.Server.Listen = ":3000"
	}
	if cfg.Server.ReadTimeoutMs <= 0 {
		cfg.Server.ReadTimeoutMs = 60000
	}
	if cfg.Server.WriteTimeoutMs <= 0 {
		cfg.Server.WriteTimeoutMs = 120000
	}
	if strings.TrimSpace(cfg.LLM.Provider) == "" {
		cfg.LLM.Provider = llmconfig.DefaultProvider
	}
	if strings.TrimSpace(cfg.LLM.Model) == "" {
		cfg.LLM.Model = llmconfig.DefaultModel
	}
	if strings.TrimSpace(cfg.LLM.APIKeyEnv) == "" {
		cfg.LLM.APIKeyEnv = llmconfig.DefaultAPIKeyEnvVar
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = llmconfig.DefaultMaxTokens
	}
	if strings.TrimSpace(cfg.Metrics.Path) == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("LLMCFG_LISTEN")); v != "" {
		cfg.Server.Listen = v
	}
	if v := strings.TrimSpace(os.Getenv("LLMCFG_PROVIDER")); v != "" {
		cfg.LLM.Provider = v
	}
	if v := strings.TrimSpace(os.Getenv("LLMCFG_MODEL")); v != "" {
		cfg.LLM.Model = v
	}
	if v := strings.TrimSpace(os.Getenv("LLMCFG_API_KEY_ENV")); v != "" {
		cfg.LLM.APIKeyEnv = v
	}
	if v := strings.TrimSpace(os.Getenv("LLMCFG_BASE_URL")); v != "" {
		cfg.LLM.BaseURL = v
	}
	if v := strings.TrimSpace(os.Getenv("LLMCFG_PROMPT_TEMPLATE_FILE")); v != "" {
		cfg.LLM.PromptTemplateFile = v
	}
	if v := strings.TrimSpace(os.Getenv("LLMCFG_MAX_TOKENS")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.LLM.MaxTokens = n
		}
	}
	cfg.Logging.AccessLog = envBool("LLMCFG_ACCESS_LOG", cfg.Logging.AccessLog)
	if v := strings.TrimSpace(os.Getenv("LLMCFG_ACCESS_LOG_PATH")); v != "" {
		cfg.Logging.AccessLogPath = v
	}
	cfg.Metrics.Enabled = envBool("LLMCFG_METRICS_ENABLED", cfg.Metrics.Enabled)
	if v := strings.TrimSpace(os.Getenv("LLMCFG_READ_TIMEOUT_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Server.ReadTimeoutMs = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("LLMCFG_WRITE_TIMEOUT_MS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Server.WriteTimeoutMs = n
		}
	}
}

func validate(cfg *Config) error {
	switch strings.ToLower(strings.TrimSpace(cfg.LLM.Provider)) {
	case llmconfig.ProviderAnthropic, llmconfig.ProviderOpenAI, llmconfig.ProviderGemini:
	default:
		return fmt.Errorf("llm.provider %q is not supported (anthropic, openai, gemini)", cfg.LLM.Provider)
	}
	if cfg.LLM.MaxTokens < 0 || cfg.LLM.MaxTokens > math.MaxInt32 {
		return fmt.Errorf("llm.max_tokens must be between 1 and %d", math.MaxInt32)
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return errors.New("metrics.path must start with /")
	}
	if cfg.Metrics.Path == llmconfig.ConfigPath {
		return errors.New("metrics.path must not shadow " + llmconfig.ConfigPath)
	}
	return nil
}

// PromptTemplate returns the configured template file contents, or "" to use
// the built-in template.
func (c *Config) PromptTemplate() (string, error) {
	path := strings.TrimSpace(c.LLM.PromptTemplateFile)
	if path == "" {
		return "", nil
	}
	// #nosec G304 -- prompt_template_file comes from trusted config/env.
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt template %q: %w", path, err)
	}
	tmpl := string(b)
	if !strings.Contains(tmpl, "{{routes}}") || !strings.Contains(tmpl, "{{userInput}}") {
		return "", fmt.Errorf("prompt template %q must contain {{routes}} and {{userInput}}", path)
	}
	return tmpl, nil
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}
