package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Server represents the HTTP listener settings.
type Server struct {
	Addr         string        `yaml:"addr"`
	GinMode      string        `yaml:"gin_mode"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	AllowOrigins []string      `yaml:"allow_origins"`
}

// Metaphor represents the search service client settings.
type Metaphor struct {
	BaseURL   string        `yaml:"base_url"`
	APIKey    string        `yaml:"api_key"`
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
}

// OpenAI represents the language model client settings.
type OpenAI struct {
	BaseURL        string        `yaml:"base_url"`
	APIKey         string        `yaml:"api_key"`
	Model          string        `yaml:"model"`
	EmbeddingModel string        `yaml:"embedding_model"`
	Timeout        time.Duration `yaml:"timeout"`
	MaxRetries     *int          `yaml:"max_retries"`
}

// Search represents the recent event query.
type Search struct {
	Query      string `yaml:"query"`
	NumResults int    `yaml:"num_results"`
	Autoprompt *bool  `yaml:"autoprompt"`
}

// Extractor represents the chunking and retrieval settings of event extraction.
type Extractor struct {
	ChunkSize    int  `yaml:"chunk_size"`
	ChunkOverlap *int `yaml:"chunk_overlap"`
	TopK         int  `yaml:"top_k"`
	ContextChars int  `yaml:"context_chars"`
}

// Cache represents the response cache lifetimes and sweep schedule.
type Cache struct {
	DefaultTTL    time.Duration `yaml:"default_ttl"`
	EventTTL      time.Duration `yaml:"event_ttl"`
	SweepSchedule string        `yaml:"sweep_schedule"`
}

// Config represents the full event-api configuration.
type Config struct {
	LogLevel  string    `yaml:"log_level"`
	Server    Server    `yaml:"server"`
	Metaphor  Metaphor  `yaml:"metaphor"`
	OpenAI    OpenAI    `yaml:"openai"`
	Search    Search    `yaml:"search"`
	Extractor Extractor `yaml:"extractor"`
	Cache     Cache     `yaml:"cache"`
}

// Load reads the YAML file at path (optional when path is empty or missing),
// loads a .env file from the working directory if present, applies environment
// overrides and fills defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(b, &c); err != nil {
				return nil, fmt.Errorf("parse yaml: %w", err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	c.applyEnv()
	c.applyDefaults()
	return &c, nil
}

func (c *Config) applyEnv() {
	setFromEnv(&c.Server.GinMode, "GIN_MODE")
	setFromEnv(&c.Server.Addr, "SERVER_ADDR")
	setFromEnv(&c.LogLevel, "LOG_LEVEL")
	setFromEnv(&c.Metaphor.APIKey, "METAPHOR_API_KEY")
	setFromEnv(&c.Metaphor.BaseURL, "METAPHOR_BASE_URL")
	setFromEnv(&c.OpenAI.APIKey, "OPENAI_API_KEY")
	setFromEnv(&c.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setFromEnv(&c.OpenAI.Model, "OPENAI_MODEL")
}

func setFromEnv(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":5601"
	}
	if c.Server.GinMode == "" {
		c.Server.GinMode = "debug"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 2 * time.Minute
	}
	if len(c.Server.AllowOrigins) == 0 {
		c.Server.AllowOrigins = []string{"*"}
	}
	if c.Metaphor.BaseURL == "" {
		c.Metaphor.BaseURL = "https://api.metaphor.systems"
	}
	if c.Metaphor.Timeout == 0 {
		c.Metaphor.Timeout = 20 * time.Second
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o-mini"
	}
	if c.OpenAI.EmbeddingModel == "" {
		c.OpenAI.EmbeddingModel = "text-embedding-3-small"
	}
	if c.OpenAI.Timeout == 0 {
		c.OpenAI.Timeout = 60 * time.Second
	}
	if c.OpenAI.MaxRetries == nil {
		c.OpenAI.MaxRetries = intPtr(2)
	}
	if c.Search.Query == "" {
		c.Search.Query = "Check out this exciting recent event happening in Philadelphia"
	}
	if c.Search.NumResults == 0 {
		c.Search.NumResults = 5
	}
	if c.Search.Autoprompt == nil {
		on := true
		c.Search.Autoprompt = &on
	}
	if c.Extractor.ChunkSize == 0 {
		c.Extractor.ChunkSize = 4000
	}
	if c.Extractor.ChunkOverlap == nil {
		c.Extractor.ChunkOverlap = intPtr(200)
	}
	if c.Extractor.TopK == 0 {
		c.Extractor.TopK = 2
	}
	if c.Extractor.ContextChars == 0 {
		c.Extractor.ContextChars = 12000
	}
	if c.Cache.DefaultTTL == 0 {
		c.Cache.DefaultTTL = 300 * time.Second
	}
	if c.Cache.EventTTL == 0 {
		c.Cache.EventTTL = 50 * time.Second
	}
	if c.Cache.SweepSchedule == "" {
		c.Cache.SweepSchedule = "@every 1m"
	}
}

func intPtr(v int) *int { return &v }

// Validate reports missing startup configuration.
func (c *Config) Validate() error {
	var missing []string
	if c.Metaphor.APIKey == "" {
		missing = append(missing, "metaphor.api_key (METAPHOR_API_KEY)")
	}
	if c.OpenAI.APIKey == "" {
		missing = append(missing, "openai.api_key (OPENAI_API_KEY)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if overlap := *c.Extractor.ChunkOverlap; overlap < 0 || overlap >= c.Extractor.ChunkSize {
		return fmt.Errorf("extractor.chunk_overlap (%d) must be in [0, chunk_size (%d))",
			overlap, c.Extractor.ChunkSize)
	}
	if *c.OpenAI.MaxRetries < 0 {
		return fmt.Errorf("openai.max_retries (%d) must not be negative", *c.OpenAI.MaxRetries)
	}
	return nil
}
