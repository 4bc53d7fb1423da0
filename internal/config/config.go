package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	// Server
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Environment string `json:"environment"`
	APIPrefix   string `json:"api_prefix"`
	LogLevel    string `json:"log_level"`

	// CORS
	CORSOrigins []string `json:"cors_origins"`

	// Auth
	APIKeyHeader string   `json:"api_key_header"`
	APIKeys      []string `json:"api_keys"`
	EnableAuth   bool     `json:"enable_auth"`

	// Rate Limiting
	RateLimitPerMinute int `json:"rate_limit_per_minute"`

	// AI / LLM
	AnthropicAPIKey    string   `json:"anthropic_api_key"`
	AnthropicBaseURL   string   `json:"anthropic_base_url"` // override for custom proxy
	ModelFallbackOrder []string `json:"model_fallback_order"`
	MaxTokens          int      `json:"max_tokens"`
	SystemPrompt       string   `json:"system_prompt"`

	// Elasticsearch (vector index)
	ElasticsearchHost        string `json:"elasticsearch_host"`
	ElasticsearchPort        int    `json:"elasticsearch_port"`
	ElasticsearchScheme      string `json:"elasticsearch_scheme"`
	ElasticsearchUser        string `json:"elasticsearch_user"`
	ElasticsearchPassword    string `json:"elasticsearch_password"`
	ElasticsearchVerifyCerts bool   `json:"elasticsearch_verify_certs"`
	ElasticsearchMaxRetries  int    `json:"elasticsearch_max_retries"`
	IndexName                string `json:"index_name"`

	// Embedding service
	EmbeddingEndpoint   string `json:"embedding_endpoint"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`

	// Tool search
	SearchMaxResults int     `json:"search_max_results"`
	SearchMinScore   float64 `json:"search_min_score"`

	// BigQuery tool backend
	GCPProjectID                 string `json:"gcp_project_id"`
	GoogleApplicationCredentials string `json:"google_application_credentials"`
	BigQueryLocation             string `json:"bigquery_location"`

	// Remote MCP tool backends
	MCPServers []string `json:"mcp_servers"`

	// Local file tool backend
	WorkspaceDir string `json:"workspace_dir"`
}

func Load() (*Config, error) {
	cfg := &Config{
		Host:                     DefaultHost,
		Port:                     DefaultPort,
		Environment:              DefaultEnvironment,
		APIPrefix:                DefaultAPIPrefix,
		LogLevel:                 DefaultLogLevel,
		CORSOrigins:              DefaultCORSOrigins,
		APIKeyHeader:             "X-API-Key",
		EnableAuth:               true,
		RateLimitPerMinute:       DefaultRateLimitPerMinute,
		ModelFallbackOrder:       DefaultModelFallbackOrder,
		MaxTokens:                DefaultMaxTokens,
		SystemPrompt:             DefaultSystemPrompt,
		ElasticsearchPort:        DefaultElasticsearchPort,
		ElasticsearchScheme:      DefaultElasticsearchScheme,
		ElasticsearchVerifyCerts: true,
		ElasticsearchMaxRetries:  DefaultElasticsearchMaxRetries,
		IndexName:                DefaultIndexName,
		EmbeddingDimensions:      DefaultEmbeddingDimensions,
		SearchMaxResults:         DefaultSearchMaxResults,
		SearchMinScore:           DefaultSearchMinScore,
		BigQueryLocation:         DefaultBigQueryLocation,
		WorkspaceDir:             DefaultWorkspaceDir,
	}

	// Load from JSON config file if specified
	if path := getEnv("TOOLSCOUT_CONFIG", ""); path != "" {
		if err := loadJSON(path, cfg); err != nil {
			return nil, err
		}
	}

	// Environment overrides
	applyEnvOverrides(cfg)

	return cfg, nil
}

func loadJSON(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := getEnv("TOOLSCOUT_HOST", ""); v != "" {
		cfg.Host = v
	}
	if v := getEnv("TOOLSCOUT_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := getEnv("TOOLSCOUT_ENV", ""); v != "" {
		cfg.Environment = v
	}
	if v := getEnv("TOOLSCOUT_LOG_LEVEL", ""); v != "" {
		cfg.LogLevel = v
	}
	if v := getEnv("TOOLSCOUT_API_KEYS", ""); v != "" {
		cfg.APIKeys = strings.Split(v, ",")
	}
	if v := getEnv("ANTHROPIC_API_KEY", ""); v != "" {
		cfg.AnthropicAPIKey = v
	}
	if v := getEnv("ANTHROPIC_BASE_URL", ""); v != "" {
		cfg.AnthropicBaseURL = v
	}
	if v := getEnv("TOOLSCOUT_MODEL_ORDER", ""); v != "" {
		cfg.ModelFallbackOrder = strings.Split(v, ",")
	}
	if v := getEnv("ELASTICSEARCH_HOST", ""); v != "" {
		cfg.ElasticsearchHost = v
	}
	if v := getEnv("ELASTICSEARCH_PORT", ""); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.ElasticsearchPort = p
		}
	}
	if v := getEnv("ELASTICSEARCH_SCHEME", ""); v != "" {
		cfg.ElasticsearchScheme = v
	}
	if v := getEnv("ELASTICSEARCH_USER", ""); v != "" {
		cfg.ElasticsearchUser = v
	}
	if v := getEnv("ELASTICSEARCH_PASSWORD", ""); v != "" {
		cfg.ElasticsearchPassword = v
	}
	if v := getEnv("TOOLSCOUT_INDEX_NAME", ""); v != "" {
		cfg.IndexName = v
	}
	if v := getEnv("EMBEDDING_ENDPOINT", ""); v != "" {
		cfg.EmbeddingEndpoint = v
	}
	if v := getEnv("EMBEDDING_DIMENSIONS", ""); v != "" {
		if d, err := strconv.Atoi(v); err == nil {
			cfg.EmbeddingDimensions = d
		}
	}
	if v := getEnv("TOOLSCOUT_SEARCH_MIN_SCORE", ""); v != "" {
		if s, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.SearchMinScore = s
		}
	}
	if v := getEnv("GCP_PROJECT_ID", ""); v != "" {
		cfg.GCPProjectID = v
	}
	if v := getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""); v != "" {
		cfg.GoogleApplicationCredentials = v
	}
	if v := getEnv("TOOLSCOUT_MCP_SERVERS", ""); v != "" {
		cfg.MCPServers = strings.Split(v, ",")
	}
	if v := getEnv("TOOLSCOUT_WORKSPACE_DIR", ""); v != "" {
		cfg.WorkspaceDir = v
	}
	if v := getEnv("RATE_LIMIT_PER_MINUTE", ""); v != "" {
		if r, err := strconv.Atoi(v); err == nil {
			cfg.RateLimitPerMinute = r
		}
	}
	if v := getEnv("ENABLE_AUTH", ""); v != "" {
		cfg.EnableAuth = v == "true" || v == "1"
	}
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
