package config

import "time"

const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 8000
	DefaultEnvironment = "development"
	DefaultAPIPrefix   = "/api/v1"
	DefaultLogLevel    = "info"

	DefaultRateLimitPerMinute = 60

	DefaultElasticsearchPort       = 9200
	DefaultElasticsearchScheme     = "http"
	DefaultElasticsearchMaxRetries = 3

	DefaultIndexName = "tools-0"

	DefaultEmbeddingDimensions = 256
	DefaultEmbeddingTimeout    = 30 * time.Second

	DefaultSearchMaxResults = 20
	DefaultSearchMinScore   = 0.4

	DefaultMaxTokens = 4096

	DefaultBigQueryLocation = "US"

	DefaultMCPTimeout = 60 * time.Second

	DefaultWorkspaceDir = "."

	DefaultMaxPromptLength = 2000
)

var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
}

// DefaultModelFallbackOrder is tried first-to-last; the client sticks to
// whichever model last answered
var DefaultModelFallbackOrder = []string{
	"claude-sonnet-4-6",
	"claude-haiku-4-5",
}

const DefaultSystemPrompt = `You are ToolScout, a helpful assistant with access to a set of tools.

RULES:
1. Use the tools provided in the request when they help answer the user's question
2. Call one tool at a time and wait for its result before deciding the next step
3. If a tool fails, explain the failure to the user instead of retrying endlessly
4. Answer in plain language once you have enough information`
