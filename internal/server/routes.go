package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/toolscout/toolscout/internal/config"
	"github.com/toolscout/toolscout/internal/conversation"
	"github.com/toolscout/toolscout/internal/embedding"
	"github.com/toolscout/toolscout/internal/handler"
	"github.com/toolscout/toolscout/internal/index"
	"github.com/toolscout/toolscout/internal/inference"
	"github.com/toolscout/toolscout/internal/mcp"
	"github.com/toolscout/toolscout/internal/middleware"
	"github.com/toolscout/toolscout/internal/router"
	"github.com/toolscout/toolscout/internal/security"
	"github.com/toolscout/toolscout/internal/service"
	"github.com/toolscout/toolscout/internal/tools"
)

// setupRoutes wires the tool backends, rebuilds the index and returns the
// HTTP handler. The BigQuery service is returned so it can be closed on
// shutdown.
func (s *Server) setupRoutes(ctx context.Context) (http.Handler, *service.BigQueryService, error) {
	cfg := s.cfg

	// ─── Vector index ────────────────────────────────────────────────────────────
	if cfg.ElasticsearchHost == "" {
		return nil, nil, fmt.Errorf("ELASTICSEARCH_HOST is required")
	}
	if cfg.EmbeddingEndpoint == "" {
		return nil, nil, fmt.Errorf("EMBEDDING_ENDPOINT is required")
	}

	esClient, err := index.NewESClient(
		cfg.ElasticsearchScheme,
		cfg.ElasticsearchHost,
		cfg.ElasticsearchPort,
		cfg.ElasticsearchUser,
		cfg.ElasticsearchPassword,
		cfg.ElasticsearchVerifyCerts,
		cfg.ElasticsearchMaxRetries,
	)
	if err != nil {
		return nil, nil, err
	}

	embedder := embedding.NewClient(cfg.EmbeddingEndpoint, cfg.EmbeddingDimensions, config.DefaultEmbeddingTimeout)
	idx := index.New(esClient, embedder, cfg.IndexName)

	// ─── Tool backends ───────────────────────────────────────────────────────────
	toolRouter := router.New()

	fileReg, err := tools.NewFileRegistry(cfg.WorkspaceDir)
	if err != nil {
		return nil, nil, fmt.Errorf("file tool backend: %w", err)
	}
	if err := toolRouter.Register(ctx, fileReg); err != nil {
		return nil, nil, err
	}

	var bqSvc *service.BigQueryService
	if cfg.GCPProjectID != "" {
		bqSvc, err = service.NewBigQueryService(ctx, cfg.GCPProjectID, cfg.GoogleApplicationCredentials, cfg.BigQueryLocation)
		if err != nil {
			log.Warn().Err(err).Msg("BigQuery service unavailable")
			bqSvc = nil
		} else {
			bqReg, regErr := tools.NewBigQueryRegistry(bqSvc)
			if regErr != nil {
				return nil, nil, fmt.Errorf("bigquery tool backend: %w", regErr)
			}
			if regErr := toolRouter.Register(ctx, bqReg); regErr != nil {
				return nil, nil, regErr
			}
		}
	} else {
		log.Warn().Msg("GCP_PROJECT_ID not set - BigQuery tools disabled")
	}

	for i, url := range cfg.MCPServers {
		client := mcp.NewClient(fmt.Sprintf("mcp-%d", i), url, config.DefaultMCPTimeout)
		if err := toolRouter.Register(ctx, client); err != nil {
			return nil, nil, fmt.Errorf("mcp backend %q: %w", url, err)
		}
	}

	// Startup maintenance: the index must reflect the routed catalog before
	// the first search
	if err := idx.Rebuild(ctx, toolRouter.Descriptors()); err != nil {
		return nil, nil, fmt.Errorf("rebuild tool index: %w", err)
	}

	log.Info().
		Bool("bigquery_enabled", bqSvc != nil).
		Int("mcp_servers", len(cfg.MCPServers)).
		Int("tools", len(toolRouter.ListAll())).
		Bool("auth_enabled", cfg.EnableAuth && len(cfg.APIKeys) > 0).
		Msg("service configuration")

	// ─── Conversations ───────────────────────────────────────────────────────────
	var chatH *handler.ChatHandler
	if cfg.AnthropicAPIKey != "" {
		opts := []option.RequestOption{option.WithAPIKey(cfg.AnthropicAPIKey)}
		if cfg.AnthropicBaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.AnthropicBaseURL))
		}
		anthropicClient := anthropic.NewClient(opts...)

		// Each conversation gets its own inference client so the model
		// fallback cursor is per-conversation state
		factory := func() (*conversation.Orchestrator, error) {
			llm, err := inference.New(anthropicClient, cfg.ModelFallbackOrder, cfg.MaxTokens)
			if err != nil {
				return nil, err
			}
			return conversation.New(idx, llm, toolRouter, cfg.SystemPrompt, cfg.SearchMaxResults, cfg.SearchMinScore), nil
		}

		promptVal := security.NewPromptValidator(config.DefaultMaxPromptLength)
		chatH = handler.NewChatHandler(factory, promptVal)
	} else {
		log.Warn().Msg("ANTHROPIC_API_KEY not set - conversation endpoints disabled")
	}

	// ─── Handlers ────────────────────────────────────────────────────────────────
	healthH := handler.NewHealthHandler(esClient, bqSvc)
	toolsH := handler.NewToolsHandler(toolRouter, idx, cfg.SearchMaxResults, cfg.SearchMinScore)

	// ─── Router ──────────────────────────────────────────────────────────────────
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins)))
	r.Use(chiMiddleware.RealIP)

	// Public routes
	r.Get("/health", healthH.Health)
	r.Get("/", healthH.Health)

	// Auth + rate limiting for API routes
	apiMiddleware := []func(http.Handler) http.Handler{
		middleware.NewRateLimiter(cfg.RateLimitPerMinute).Middleware,
	}
	if cfg.EnableAuth && len(cfg.APIKeys) > 0 {
		apiMiddleware = append(apiMiddleware, middleware.Auth(cfg.APIKeys, cfg.APIKeyHeader))
	}

	r.Group(func(r chi.Router) {
		for _, m := range apiMiddleware {
			r.Use(m)
		}

		r.Route(cfg.APIPrefix, func(r chi.Router) {
			r.Get("/tools", toolsH.ListTools)
			r.Get("/tools/search", toolsH.SearchTools)

			if chatH != nil {
				r.Post("/conversations", chatH.CreateConversation)
				r.Post("/conversations/{id}/messages", chatH.SendMessage)
				r.Get("/conversations/{id}/history", chatH.GetHistory)
			}
		})
	})

	return r, bqSvc, nil
}
