package main

import (
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/chatcommerce/assist/internal/ai"
	"github.com/chatcommerce/assist/internal/chat"
	"github.com/chatcommerce/assist/internal/commerce"
	"github.com/chatcommerce/assist/internal/config"
	"github.com/chatcommerce/assist/internal/db"
	"github.com/chatcommerce/assist/internal/diag"
	"github.com/chatcommerce/assist/internal/httpapi"
	"github.com/chatcommerce/assist/internal/httpapi/handlers"
	"github.com/chatcommerce/assist/internal/ratelimit"
	"github.com/chatcommerce/assist/internal/store/rabbitmq"
)

func main() {
	cfg := config.Load()

	gdb := db.Connect(cfg.DBDSN)

	repo := chat.NewRepo(gdb)

	// Rate limiting and the error ring prefer Redis so replicas share state;
	// with no REDIS_ADDR both fall back in-process.
	var (
		limiter ratelimit.Limiter
		errlog  diag.ErrorLog
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.RateLimitMax, cfg.RateLimitWindow)
		errlog = diag.NewRedisLog(rdb)
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
		errlog = diag.NewMemoryLog()
	}

	var tools ai.ToolExecutor
	if cfg.FunctionCalling {
		tools = commerce.NewCatalog(gdb)
	}

	systemPrompt := ai.RenderSystemPrompt(cfg.SystemPrompt, ai.PromptVars{
		SiteName: cfg.SiteName,
		StoreURL: cfg.StoreURL,
		Currency: cfg.Currency,
	})

	// A misconfigured provider must not take the whole API down; sessions,
	// feedback and leads still work. Chat turns answer with a configuration
	// error until the operator fixes the key.
	provider, err := ai.New(ai.Options{
		Kind:          cfg.AIProvider,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		OpenAIModel:   cfg.OpenAIModel,
		HFAccessToken: cfg.HFAccessToken,
		HFBaseURL:     cfg.HFBaseURL,
		HFModel:       cfg.HFModel,
		Temperature:   cfg.Temperature,
		MaxTokens:     cfg.MaxTokens,
		SystemPrompt:  systemPrompt,
		Tools:         tools,
	})
	if err != nil {
		log.Printf("ai provider unavailable: %v", err)
		provider = nil
	}

	svc := chat.NewService(repo, provider, limiter, errlog, cfg.HistoryWindow)

	var publisher *rabbitmq.Publisher
	if cfg.RabbitURL != "" {
		publisher, err = rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Printf("rabbitmq unavailable, lead notifications disabled: %v", err)
			publisher = nil
		} else {
			defer publisher.Close()
		}
	}

	h := handlers.NewHandler(cfg, svc, errlog, publisher)
	r := httpapi.NewRouter(cfg, h)

	log.Printf("server listening on %s provider=%s", cfg.HTTPAddr, cfg.AIProvider)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
