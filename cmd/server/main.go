package main

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/giftmind/giftmind-backend/internal/config"
	"github.com/giftmind/giftmind-backend/internal/database"
	"github.com/giftmind/giftmind-backend/internal/handlers"
	"github.com/giftmind/giftmind-backend/internal/middleware"
	"github.com/giftmind/giftmind-backend/internal/routes"
	"github.com/giftmind/giftmind-backend/internal/services"
)

func main() {
	// Load env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}
	cfg := config.Load()

	if !cfg.StubConfigured() {
		log.Println("⚠️  WARNING: STUB_PHONE/STUB_CODE not set. SMS login accepts the fallback code for any valid phone.")
	}
	if cfg.QwenAPIKey == "" {
		log.Println("⚠️  WARNING: QWEN_API_KEY not set. Chat endpoints will return errors.")
	}

	// Connect to PostgreSQL
	log.Printf("Connecting to PostgreSQL...")
	if err := database.ConnectPostgres(cfg.PostgresURI); err != nil {
		log.Fatal("Failed to connect to PostgreSQL:", err)
	}
	defer database.DisconnectPostgres()

	// Connect to Redis
	log.Printf("Connecting to Redis...")
	if err := database.ConnectRedis(cfg.RedisURI); err != nil {
		log.Fatal("Failed to connect to Redis:", err)
	}
	defer database.DisconnectRedis()

	// Connect to MongoDB (chat history)
	log.Printf("Connecting to MongoDB...")
	log.Printf("MongoDB URI: %s", maskMongoURI(cfg.MongoURI))
	if err := database.ConnectMongo(cfg.MongoURI); err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer database.DisconnectMongo()

	if err := services.EnsureChatIndexes(context.Background()); err != nil {
		log.Printf("⚠️  WARNING: failed to ensure MongoDB chat indexes: %v", err)
	} else {
		log.Println("✅ MongoDB chat indexes ensured")
	}

	// Wire services into handlers
	handlers.Init(cfg)

	// Setup router
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Production: SecurityHeaders → GlobalRateLimit → LoginRateLimit
	// Non-production: Redis-based rate limit only
	if cfg.IsProduction() {
		for _, mw := range middleware.ProductionSecurity() {
			r.Use(mw)
		}
		log.Println("✅ Production security enabled (security headers, per-IP + login rate limiting)")
	} else {
		r.Use(middleware.RateLimitMiddleware)
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	routes.SetupRoutes(r)

	log.Println("📋 Registered routes:")
	log.Println("  GET  /health")
	log.Println("  POST /api/auth/loginSms")
	log.Println("  POST /api/auth/loginWechat")
	log.Println("  POST /api/auth/refresh")
	log.Println("  POST /api/auth/logout")
	log.Println("  GET  /api/auth/me")
	log.Println("  PUT  /api/auth/profile")
	log.Println("  GET  /api/user/settings")
	log.Println("  POST /api/user/settings")
	log.Println("  *    /api/archives...")
	log.Println("  *    /api/collects...")
	log.Println("  POST /api/chat/messages")
	log.Println("  GET  /api/chat/sessions")
	log.Println("  GET  /api/inspirations/home")
	log.Println("  POST /api/upload")

	log.Printf("🚀 GiftMind backend running on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, r); err != nil {
		log.Fatal("Failed to start server:", err)
	}
}

// maskMongoURI hides the password portion of a connection string in logs.
func maskMongoURI(uri string) string {
	at := strings.Index(uri, "@")
	if at < 0 {
		return uri
	}
	scheme := strings.Index(uri, "://")
	if scheme < 0 {
		return uri
	}
	creds := uri[scheme+3 : at]
	if colon := strings.Index(creds, ":"); colon >= 0 {
		return uri[:scheme+3+colon+1] + "***" + uri[at:]
	}
	return uri
}
