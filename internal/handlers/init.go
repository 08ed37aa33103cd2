package handlers

import (
	"log"

	"github.com/giftmind/giftmind-backend/internal/config"
	"github.com/giftmind/giftmind-backend/internal/database"
	"github.com/giftmind/giftmind-backend/internal/services"
	"github.com/giftmind/giftmind-backend/internal/store"
)

var (
	authService           *services.AuthService
	tokenService          *services.TokenService
	archivesService       *services.ArchivesService
	collectsService       *services.CollectsService
	settingsService       *services.SettingsService
	chatService           *services.ChatService
	inspirationsService   *services.InspirationsService
	insightsService       *services.InsightsService
	recommendationService *services.RecommendationService
	cloudinaryService     avatarUploader
)

// Init wires the handler package's services against the connected databases.
// Must be called after the database connections are established.
func Init(cfg *config.Config) {
	tokenService = services.NewTokenService(cfg)
	users := store.NewUsers(database.PostgresDB)
	wechat := services.NewWechatService(cfg)
	authService = services.NewAuthService(users, tokenService, wechat, cfg)

	archivesService = services.NewArchivesService(database.PostgresDB)
	collectsService = services.NewCollectsService(database.PostgresDB)
	settingsService = services.NewSettingsService(database.PostgresDB)
	chatService = services.NewChatService(cfg, services.NewMongoChatHistory())
	inspirationsService = services.NewInspirationsService(cfg, services.Cache)
	insightsService = services.NewInsightsService(archivesService, services.NewInsightCopyStore(database.PostgresDB))
	recommendationService = services.NewRecommendationService(cfg, inspirationsService)

	if cfg.CloudinaryName != "" && cfg.CloudinaryAPIKey != "" && cfg.CloudinaryAPISecret != "" {
		svc, err := services.NewCloudinaryService(cfg.CloudinaryName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			log.Printf("⚠️  Cloudinary init failed, uploads disabled: %v", err)
		} else {
			cloudinaryService = svc
			log.Println("✅ Cloudinary service initialized")
		}
	} else {
		log.Println("⚠️  Cloudinary credentials not set, uploads disabled")
	}
}

// TokenService exposes the token service for the auth middleware.
func TokenService() *services.TokenService {
	return tokenService
}
