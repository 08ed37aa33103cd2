package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/giftmind/giftmind-backend/internal/handlers"
	"github.com/giftmind/giftmind-backend/internal/middleware"
)

func SetupRoutes(r *chi.Mux) {
	// Auth routes (no session required)
	r.Post("/api/auth/loginSms", handlers.LoginSms)
	r.Post("/api/auth/loginWechat", handlers.LoginWechat)
	r.Post("/api/auth/refresh", handlers.Refresh)
	// Logout is gate-free: it must succeed even with a revoked token
	r.Post("/api/auth/logout", handlers.Logout)

	// Inspirations routes (public content)
	r.Get("/api/inspirations/home", handlers.InspirationsHome)
	r.Get("/api/inspirations/themes/{id}", handlers.InspirationTheme)
	r.Get("/api/inspirations/items/{id}", handlers.InspirationItem)

	// Session-gated routes
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(handlers.TokenService()))

		r.Get("/api/auth/me", handlers.Me)
		r.Put("/api/auth/profile", handlers.UpdateProfile)

		// User routes
		r.Get("/api/user/settings", handlers.GetSettings)
		r.Post("/api/user/settings", handlers.UpdateSettings)
		r.Post("/api/user/profile", handlers.UpdateProfile)

		// Archive routes
		r.Get("/api/archives", handlers.ListArchives)
		r.Post("/api/archives", handlers.CreateArchive)
		r.Get("/api/archives/tags", handlers.ListArchiveTags)
		r.Put("/api/archives/tags/rename", handlers.RenameArchiveTag)
		r.Get("/api/archives/filter/relationship/{relationship}", handlers.FilterArchivesByRelationship)
		r.Get("/api/archives/filter/tags", handlers.FilterArchivesByTags)
		r.Get("/api/archives/search", handlers.SearchArchives)
		r.Get("/api/archives/{id}", handlers.GetArchive)
		r.Put("/api/archives/{id}", handlers.UpdateArchive)
		r.Delete("/api/archives/{id}", handlers.DeleteArchive)
		r.Put("/api/archives/{id}/tags", handlers.ReplaceArchiveTags)

		// Collect routes
		r.Post("/api/collects", handlers.AddCollect)
		r.Get("/api/collects", handlers.ListCollects)
		r.Get("/api/collects/stats", handlers.CollectStats)
		r.Get("/api/collects/status/{itemId}", handlers.CollectStatus)
		r.Delete("/api/collects/{itemId}", handlers.RemoveCollect)

		// Chat routes
		r.Post("/api/chat/messages", handlers.SendChatMessage)
		r.Get("/api/chat/sessions", handlers.ListChatSessions)
		r.Get("/api/chat/sessions/{id}/messages", handlers.SessionMessages)

		// Insights routes (home board)
		r.Get("/api/insights/board", handlers.InsightsBoard)
		r.Get("/api/insights/board/upcoming", handlers.InsightsUpcomingEvents)

		// Recommendation routes
		r.Post("/api/recommendation/analyze", handlers.AnalyzeInput)
		r.Post("/api/recommendation/recommend", handlers.Recommend)
		r.Post("/api/recommendation/plan", handlers.PlanGift)

		// File upload routes
		r.Post("/api/upload", handlers.UploadAvatar)
	})
}
